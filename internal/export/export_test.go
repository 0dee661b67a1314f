package export

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinsk/livevote-backend/internal/store"
	"github.com/avelinsk/livevote-backend/internal/tally"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	avg := 0.0

	in := Input{
		Activity: store.Activity{ID: 1, Name: "all hands"},
		Polls: []store.Poll{
			{ID: 2, ActivityID: 1, Title: "lunch?", Type: "single"},
			{ID: 3, ActivityID: 1, Title: "feedback", Type: "text"},
		},
		Participants: []store.Participant{
			{ID: 4, Name: "ada", Department: "eng"},
		},
		Submissions: map[uint][]store.Submission{
			2: {{PollID: 2, ParticipantID: 4, Answer: `{"selected":["A"]}`}},
		},
		Tallies: map[uint]tally.Result{
			2: {VoteID: 2, Type: "single", TotalCount: 1, Results: []tally.OptionResult{
				{Option: "A", Count: 1, Percentage: "100.0%"},
				{Option: "B", Count: 0, Percentage: "0.0%"},
			}, Average: &avg},
			3: {VoteID: 3, Type: "text", TotalCount: 1, Answers: []tally.TextAnswer{
				{Participant: "ada", Text: "great"},
			}},
		},
	}

	files, err := Write(dir, in)
	require.NoError(t, err)

	records := readCSV(t, files.Records)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"poll_title", "poll_type", "participant", "department", "answer", "voted_at"}, records[0])
	assert.Equal(t, "ada", records[1][2])
	assert.Equal(t, `{"selected":["A"]}`, records[1][4])

	stats := readCSV(t, files.Statistics)
	// Header + two option rows + one text row.
	require.Len(t, stats, 4)
	assert.Equal(t, []string{"lunch?", "single", "A", "1", "100.0%"}, stats[1])
	assert.Equal(t, []string{"feedback", "text", "ada", "", "great"}, stats[3])
}
