// Package export writes the closing dump of an activity: one CSV of raw
// vote records and one of per-poll statistics.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avelinsk/livevote-backend/internal/engine"
	"github.com/avelinsk/livevote-backend/internal/store"
	"github.com/avelinsk/livevote-backend/internal/tally"
)

// Files holds the paths of a finished export.
type Files struct {
	Records    string
	Statistics string
}

type Input struct {
	Activity     store.Activity
	Polls        []store.Poll
	Participants []store.Participant
	// Submissions keyed by poll id, in participant order.
	Submissions map[uint][]store.Submission
	// Tallies keyed by poll id.
	Tallies map[uint]tally.Result
}

// Write dumps the activity's records and statistics under dir. Filenames
// carry the activity id and a timestamp so repeated events never collide.
func Write(dir string, in Input) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create export dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	files := Files{
		Records:    filepath.Join(dir, fmt.Sprintf("activity_%d_records_%s.csv", in.Activity.ID, stamp)),
		Statistics: filepath.Join(dir, fmt.Sprintf("activity_%d_statistics_%s.csv", in.Activity.ID, stamp)),
	}

	if err := writeRecords(files.Records, in); err != nil {
		return Files{}, err
	}
	if err := writeStatistics(files.Statistics, in); err != nil {
		return Files{}, err
	}
	return files, nil
}

func writeRecords(path string, in Input) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	names := make(map[uint]store.Participant, len(in.Participants))
	for _, p := range in.Participants {
		names[p.ID] = p
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"poll_title", "poll_type", "participant", "department", "answer", "voted_at"}); err != nil {
		return err
	}
	for _, poll := range in.Polls {
		for _, sub := range in.Submissions[poll.ID] {
			p := names[sub.ParticipantID]
			row := []string{
				poll.Title,
				poll.Type,
				p.Name,
				p.Department,
				sub.Answer,
				sub.VotedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeStatistics(path string, in Input) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"poll_title", "poll_type", "option", "count", "percentage"}); err != nil {
		return err
	}
	for _, poll := range in.Polls {
		res, ok := in.Tallies[poll.ID]
		if !ok {
			continue
		}
		switch engine.PollType(poll.Type) {
		case engine.PollText:
			for _, ans := range res.Answers {
				if err := w.Write([]string{poll.Title, poll.Type, ans.Participant, "", ans.Text}); err != nil {
					return err
				}
			}
		default:
			for _, row := range res.Results {
				rec := []string{poll.Title, poll.Type, row.Option, fmt.Sprintf("%d", row.Count), row.Percentage}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}
