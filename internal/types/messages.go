package types

// Message is the wire shape for every server -> client event:
// one JSON object per logical event, data omitted when there is no payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Canonical message types.
const (
	TypeActivityStarted     = "activity_started"
	TypeActivityEnded       = "activity_ended"
	TypeActivityClosed      = "activity_closed"
	TypeVoteStarted         = "vote_started"
	TypeVoteEnded           = "vote_ended"
	TypeVoteExited          = "vote_exited"
	TypeParticipantSignedIn = "participant_signed_in"
	TypeSnapshot            = "snapshot"
)

type ActivityStartedData struct {
	ActivityName string `json:"activity_name"`
}

type SignedInData struct {
	Count int `json:"count"`
}

// PollInfo is the live definition of a poll as sent to clients.
// Options is empty for rating and text polls.
type PollInfo struct {
	VoteID  uint     `json:"vote_id"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// Snapshot is sent to a single connection right after it registers, so a
// late joiner renders the current phase instead of waiting for the next
// broadcast. It never carries a tally; results are only pushed on vote_ended.
type Snapshot struct {
	Phase            string    `json:"phase"`
	ActivityStatus   string    `json:"activity_status"`
	ActivityName     string    `json:"activity_name,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	CurrentPoll      *PollInfo `json:"current_poll,omitempty"`
}

type PollSummary struct {
	Title        string `json:"title"`
	Type         string `json:"type"`
	Participants int    `json:"participants"`
}

// ActivitySummary is the payload of activity_ended.
type ActivitySummary struct {
	TotalParticipants int           `json:"total_participants"`
	VotesCompleted    int           `json:"votes_completed"`
	VotesSummary      []PollSummary `json:"votes_summary"`
}
