package engine

import "errors"

var ErrInvalidTransition = errors.New("invalid transition")
var ErrNoActivity = errors.New("no current activity")
var ErrNoPollRunning = errors.New("no poll running")
var ErrUnsupportedCommand = errors.New("unsupported command")

type ActivityStatus string

const (
	StatusNone    ActivityStatus = ""
	StatusPending ActivityStatus = "pending"
	StatusActive  ActivityStatus = "active"
	StatusEnded   ActivityStatus = "ended"
)

// Phase is what connected screens are expected to render right now.
type Phase string

const (
	PhaseNoActivity Phase = "no_activity"
	PhaseSignIn     Phase = "signin"
	PhaseVoting     Phase = "voting"
	PhaseResult     Phase = "result"
	PhaseSummary    Phase = "summary"
)

type PollType string

const (
	PollSingle   PollType = "single"
	PollMultiple PollType = "multiple"
	PollRating   PollType = "rating"
	PollText     PollType = "text"
)

func ValidPollType(t string) bool {
	switch PollType(t) {
	case PollSingle, PollMultiple, PollRating, PollText:
		return true
	}
	return false
}

// Poll is the live definition of one question. Options is nil for
// rating and text polls.
type Poll struct {
	ID      uint
	Title   string
	Type    PollType
	Options []string
}

// State is the live session state. The current activity is an explicit
// reference set at creation and cleared at close, never derived from a
// newest-row query. CurrentPoll is nil whenever no poll is running.
type State struct {
	ActivityID     uint
	ActivityName   string
	ActivityStatus ActivityStatus
	Phase          Phase
	CurrentPoll    *Poll
	Participants   int
}

func NewState() State {
	return State{Phase: PhaseNoActivity}
}

type CommandType string

const (
	CmdCreateActivity CommandType = "CreateActivity"
	CmdStartActivity  CommandType = "StartActivity"
	CmdEndActivity    CommandType = "EndActivity"
	CmdCloseActivity  CommandType = "CloseActivity"
	CmdStartPoll      CommandType = "StartPoll"
	CmdEndPoll        CommandType = "EndPoll"
	CmdExitPoll       CommandType = "ExitPoll"
	CmdSignIn         CommandType = "SignIn"
)

type Command struct {
	Type       CommandType
	ActivityID uint
	Name       string
	Poll       *Poll
	// Count is the headcount after a sign-in, computed by the caller.
	Count int
}

type EventType string

const (
	EvtActivityCreated     EventType = "ActivityCreated"
	EvtActivityStarted     EventType = "ActivityStarted"
	EvtActivityEnded       EventType = "ActivityEnded"
	EvtActivityClosed      EventType = "ActivityClosed"
	EvtPollStarted         EventType = "PollStarted"
	EvtPollEnded           EventType = "PollEnded"
	EvtPollExited          EventType = "PollExited"
	EvtParticipantSignedIn EventType = "ParticipantSignedIn"
)

type Event struct {
	Type   EventType
	Poll   *Poll
	PollID uint
	Count  int
}

// Apply runs one operator command against the live state. It is pure: a
// rejected command returns the input state untouched and no events, so the
// caller can report the error without anything having been broadcast.
func Apply(s State, cmd Command) ([]Event, State, error) {
	next := s

	switch cmd.Type {
	case CmdCreateActivity:
		// A new activity always becomes current, replacing whatever was
		// there. Poll state from a prior activity does not carry over.
		next.ActivityID = cmd.ActivityID
		next.ActivityName = cmd.Name
		next.ActivityStatus = StatusPending
		next.Phase = PhaseSignIn
		next.CurrentPoll = nil
		next.Participants = 0
		return []Event{{Type: EvtActivityCreated}}, next, nil

	case CmdStartActivity:
		if s.ActivityStatus == StatusNone {
			return nil, s, ErrNoActivity
		}
		if s.ActivityStatus != StatusPending {
			return nil, s, ErrInvalidTransition
		}
		next.ActivityStatus = StatusActive
		return []Event{{Type: EvtActivityStarted}}, next, nil

	case CmdEndActivity:
		if s.ActivityStatus == StatusNone {
			return nil, s, ErrNoActivity
		}
		if s.ActivityStatus != StatusActive {
			return nil, s, ErrInvalidTransition
		}
		next.ActivityStatus = StatusEnded
		next.Phase = PhaseSummary
		next.CurrentPoll = nil
		return []Event{{Type: EvtActivityEnded}}, next, nil

	case CmdCloseActivity:
		if s.ActivityStatus == StatusNone {
			return nil, s, ErrNoActivity
		}
		if s.ActivityStatus != StatusEnded {
			return nil, s, ErrInvalidTransition
		}
		return []Event{{Type: EvtActivityClosed}}, NewState(), nil

	case CmdStartPoll:
		if s.ActivityStatus == StatusNone {
			return nil, s, ErrNoActivity
		}
		if s.ActivityStatus != StatusActive {
			return nil, s, ErrInvalidTransition
		}
		if cmd.Poll == nil {
			return nil, s, ErrUnsupportedCommand
		}
		// Starting while another poll is running simply switches the
		// running poll; one operator drives transitions serially.
		next.CurrentPoll = cmd.Poll
		next.Phase = PhaseVoting
		return []Event{{Type: EvtPollStarted, Poll: cmd.Poll}}, next, nil

	case CmdEndPoll:
		if s.CurrentPoll == nil {
			return nil, s, ErrNoPollRunning
		}
		next.CurrentPoll = nil
		next.Phase = PhaseResult
		return []Event{{Type: EvtPollEnded, PollID: s.CurrentPoll.ID}}, next, nil

	case CmdExitPoll:
		if s.CurrentPoll == nil {
			return nil, s, ErrNoPollRunning
		}
		next.CurrentPoll = nil
		next.Phase = PhaseSignIn
		return []Event{{Type: EvtPollExited}}, next, nil

	case CmdSignIn:
		if s.ActivityStatus == StatusNone {
			return nil, s, ErrNoActivity
		}
		next.Participants = cmd.Count
		return []Event{{Type: EvtParticipantSignedIn, Count: cmd.Count}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
