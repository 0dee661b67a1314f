package engine

import (
	"errors"
	"testing"
)

func activeState() State {
	return State{
		ActivityID:     1,
		ActivityName:   "all hands",
		ActivityStatus: StatusActive,
		Phase:          PhaseSignIn,
	}
}

func TestApply_ActivityLifecycle(t *testing.T) {
	cases := []struct {
		name       string
		setup      State
		cmd        Command
		wantErr    error
		wantStatus ActivityStatus
		wantPhase  Phase
	}{
		{
			name:       "start from pending",
			setup:      State{ActivityID: 1, ActivityStatus: StatusPending, Phase: PhaseSignIn},
			cmd:        Command{Type: CmdStartActivity},
			wantStatus: StatusActive,
			wantPhase:  PhaseSignIn,
		},
		{
			name:       "start while already active is rejected",
			setup:      activeState(),
			cmd:        Command{Type: CmdStartActivity},
			wantErr:    ErrInvalidTransition,
			wantStatus: StatusActive,
			wantPhase:  PhaseSignIn,
		},
		{
			name:    "start with no activity",
			setup:   NewState(),
			cmd:     Command{Type: CmdStartActivity},
			wantErr: ErrNoActivity,
		},
		{
			name:       "end from active",
			setup:      activeState(),
			cmd:        Command{Type: CmdEndActivity},
			wantStatus: StatusEnded,
			wantPhase:  PhaseSummary,
		},
		{
			name:       "end from pending is rejected",
			setup:      State{ActivityID: 1, ActivityStatus: StatusPending, Phase: PhaseSignIn},
			cmd:        Command{Type: CmdEndActivity},
			wantErr:    ErrInvalidTransition,
			wantStatus: StatusPending,
			wantPhase:  PhaseSignIn,
		},
		{
			name:       "close from ended resets to no activity",
			setup:      State{ActivityID: 1, ActivityStatus: StatusEnded, Phase: PhaseSummary},
			cmd:        Command{Type: CmdCloseActivity},
			wantStatus: StatusNone,
			wantPhase:  PhaseNoActivity,
		},
		{
			name:       "close from active is rejected",
			setup:      activeState(),
			cmd:        Command{Type: CmdCloseActivity},
			wantErr:    ErrInvalidTransition,
			wantStatus: StatusActive,
			wantPhase:  PhaseSignIn,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if len(events) != 0 {
					t.Fatalf("rejected command must not emit events, got %v", events)
				}
				if next != tc.setup {
					t.Fatalf("rejected command must not mutate state")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if next.ActivityStatus != tc.wantStatus {
				t.Fatalf("status: want %q, got %q", tc.wantStatus, next.ActivityStatus)
			}
			if next.Phase != tc.wantPhase {
				t.Fatalf("phase: want %q, got %q", tc.wantPhase, next.Phase)
			}
		})
	}
}

func TestApply_CreateActivityReplacesCurrent(t *testing.T) {
	s := activeState()
	s.CurrentPoll = &Poll{ID: 7, Type: PollSingle}
	s.Participants = 12

	_, next, err := Apply(s, Command{Type: CmdCreateActivity, ActivityID: 2, Name: "retro"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if next.ActivityID != 2 || next.ActivityStatus != StatusPending {
		t.Fatalf("new activity should be current and pending, got %+v", next)
	}
	if next.CurrentPoll != nil || next.Participants != 0 {
		t.Fatalf("poll state and headcount must not carry over, got %+v", next)
	}
}

func TestApply_PollLifecycle(t *testing.T) {
	poll := &Poll{ID: 3, Title: "lunch?", Type: PollSingle, Options: []string{"A", "B"}}

	s := activeState()
	events, s, err := Apply(s, Command{Type: CmdStartPoll, Poll: poll})
	if err != nil {
		t.Fatalf("start poll: %v", err)
	}
	if s.Phase != PhaseVoting || s.CurrentPoll == nil || s.CurrentPoll.ID != 3 {
		t.Fatalf("after start: %+v", s)
	}
	if len(events) != 1 || events[0].Type != EvtPollStarted || events[0].Poll != poll {
		t.Fatalf("want PollStarted event carrying the poll, got %+v", events)
	}

	events, s, err = Apply(s, Command{Type: CmdEndPoll})
	if err != nil {
		t.Fatalf("end poll: %v", err)
	}
	if s.Phase != PhaseResult || s.CurrentPoll != nil {
		t.Fatalf("after end: %+v", s)
	}
	if len(events) != 1 || events[0].Type != EvtPollEnded || events[0].PollID != 3 {
		t.Fatalf("want PollEnded for poll 3, got %+v", events)
	}

	// No poll running anymore.
	_, _, err = Apply(s, Command{Type: CmdEndPoll})
	if !errors.Is(err, ErrNoPollRunning) {
		t.Fatalf("want ErrNoPollRunning, got %v", err)
	}
}

func TestApply_StartPollSwitchesRunningPoll(t *testing.T) {
	first := &Poll{ID: 1, Type: PollSingle, Options: []string{"A"}}
	second := &Poll{ID: 2, Type: PollRating}

	s := activeState()
	_, s, err := Apply(s, Command{Type: CmdStartPoll, Poll: first})
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	_, s, err = Apply(s, Command{Type: CmdStartPoll, Poll: second})
	if err != nil {
		t.Fatalf("start second while first running: %v", err)
	}
	if s.CurrentPoll.ID != 2 || s.Phase != PhaseVoting {
		t.Fatalf("second poll should be current, got %+v", s)
	}
}

func TestApply_ExitPollReturnsToSignIn(t *testing.T) {
	s := activeState()
	s.CurrentPoll = &Poll{ID: 5, Type: PollText}
	s.Phase = PhaseVoting

	events, s, err := Apply(s, Command{Type: CmdExitPoll})
	if err != nil {
		t.Fatalf("exit poll: %v", err)
	}
	if s.Phase != PhaseSignIn || s.CurrentPoll != nil {
		t.Fatalf("after exit: %+v", s)
	}
	if len(events) != 1 || events[0].Type != EvtPollExited {
		t.Fatalf("want PollExited, got %+v", events)
	}
}

func TestApply_SignInUpdatesHeadcount(t *testing.T) {
	s := activeState()
	events, s, err := Apply(s, Command{Type: CmdSignIn, Count: 4})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if s.Participants != 4 {
		t.Fatalf("want 4 participants, got %d", s.Participants)
	}
	if len(events) != 1 || events[0].Type != EvtParticipantSignedIn || events[0].Count != 4 {
		t.Fatalf("want ParticipantSignedIn count=4, got %+v", events)
	}

	_, _, err = Apply(NewState(), Command{Type: CmdSignIn, Count: 1})
	if !errors.Is(err, ErrNoActivity) {
		t.Fatalf("want ErrNoActivity, got %v", err)
	}
}
