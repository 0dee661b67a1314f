// Package session owns the live event: it is the only writer of the
// in-memory state, applies engine commands, persists accepted transitions,
// and maps transition events onto hub broadcasts. State is committed before
// a broadcast is attempted; delivery is best-effort and late joiners catch
// up via snapshots.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelinsk/livevote-backend/internal/engine"
	"github.com/avelinsk/livevote-backend/internal/export"
	"github.com/avelinsk/livevote-backend/internal/hub"
	"github.com/avelinsk/livevote-backend/internal/store"
	"github.com/avelinsk/livevote-backend/internal/tally"
	"github.com/avelinsk/livevote-backend/internal/types"
)

var ErrInvalidPollType = errors.New("invalid poll type")

// Persister is the slice of the store the session needs. Tests substitute
// an in-memory fake.
type Persister interface {
	CreateActivity(name, theme string) (store.Activity, error)
	UpdateActivityStatus(id uint, status string) error
	CreatePoll(activityID uint, title, pollType string, options []string, orderIndex int) (store.Poll, error)
	GetPoll(id uint) (store.Poll, error)
	ListPolls(activityID uint) ([]store.Poll, error)
	CreateParticipant(activityID uint, name, department, role, sessionID string) (store.Participant, error)
	ParticipantBySession(sessionID string) (store.Participant, error)
	HostParticipant(activityID uint) (store.Participant, error)
	CountParticipants(activityID uint) (int, error)
	ListParticipants(activityID uint) ([]store.Participant, error)
	SaveSubmission(pollID, participantID uint, answer string) error
	ListSubmissions(pollID uint) ([]store.Submission, error)
	ResetActivityData(activityID uint) error
}

type Session struct {
	mu    sync.Mutex
	state engine.State

	hub       *hub.Hub
	tally     *tally.Store
	db        Persister
	exportDir string
	log       *zap.Logger
}

func New(h *hub.Hub, t *tally.Store, db Persister, exportDir string, log *zap.Logger) *Session {
	return &Session{
		state:     engine.NewState(),
		hub:       h,
		tally:     t,
		db:        db,
		exportDir: exportDir,
		log:       log,
	}
}

// apply runs cmd against the live state and commits the result. Broadcasts
// happen under the same lock as the state change, so a snapshot taken by a
// concurrently connecting client can never straddle a transition.
// Callers must hold s.mu.
func (s *Session) apply(cmd engine.Command) ([]engine.Event, error) {
	events, next, err := engine.Apply(s.state, cmd)
	if err != nil {
		return nil, err
	}
	s.state = next
	return events, nil
}

func (s *Session) CreateActivity(name, theme string) (store.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, err := s.db.CreateActivity(name, theme)
	if err != nil {
		return store.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	if _, err := s.apply(engine.Command{Type: engine.CmdCreateActivity, ActivityID: activity.ID, Name: activity.Name}); err != nil {
		return store.Activity{}, err
	}
	// Live stores from any previous activity are stale now.
	s.tally.Reset()
	s.log.Info("activity created", zap.Uint("id", activity.ID), zap.String("name", activity.Name))
	return activity, nil
}

func (s *Session) StartActivity() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if _, err := s.apply(engine.Command{Type: engine.CmdStartActivity}); err != nil {
		return err
	}
	if err := s.db.UpdateActivityStatus(s.state.ActivityID, string(engine.StatusActive)); err != nil {
		s.state = prev
		return fmt.Errorf("persist activity status: %w", err)
	}
	s.hub.Broadcast(types.Message{
		Type: types.TypeActivityStarted,
		Data: types.ActivityStartedData{ActivityName: s.state.ActivityName},
	})
	s.log.Info("activity started", zap.Uint("id", s.state.ActivityID))
	return nil
}

func (s *Session) EndActivity() (types.ActivitySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if _, err := s.apply(engine.Command{Type: engine.CmdEndActivity}); err != nil {
		return types.ActivitySummary{}, err
	}
	if err := s.db.UpdateActivityStatus(s.state.ActivityID, string(engine.StatusEnded)); err != nil {
		s.state = prev
		return types.ActivitySummary{}, fmt.Errorf("persist activity status: %w", err)
	}

	summary, err := s.summary(s.state.ActivityID)
	if err != nil {
		// The transition stands; a summary read failure must not undo it.
		s.log.Error("activity summary failed", zap.Error(err))
	}
	s.hub.Broadcast(types.Message{Type: types.TypeActivityEnded, Data: summary})
	s.log.Info("activity ended", zap.Uint("id", s.state.ActivityID))
	return summary, nil
}

// summary must be called with s.mu held.
func (s *Session) summary(activityID uint) (types.ActivitySummary, error) {
	total, err := s.db.CountParticipants(activityID)
	if err != nil {
		return types.ActivitySummary{}, err
	}
	polls, err := s.db.ListPolls(activityID)
	if err != nil {
		return types.ActivitySummary{}, err
	}
	sum := types.ActivitySummary{
		TotalParticipants: total,
		VotesCompleted:    len(polls),
		VotesSummary:      make([]types.PollSummary, 0, len(polls)),
	}
	for _, p := range polls {
		sum.VotesSummary = append(sum.VotesSummary, types.PollSummary{
			Title:        p.Title,
			Type:         p.Type,
			Participants: s.tally.Respondents(p.ID),
		})
	}
	return sum, nil
}

// CloseActivity exports the activity's data, wipes live records, resets
// the session to no_activity and tells clients to return to sign-in.
func (s *Session) CloseActivity() (export.Files, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activityID := s.state.ActivityID
	prev := s.state
	if _, err := s.apply(engine.Command{Type: engine.CmdCloseActivity}); err != nil {
		return export.Files{}, err
	}

	files, err := s.exportActivity(activityID, prev.ActivityName)
	if err != nil {
		// Never wipe data that was not exported.
		s.state = prev
		return export.Files{}, fmt.Errorf("export activity: %w", err)
	}
	if err := s.db.ResetActivityData(activityID); err != nil {
		s.state = prev
		return export.Files{}, fmt.Errorf("reset activity data: %w", err)
	}
	s.tally.Reset()

	s.hub.Broadcast(types.Message{Type: types.TypeActivityClosed})
	s.log.Info("activity closed", zap.Uint("id", activityID),
		zap.String("records", files.Records), zap.String("statistics", files.Statistics))
	return files, nil
}

// exportActivity must be called with s.mu held.
func (s *Session) exportActivity(activityID uint, name string) (export.Files, error) {
	polls, err := s.db.ListPolls(activityID)
	if err != nil {
		return export.Files{}, err
	}
	participants, err := s.db.ListParticipants(activityID)
	if err != nil {
		return export.Files{}, err
	}

	in := export.Input{
		Activity:     store.Activity{ID: activityID, Name: name},
		Polls:        polls,
		Participants: participants,
		Submissions:  make(map[uint][]store.Submission, len(polls)),
		Tallies:      make(map[uint]tally.Result, len(polls)),
	}
	for _, p := range polls {
		subs, err := s.db.ListSubmissions(p.ID)
		if err != nil {
			return export.Files{}, err
		}
		in.Submissions[p.ID] = subs
		if res, err := s.tally.Tally(p.ID); err == nil {
			in.Tallies[p.ID] = res
		}
	}
	return export.Write(s.exportDir, in)
}

func (s *Session) CreatePoll(title, pollType string, options []string, orderIndex int) (store.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.ActivityStatus == engine.StatusNone {
		return store.Poll{}, engine.ErrNoActivity
	}
	if !engine.ValidPollType(pollType) {
		return store.Poll{}, fmt.Errorf("%w: %q", ErrInvalidPollType, pollType)
	}

	poll, err := s.db.CreatePoll(s.state.ActivityID, title, pollType, options, orderIndex)
	if err != nil {
		return store.Poll{}, fmt.Errorf("create poll: %w", err)
	}
	s.tally.RegisterPoll(engine.Poll{
		ID:      poll.ID,
		Title:   poll.Title,
		Type:    engine.PollType(poll.Type),
		Options: poll.OptionList(),
	})
	s.log.Info("poll created", zap.Uint("id", poll.ID), zap.String("type", poll.Type))
	return poll, nil
}

func (s *Session) StartPoll(pollID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.db.GetPoll(pollID)
	if err != nil {
		return tally.ErrUnknownPoll
	}
	if record.ActivityID != s.state.ActivityID {
		return tally.ErrUnknownPoll
	}

	poll := engine.Poll{
		ID:      record.ID,
		Title:   record.Title,
		Type:    engine.PollType(record.Type),
		Options: record.OptionList(),
	}
	if _, err := s.apply(engine.Command{Type: engine.CmdStartPoll, Poll: &poll}); err != nil {
		return err
	}
	// Option identifiers are frozen with the running poll's definition.
	s.tally.RegisterPoll(poll)

	s.hub.Broadcast(types.Message{Type: types.TypeVoteStarted, Data: types.PollInfo{
		VoteID:  poll.ID,
		Title:   poll.Title,
		Type:    string(poll.Type),
		Options: poll.Options,
	}})
	s.log.Info("poll started", zap.Uint("id", poll.ID))
	return nil
}

func (s *Session) EndPoll() (tally.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.apply(engine.Command{Type: engine.CmdEndPoll})
	if err != nil {
		return tally.Result{}, err
	}
	pollID := events[0].PollID

	result, err := s.tally.Tally(pollID)
	if err != nil {
		return tally.Result{}, err
	}
	s.hub.Broadcast(types.Message{Type: types.TypeVoteEnded, Data: result})
	s.log.Info("poll ended", zap.Uint("id", pollID), zap.Int("respondents", result.TotalCount))
	return result, nil
}

func (s *Session) ExitPoll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.apply(engine.Command{Type: engine.CmdExitPoll}); err != nil {
		return err
	}
	s.hub.Broadcast(types.Message{Type: types.TypeVoteExited})
	s.log.Info("poll exited")
	return nil
}

// SignIn registers a participant (or the host) with the current activity
// and broadcasts the new headcount. A second host sign-in hands back the
// existing host record instead of creating a duplicate.
func (s *Session) SignIn(name, department, role string) (store.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.ActivityStatus == engine.StatusNone {
		return store.Participant{}, engine.ErrNoActivity
	}

	if role == "host" {
		if existing, err := s.db.HostParticipant(s.state.ActivityID); err == nil {
			return existing, nil
		}
	}

	participant, err := s.db.CreateParticipant(s.state.ActivityID, name, department, role, uuid.NewString())
	if err != nil {
		return store.Participant{}, fmt.Errorf("create participant: %w", err)
	}
	s.tally.RegisterParticipant(participant.ID, participant.Name)

	count, err := s.db.CountParticipants(s.state.ActivityID)
	if err != nil {
		count = s.state.Participants + 1
	}
	if _, err := s.apply(engine.Command{Type: engine.CmdSignIn, Count: count}); err != nil {
		return store.Participant{}, err
	}

	s.hub.Broadcast(types.Message{Type: types.TypeParticipantSignedIn, Data: types.SignedInData{Count: count}})
	s.log.Info("participant signed in", zap.Uint("id", participant.ID), zap.String("role", role), zap.Int("count", count))
	return participant, nil
}

// SubmitAnswer validates and records one participant's answer: the live
// store is authoritative and the durable copy is written through in the
// same call. Resubmission overwrites.
func (s *Session) SubmitAnswer(pollID, participantID uint, raw json.RawMessage) error {
	ans, err := s.tally.Record(pollID, participantID, raw)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	if err := s.db.SaveSubmission(pollID, participantID, string(encoded)); err != nil {
		// The live tally already holds the answer and drives every result
		// display; a failed durable write must not reject the vote.
		s.log.Error("persist submission failed", zap.Uint("poll", pollID), zap.Error(err))
	}
	return nil
}

func (s *Session) Tally(pollID uint) (tally.Result, error) {
	return s.tally.Tally(pollID)
}

func (s *Session) Participant(sessionID string) (store.Participant, error) {
	return s.db.ParticipantBySession(sessionID)
}

// State returns a copy of the live state.
func (s *Session) State() engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot is the late-join view: phase, headcount and — only while a poll
// is running — its definition. Never a tally; partial results stay private
// until vote_ended.
func (s *Session) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked must be called with s.mu held.
func (s *Session) snapshotLocked() types.Snapshot {
	snap := types.Snapshot{
		Phase:            string(s.state.Phase),
		ActivityStatus:   string(s.state.ActivityStatus),
		ActivityName:     s.state.ActivityName,
		ParticipantCount: s.state.Participants,
	}
	if p := s.state.CurrentPoll; p != nil {
		snap.CurrentPoll = &types.PollInfo{
			VoteID:  p.ID,
			Title:   p.Title,
			Type:    string(p.Type),
			Options: p.Options,
		}
	}
	return snap
}

// HandleConnect registers a new connection and immediately hands it a
// snapshot of the current state, under the state lock so no transition can
// slip between registration and the snapshot.
func (s *Session) HandleConnect(c *hub.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub.Register(c)
	s.hub.Send(c, types.Message{Type: types.TypeSnapshot, Data: s.snapshotLocked()})
}

func (s *Session) HandleDisconnect(c *hub.Client) {
	s.hub.Unregister(c)
}
