package tally

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/avelinsk/livevote-backend/internal/engine"
)

var ErrUnknownPoll = errors.New("unknown poll")
var ErrInvalidAnswer = errors.New("invalid answer")

// Answer is a participant's normalized submission. Exactly one of the
// fields is meaningful, determined by the poll type it was validated against.
type Answer struct {
	Selected []string `json:"selected,omitempty"`
	Rating   int      `json:"rating,omitempty"`
	Text     string   `json:"text,omitempty"`
}

type OptionResult struct {
	Option     string `json:"option"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type TextAnswer struct {
	Participant string `json:"participant"`
	Text        string `json:"text"`
}

// Result is the displayable tally of one poll. Results is filled for
// choice and rating polls, Answers for text polls, Average for rating only.
type Result struct {
	VoteID     uint            `json:"vote_id"`
	Type       engine.PollType `json:"type"`
	TotalCount int             `json:"total_count"`
	Results    []OptionResult  `json:"results,omitempty"`
	Average    *float64        `json:"average,omitempty"`
	Answers    []TextAnswer    `json:"answers,omitempty"`
}

// Store holds raw submissions keyed by (poll, participant), last write wins.
// Poll definitions are registered before submissions arrive; participant
// names are only needed to label text answers.
type Store struct {
	mu    sync.RWMutex
	polls map[uint]engine.Poll
	subs  map[uint]map[uint]Answer
	names map[uint]string
}

func NewStore() *Store {
	return &Store{
		polls: make(map[uint]engine.Poll),
		subs:  make(map[uint]map[uint]Answer),
		names: make(map[uint]string),
	}
}

// RegisterPoll makes a poll known to the store so submissions can be
// validated against its declared type and options.
func (s *Store) RegisterPoll(p engine.Poll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = p
}

func (s *Store) RegisterParticipant(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = name
}

// Record validates raw against the poll's declared type and upserts it.
// Resubmission by the same participant overwrites, never accumulates.
func (s *Store) Record(pollID, participantID uint, raw json.RawMessage) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return Answer{}, ErrUnknownPoll
	}

	ans, err := parseAnswer(poll, raw)
	if err != nil {
		return Answer{}, err
	}

	if s.subs[pollID] == nil {
		s.subs[pollID] = make(map[uint]Answer)
	}
	s.subs[pollID][participantID] = ans
	return ans, nil
}

func parseAnswer(poll engine.Poll, raw json.RawMessage) (Answer, error) {
	var w struct {
		Selected json.RawMessage `json:"selected"`
		Rating   *int            `json:"rating"`
		Text     *string         `json:"text"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	switch poll.Type {
	case engine.PollSingle:
		var opt string
		if w.Selected == nil || json.Unmarshal(w.Selected, &opt) != nil {
			return Answer{}, fmt.Errorf("%w: single expects selected option", ErrInvalidAnswer)
		}
		if !slices.Contains(poll.Options, opt) {
			return Answer{}, fmt.Errorf("%w: option %q not in poll", ErrInvalidAnswer, opt)
		}
		return Answer{Selected: []string{opt}}, nil

	case engine.PollMultiple:
		var opts []string
		if w.Selected == nil || json.Unmarshal(w.Selected, &opts) != nil {
			return Answer{}, fmt.Errorf("%w: multiple expects selected options", ErrInvalidAnswer)
		}
		seen := make(map[string]bool, len(opts))
		dedup := make([]string, 0, len(opts))
		for _, opt := range opts {
			if !slices.Contains(poll.Options, opt) {
				return Answer{}, fmt.Errorf("%w: option %q not in poll", ErrInvalidAnswer, opt)
			}
			if !seen[opt] {
				seen[opt] = true
				dedup = append(dedup, opt)
			}
		}
		return Answer{Selected: dedup}, nil

	case engine.PollRating:
		if w.Rating == nil || *w.Rating < 1 || *w.Rating > 5 {
			return Answer{}, fmt.Errorf("%w: rating must be 1-5", ErrInvalidAnswer)
		}
		return Answer{Rating: *w.Rating}, nil

	case engine.PollText:
		if w.Text == nil {
			return Answer{}, fmt.Errorf("%w: text expects text field", ErrInvalidAnswer)
		}
		return Answer{Text: *w.Text}, nil

	default:
		return Answer{}, fmt.Errorf("%w: poll type %q", ErrInvalidAnswer, poll.Type)
	}
}

// Tally aggregates all stored submissions for a poll. It is read-only and
// deterministic: identical stored input yields identical output, regardless
// of the order submissions arrived in.
func (s *Store) Tally(pollID uint) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return Result{}, ErrUnknownPoll
	}

	subs := s.subs[pollID]
	total := len(subs)
	res := Result{VoteID: pollID, Type: poll.Type, TotalCount: total}

	switch poll.Type {
	case engine.PollSingle, engine.PollMultiple:
		counts := make(map[string]int, len(poll.Options))
		for _, ans := range subs {
			for _, opt := range ans.Selected {
				// Selections no longer in the declared option list are
				// skipped; stale data must not block a live display.
				if slices.Contains(poll.Options, opt) {
					counts[opt]++
				}
			}
		}
		for _, opt := range poll.Options {
			res.Results = append(res.Results, OptionResult{
				Option:     opt,
				Count:      counts[opt],
				Percentage: percentage(counts[opt], total),
			})
		}

	case engine.PollRating:
		var counts [5]int
		sum := 0
		for _, ans := range subs {
			if ans.Rating >= 1 && ans.Rating <= 5 {
				counts[ans.Rating-1]++
				sum += ans.Rating
			}
		}
		for star := 1; star <= 5; star++ {
			res.Results = append(res.Results, OptionResult{
				Option:     fmt.Sprintf("%d", star),
				Count:      counts[star-1],
				Percentage: percentage(counts[star-1], total),
			})
		}
		avg := 0.0
		if total > 0 {
			avg = math.Round(float64(sum)/float64(total)*100) / 100
		}
		res.Average = &avg

	case engine.PollText:
		ids := make([]uint, 0, len(subs))
		for id := range subs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		res.Answers = make([]TextAnswer, 0, len(ids))
		for _, id := range ids {
			name := s.names[id]
			if name == "" {
				name = "anonymous"
			}
			res.Answers = append(res.Answers, TextAnswer{Participant: name, Text: subs[id].Text})
		}
	}

	return res, nil
}

// Respondents reports how many participants have answered a poll.
func (s *Store) Respondents(pollID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[pollID])
}

// Reset wipes all polls, submissions and participants. Called when an
// activity is closed.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = make(map[uint]engine.Poll)
	s.subs = make(map[uint]map[uint]Answer)
	s.names = make(map[uint]string)
}

func percentage(count, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}
