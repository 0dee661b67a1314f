// Package store is the persistence layer beneath the live session: plain
// CRUD over activities, polls, participants and submissions. The session
// treats it as an always-available synchronous collaborator.
package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Activity{}, &Poll{}, &Participant{}, &Submission{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateActivity(name, theme string) (Activity, error) {
	a := Activity{Name: name, Theme: theme, Status: "pending"}
	if err := s.db.Create(&a).Error; err != nil {
		return Activity{}, err
	}
	return a, nil
}

func (s *Store) UpdateActivityStatus(id uint, status string) error {
	res := s.db.Model(&Activity{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreatePoll(activityID uint, title, pollType string, options []string, orderIndex int) (Poll, error) {
	encoded, err := EncodeOptions(options)
	if err != nil {
		return Poll{}, err
	}
	p := Poll{ActivityID: activityID, Title: title, Type: pollType, Options: encoded, OrderIndex: orderIndex}
	if err := s.db.Create(&p).Error; err != nil {
		return Poll{}, err
	}
	return p, nil
}

func (s *Store) GetPoll(id uint) (Poll, error) {
	var p Poll
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Poll{}, ErrNotFound
		}
		return Poll{}, err
	}
	return p, nil
}

func (s *Store) ListPolls(activityID uint) ([]Poll, error) {
	var polls []Poll
	err := s.db.Where("activity_id = ?", activityID).Order("order_index").Find(&polls).Error
	return polls, err
}

func (s *Store) CreateParticipant(activityID uint, name, department, role, sessionID string) (Participant, error) {
	p := Participant{ActivityID: activityID, Name: name, Department: department, Role: role, SessionID: sessionID}
	if err := s.db.Create(&p).Error; err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (s *Store) ParticipantBySession(sessionID string) (Participant, error) {
	var p Participant
	if err := s.db.Where("session_id = ?", sessionID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, err
	}
	return p, nil
}

func (s *Store) HostParticipant(activityID uint) (Participant, error) {
	var p Participant
	err := s.db.Where("activity_id = ? AND role = ?", activityID, "host").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, err
	}
	return p, nil
}

func (s *Store) CountParticipants(activityID uint) (int, error) {
	var n int64
	err := s.db.Model(&Participant{}).Where("activity_id = ?", activityID).Count(&n).Error
	return int(n), err
}

func (s *Store) ListParticipants(activityID uint) ([]Participant, error) {
	var parts []Participant
	err := s.db.Where("activity_id = ?", activityID).Order("id").Find(&parts).Error
	return parts, err
}

// SaveSubmission upserts on (poll_id, participant_id): a resubmission
// overwrites the stored answer instead of adding a row.
func (s *Store) SaveSubmission(pollID, participantID uint, answer string) error {
	sub := Submission{PollID: pollID, ParticipantID: participantID, Answer: answer}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "poll_id"}, {Name: "participant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "voted_at"}),
	}).Create(&sub).Error
}

func (s *Store) ListSubmissions(pollID uint) ([]Submission, error) {
	var subs []Submission
	err := s.db.Where("poll_id = ?", pollID).Order("participant_id").Find(&subs).Error
	return subs, err
}

// ResetActivityData wipes the activity's submissions and participants
// after a close. Poll definitions and the activity row stay as history.
func (s *Store) ResetActivityData(activityID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&Poll{}).Select("id").Where("activity_id = ?", activityID)
		if err := tx.Where("poll_id IN (?)", sub).Delete(&Submission{}).Error; err != nil {
			return err
		}
		return tx.Where("activity_id = ?", activityID).Delete(&Participant{}).Error
	})
}
