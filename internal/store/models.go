package store

import (
	"encoding/json"
	"time"
)

type Activity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Theme     string    `gorm:"size:500" json:"theme,omitempty"`
	Status    string    `gorm:"size:20;default:pending" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Poll stores options as a JSON text column, mirroring the answer column:
// the set is small, ordered, and only ever read back whole.
type Poll struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ActivityID uint   `gorm:"index;not null" json:"activity_id"`
	Title      string `gorm:"size:500;not null" json:"title"`
	Type       string `gorm:"size:20;not null" json:"type"`
	Options    string `gorm:"type:text" json:"-"`
	OrderIndex int    `json:"order_index"`
}

func (p Poll) OptionList() []string {
	if p.Options == "" {
		return nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(p.Options), &opts); err != nil {
		return nil
	}
	return opts
}

func EncodeOptions(opts []string) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type Participant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"index;not null" json:"activity_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Department string    `gorm:"size:200" json:"department,omitempty"`
	Role       string    `gorm:"size:20;default:participant" json:"role"`
	SessionID  string    `gorm:"size:100;uniqueIndex" json:"-"`
	SignedInAt time.Time `gorm:"autoCreateTime" json:"signed_in_at"`
}

type Submission struct {
	ID            uint      `gorm:"primaryKey"`
	PollID        uint      `gorm:"not null;uniqueIndex:idx_poll_participant"`
	ParticipantID uint      `gorm:"not null;uniqueIndex:idx_poll_participant"`
	Answer        string    `gorm:"type:text;not null"`
	VotedAt       time.Time `gorm:"autoUpdateTime"`
}
