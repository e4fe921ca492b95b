package models

import "time"

// BotSession summarises the bot-channel conversation of one user.
type BotSession struct {
	UserID       int64        `json:"user_id"`
	UserName     string       `json:"user_name,omitempty"`
	LastUpdated  time.Time    `json:"last_updated"`
	MessageCount int          `json:"message_count"`
	LastMessage  *ChatMessage `json:"last_message,omitempty"`
}

// SupportStatus is the state of a human-support session.
type SupportStatus string

const (
	SupportPending    SupportStatus = "pending"
	SupportInProgress SupportStatus = "in_progress"
	SupportResolved   SupportStatus = "resolved"
)

// Active reports whether the session still accepts the at-most-one-per-user slot.
func (s SupportStatus) Active() bool {
	return s == SupportPending || s == SupportInProgress
}

// SupportSession is a human-assisted conversation between a patron and library staff.
type SupportSession struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	UserName  string        `json:"user_name,omitempty"`
	Status    SupportStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SupportMessage is one entry of a support session, ordered by CreatedAt then ID.
type SupportMessage struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	SenderID   int64     `json:"sender_id"`
	SenderRole Role      `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
