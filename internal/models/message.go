package models

import "time"

// Sender identifies who wrote a bot-channel message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry of a bot-channel conversation.
// StaffName is set when a librarian answered through the bot channel.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	StaffName string    `json:"staff_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
