// Package botlog keeps the append-only bot-channel history of every user.
package botlog

import (
	"context"
	"errors"
	"time"

	"libchat/internal/models"

	"github.com/google/uuid"
)

// ErrInvalidUser is returned for user ids that cannot own a session.
var ErrInvalidUser = errors.New("invalid user id")

// Store is the bot-channel session log.
//
// Append has upsert semantics: appending for an unseen user creates the session.
// Messages for an unknown user is an empty slice, never an error.
type Store interface {
	Append(ctx context.Context, userID int64, msg models.ChatMessage) (models.ChatMessage, error)
	Messages(ctx context.Context, userID int64) ([]models.ChatMessage, error)
	Recent(ctx context.Context, userID int64, n int) ([]models.ChatMessage, error)
	Sessions(ctx context.Context) ([]models.BotSession, error)
	SetUserName(ctx context.Context, userID int64, name string) error
}

// stamp fills id and a timestamp no earlier than last.
func stamp(msg models.ChatMessage, last time.Time) models.ChatMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if now.Before(last) {
		now = last
	}
	msg.CreatedAt = now
	return msg
}

func tail(msgs []models.ChatMessage, n int) []models.ChatMessage {
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
