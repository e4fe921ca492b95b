// Package support manages human-assisted chat sessions between patrons and library staff.
package support

import (
	"context"
	"errors"

	"libchat/internal/models"
)

var (
	// ErrSessionNotFound distinguishes "no such session" from "no messages yet".
	ErrSessionNotFound = errors.New("support session not found")
	// ErrSessionResolved is returned for writes to a terminal session.
	ErrSessionResolved = errors.New("support session already resolved")
	// ErrSenderNotFound is returned when a sender id has no account.
	ErrSenderNotFound = errors.New("sender not found")
	// ErrNotParticipant is returned when a patron writes into another patron's session.
	ErrNotParticipant = errors.New("sender is not a participant of this session")
	// ErrEmptyMessage is returned for blank message text.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrInvalidUser is returned for non-positive user ids.
	ErrInvalidUser = errors.New("invalid user id")
)

// Store persists support sessions and their messages.
type Store interface {
	CreateSession(ctx context.Context, userID int64) (*models.SupportSession, error)
	Session(ctx context.Context, sessionID int64) (*models.SupportSession, error)
	// ActiveSession returns the newest Pending or InProgress session of a user, or ErrSessionNotFound.
	ActiveSession(ctx context.Context, userID int64) (*models.SupportSession, error)
	ListSessions(ctx context.Context) ([]models.SupportSession, error)
	// AddMessage stores msg and touches the session in one transaction. With pickup set, a
	// Pending session also becomes InProgress in that transaction.
	AddMessage(ctx context.Context, msg models.SupportMessage, pickup bool) (*models.SupportMessage, error)
	// Messages returns messages with id > afterID in ascending order.
	Messages(ctx context.Context, sessionID, afterID int64) ([]models.SupportMessage, error)
	// SetStatus moves a session from one status to another; it reports false when the
	// session was not in from.
	SetStatus(ctx context.Context, sessionID int64, from, to models.SupportStatus) (bool, error)
}
