package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libchat/internal/directory"
	"libchat/internal/keylock"
	"libchat/internal/logger"
	"libchat/internal/metrics"
	"libchat/internal/models"
)

// Manager is the support-session state machine: Pending -> InProgress -> Resolved.
//
// Create-or-reuse is serialized per user and every write to a session is serialized per
// session. Locks are always taken user first, then session.
type Manager struct {
	store        Store
	users        directory.Directory
	log          *logger.Logger
	metrics      *metrics.Metrics
	userLocks    *keylock.Map[int64]
	sessionLocks *keylock.Map[int64]
}

// CreateResult reports the session an initial message landed in.
type CreateResult struct {
	Session *models.SupportSession `json:"session"`
	Message *models.SupportMessage `json:"message"`
	Created bool                   `json:"created"`
}

// ActiveStatus is the read-only view used by clients to resume polling.
type ActiveStatus struct {
	Active    bool                 `json:"active"`
	SessionID int64                `json:"sessionId,omitempty"`
	Status    models.SupportStatus `json:"status,omitempty"`
}

// NewManager builds a Manager. log and m may be nil.
func NewManager(store Store, users directory.Directory, log *logger.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		store:        store,
		users:        users,
		log:          log.WithModule("support"),
		metrics:      m,
		userLocks:    keylock.New[int64](),
		sessionLocks: keylock.New[int64](),
	}
}

// CreateSession opens a Pending session for userID, or reuses the active one, and appends
// initialMessage to it.
func (m *Manager) CreateSession(ctx context.Context, userID int64, initialMessage string) (*CreateResult, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	text := strings.TrimSpace(initialMessage)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	user, err := m.lookupSender(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlockUser := m.userLocks.Lock(userID)
	defer unlockUser()

	created := false
	sess, err := m.store.ActiveSession(ctx, userID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		sess, err = m.store.CreateSession(ctx, userID)
		if err != nil {
			return nil, err
		}
		sess.UserName = user.DisplayName
		created = true
	case err != nil:
		return nil, err
	}

	unlockSession := m.sessionLocks.Lock(sess.ID)
	if !created {
		// a staff Resolve may have landed between the lookup and the lock
		current, err := m.store.Session(ctx, sess.ID)
		if err != nil {
			unlockSession()
			return nil, err
		}
		if current.Status == models.SupportResolved {
			unlockSession()
			if sess, err = m.store.CreateSession(ctx, userID); err != nil {
				return nil, err
			}
			sess.UserName = user.DisplayName
			created = true
			unlockSession = m.sessionLocks.Lock(sess.ID)
		} else {
			sess = current
		}
	}
	defer unlockSession()

	msg, err := m.store.AddMessage(ctx, models.SupportMessage{
		SessionID:  sess.ID,
		SenderID:   userID,
		SenderRole: user.Role,
		Content:    text,
	}, false)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordSupportSession(created)
	m.metrics.RecordSupportMessage(string(user.Role))
	m.log.InfoContext(ctx, "support session requested",
		"session_id", sess.ID, "user_id", userID, "created", created)
	return &CreateResult{Session: sess, Message: msg, Created: created}, nil
}

// ActiveSession reports whether userID has a Pending or InProgress session.
func (m *Manager) ActiveSession(ctx context.Context, userID int64) (ActiveStatus, error) {
	if userID <= 0 {
		return ActiveStatus{}, nil
	}
	sess, err := m.store.ActiveSession(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ActiveStatus{}, nil
		}
		return ActiveStatus{}, err
	}
	return ActiveStatus{Active: true, SessionID: sess.ID, Status: sess.Status}, nil
}

// ListSessions is the staff inbox, newest first.
func (m *Manager) ListSessions(ctx context.Context) ([]models.SupportSession, error) {
	return m.store.ListSessions(ctx)
}

// Session returns one session.
func (m *Manager) Session(ctx context.Context, sessionID int64) (*models.SupportSession, error) {
	return m.store.Session(ctx, sessionID)
}

// Messages returns messages of a session in ascending order, optionally only those after afterID.
// An unknown session is ErrSessionNotFound so callers can tell it apart from an empty log.
func (m *Manager) Messages(ctx context.Context, sessionID, afterID int64) ([]models.SupportMessage, error) {
	if _, err := m.store.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	if afterID < 0 {
		afterID = 0
	}
	return m.store.Messages(ctx, sessionID, afterID)
}

// SendMessage appends text from senderID. A staff sender is the only way a Pending session
// becomes InProgress; the message and that transition commit together.
func (m *Manager) SendMessage(ctx context.Context, sessionID, senderID int64, text string) (*models.SupportMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	sender, err := m.lookupSender(ctx, senderID)
	if err != nil {
		return nil, err
	}

	unlock := m.sessionLocks.Lock(sessionID)
	defer unlock()

	sess, err := m.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SupportResolved {
		return nil, ErrSessionResolved
	}
	staff := sender.Role.IsStaff()
	if !staff && sess.UserID != senderID {
		return nil, ErrNotParticipant
	}

	pickup := staff && sess.Status == models.SupportPending
	msg, err := m.store.AddMessage(ctx, models.SupportMessage{
		SessionID:  sessionID,
		SenderID:   senderID,
		SenderRole: sender.Role,
		Content:    text,
	}, pickup)
	if err != nil {
		return nil, err
	}
	if pickup {
		m.log.InfoContext(ctx, "support session picked up", "session_id", sessionID, "staff_id", senderID)
	}
	m.metrics.RecordSupportMessage(string(sender.Role))
	return msg, nil
}

// Resolve closes an active session. Resolving a resolved session is a no-op.
func (m *Manager) Resolve(ctx context.Context, sessionID int64) (*models.SupportSession, error) {
	unlock := m.sessionLocks.Lock(sessionID)
	defer unlock()

	sess, err := m.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SupportResolved {
		return sess, nil
	}
	if _, err := m.store.SetStatus(ctx, sessionID, sess.Status, models.SupportResolved); err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "support session resolved", "session_id", sessionID)
	return m.store.Session(ctx, sessionID)
}

func (m *Manager) lookupSender(ctx context.Context, userID int64) (*models.User, error) {
	user, err := m.users.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, fmt.Errorf("lookup sender: %w", err)
	}
	return user, nil
}
