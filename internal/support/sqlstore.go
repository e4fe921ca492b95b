package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"libchat/internal/models"
)

// SQLStore implements Store on the support_sessions and support_messages tables.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore builds a SQL-backed store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateSession inserts a Pending session.
func (s *SQLStore) CreateSession(ctx context.Context, userID int64) (*models.SupportSession, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO support_sessions (user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		userID, string(models.SupportPending), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create support session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("support session id: %w", err)
	}
	return &models.SupportSession{
		ID:        id,
		UserID:    userID,
		Status:    models.SupportPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const sessionColumns = `s.id, s.user_id, COALESCE(u.display_name, ''), s.status, s.created_at, s.updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.SupportSession, error) {
	var (
		sess   models.SupportSession
		status string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.UserName, &status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	sess.Status = models.SupportStatus(status)
	return &sess, nil
}

// Session loads one session with the requester's display name.
func (s *SQLStore) Session(ctx context.Context, sessionID int64) (*models.SupportSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM support_sessions s LEFT JOIN users u ON u.id = s.user_id
		 WHERE s.id = ?`, sessionID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get support session: %w", err)
	}
	return sess, nil
}

// ActiveSession implements Store.
func (s *SQLStore) ActiveSession(ctx context.Context, userID int64) (*models.SupportSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM support_sessions s LEFT JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = ? AND s.status IN (?, ?)
		 ORDER BY s.created_at DESC, s.id DESC
		 LIMIT 1`,
		userID, string(models.SupportPending), string(models.SupportInProgress),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active support session: %w", err)
	}
	return sess, nil
}

// ListSessions returns every session joined with the requester name, newest first.
func (s *SQLStore) ListSessions(ctx context.Context) ([]models.SupportSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM support_sessions s LEFT JOIN users u ON u.id = s.user_id
		 ORDER BY s.created_at DESC, s.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list support sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.SupportSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan support session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// AddMessage implements Store.
func (s *SQLStore) AddMessage(ctx context.Context, msg models.SupportMessage, pickup bool) (_ *models.SupportMessage, err error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO support_messages (session_id, sender_id, sender_role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.SenderID, string(msg.SenderRole), msg.Content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert support message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("support message id: %w", err)
	}
	if pickup {
		_, err = tx.ExecContext(ctx,
			`UPDATE support_sessions SET updated_at = ?, status = CASE WHEN status = ? THEN ? ELSE status END WHERE id = ?`,
			now, string(models.SupportPending), string(models.SupportInProgress), msg.SessionID,
		)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE support_sessions SET updated_at = ? WHERE id = ?`, now, msg.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("touch support session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit support message: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return &msg, nil
}

// Messages implements Store.
func (s *SQLStore) Messages(ctx context.Context, sessionID, afterID int64) ([]models.SupportMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sender_id, sender_role, content, created_at
		 FROM support_messages
		 WHERE session_id = ? AND id > ?
		 ORDER BY id ASC`,
		sessionID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	defer rows.Close()

	messages := []models.SupportMessage{}
	for rows.Next() {
		var (
			m    models.SupportMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan support message: %w", err)
		}
		m.SenderRole = models.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SetStatus implements Store with a conditional update.
func (s *SQLStore) SetStatus(ctx context.Context, sessionID int64, from, to models.SupportStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE support_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), sessionID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update support session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("support session rows affected: %w", err)
	}
	return affected > 0, nil
}
