package botlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"libchat/internal/models"
)

// MemoryStore is a process-lifetime Store. Each session has its own mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*memorySession
}

type memorySession struct {
	mu          sync.Mutex
	userName    string
	lastUpdated time.Time
	messages    []models.ChatMessage
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*memorySession)}
}

func (s *MemoryStore) session(userID int64, create bool) *memorySession {
	s.mu.RLock()
	sess := s.sessions[userID]
	s.mu.RUnlock()
	if sess != nil || !create {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[userID]; sess == nil {
		sess = &memorySession{}
		s.sessions[userID] = sess
	}
	return sess
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, userID int64, msg models.ChatMessage) (models.ChatMessage, error) {
	if userID <= 0 {
		return models.ChatMessage{}, ErrInvalidUser
	}
	sess := s.session(userID, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	msg = stamp(msg, sess.lastUpdated)
	sess.messages = append(sess.messages, msg)
	sess.lastUpdated = msg.CreatedAt
	return msg, nil
}

// Messages implements Store.
func (s *MemoryStore) Messages(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	return s.Recent(ctx, userID, 0)
}

// Recent implements Store; n <= 0 returns the whole log.
func (s *MemoryStore) Recent(_ context.Context, userID int64, n int) ([]models.ChatMessage, error) {
	sess := s.session(userID, false)
	if sess == nil {
		return []models.ChatMessage{}, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	src := tail(sess.messages, n)
	out := make([]models.ChatMessage, len(src))
	copy(out, src)
	return out, nil
}

// Sessions implements Store, newest activity first.
func (s *MemoryStore) Sessions(_ context.Context) ([]models.BotSession, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.sessions))
	sessions := make([]*memorySession, 0, len(s.sessions))
	for id, sess := range s.sessions {
		ids = append(ids, id)
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]models.BotSession, 0, len(ids))
	for i, sess := range sessions {
		sess.mu.Lock()
		summary := models.BotSession{
			UserID:       ids[i],
			UserName:     sess.userName,
			LastUpdated:  sess.lastUpdated,
			MessageCount: len(sess.messages),
		}
		if n := len(sess.messages); n > 0 {
			last := sess.messages[n-1]
			summary.LastMessage = &last
		}
		sess.mu.Unlock()
		if summary.MessageCount == 0 {
			continue
		}
		out = append(out, summary)
	}
	sortSessions(out)
	return out, nil
}

// SetUserName implements Store.
func (s *MemoryStore) SetUserName(_ context.Context, userID int64, name string) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if name == "" {
		return nil
	}
	sess := s.session(userID, true)
	sess.mu.Lock()
	sess.userName = name
	sess.mu.Unlock()
	return nil
}

func sortSessions(sessions []models.BotSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].LastUpdated.Equal(sessions[j].LastUpdated) {
			return sessions[i].UserID < sessions[j].UserID
		}
		return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
	})
}
