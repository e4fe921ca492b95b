// Package directory resolves user ids to display names and roles.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"libchat/internal/logger"
	"libchat/internal/metrics"
	"libchat/internal/models"
	redisclient "libchat/internal/redis"
)

// ErrUserNotFound is returned when no account exists for an id.
var ErrUserNotFound = errors.New("user not found")

const (
	cacheTTL    = 10 * time.Minute
	cacheModule = "directory"
)

// Directory is the user-account collaborator consumed by the chat core.
type Directory interface {
	Lookup(ctx context.Context, userID int64) (*models.User, error)
}

// Service is the SQL-backed directory with an optional redis read-through cache.
type Service struct {
	db      *sql.DB
	cache   *redisclient.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewService builds the directory. cache, log and m may be nil.
func NewService(db *sql.DB, cache *redisclient.Client, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{db: db, cache: cache, log: log.WithModule("directory"), metrics: m}
}

// CreateUser registers an account.
func (s *Service) CreateUser(ctx context.Context, username, displayName string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if displayName == "" {
		displayName = username
	}
	role, err := normalizeRole(role)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, role, created_at) VALUES (?, ?, ?, ?)`,
		username, displayName, string(role), now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Username: username, DisplayName: displayName, Role: role, CreatedAt: now}, nil
}

// Lookup resolves a user id, consulting the cache first when one is configured.
func (s *Service) Lookup(ctx context.Context, userID int64) (*models.User, error) {
	if userID <= 0 {
		return nil, ErrUserNotFound
	}
	if user, ok := s.fromCache(ctx, userID); ok {
		return user, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, role, created_at FROM users WHERE id = ?`, userID,
	)
	var (
		user models.User
		role string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &role, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Role = models.Role(role)

	s.toCache(ctx, &user)
	return &user, nil
}

// SyncUser creates the account for username, or updates display name and role of the
// existing one and drops its cached entry.
func (s *Service) SyncUser(ctx context.Context, username, displayName string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.CreateUser(ctx, username, displayName, role)
	case err != nil:
		return nil, fmt.Errorf("query user %s: %w", username, err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}
	if role, err = normalizeRole(role); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, role = ? WHERE id = ?`, displayName, string(role), id,
	); err != nil {
		return nil, fmt.Errorf("update user %s: %w", username, err)
	}
	s.invalidate(ctx, id)
	return s.Lookup(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(userID)); err != nil {
		s.log.WithError(err).Warn("drop cached user failed", "user_id", userID)
	}
}

func (s *Service) fromCache(ctx context.Context, userID int64) (*models.User, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(userID))
	if err != nil {
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			s.log.WithError(err).Warn("read cached user failed", "user_id", userID)
		}
		s.metrics.RecordCacheMiss(cacheModule)
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.WithError(err).Warn("decode cached user failed", "user_id", userID)
		s.metrics.RecordCacheMiss(cacheModule)
		return nil, false
	}
	s.metrics.RecordCacheHit(cacheModule)
	return &user, true
}

func (s *Service) toCache(ctx context.Context, user *models.User) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(user.ID), payload, cacheTTL); err != nil {
		s.log.WithError(err).Warn("cache user failed", "user_id", user.ID)
	}
}

func normalizeRole(role models.Role) (models.Role, error) {
	switch role {
	case models.RoleStudent, models.RoleLibrarian, models.RoleAdmin:
		return role, nil
	case "":
		return models.RoleStudent, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
