package directory

import (
	"context"
	"errors"
	"testing"

	"libchat/internal/metrics"
	"libchat/internal/models"
	redisclient "libchat/internal/redis"
	"libchat/internal/storage/storagetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFromDatabase(t *testing.T) {
	db := storagetest.NewSQLite(t)
	svc := NewService(db, nil, nil, nil)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "thuthu", "Cô Lan", models.RoleLibrarian)
	require.NoError(t, err)

	got, err := svc.Lookup(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cô Lan", got.DisplayName)
	assert.Equal(t, models.RoleLibrarian, got.Role)
	assert.True(t, got.Role.IsStaff())
}

func TestLookupUnknownUser(t *testing.T) {
	svc := NewService(storagetest.NewSQLite(t), nil, nil, nil)

	_, err := svc.Lookup(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrUserNotFound))

	_, err = svc.Lookup(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestCreateUserDefaultsAndValidation(t *testing.T) {
	svc := NewService(storagetest.NewSQLite(t), nil, nil, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "an", "", "")
	require.NoError(t, err)
	assert.Equal(t, "an", user.DisplayName)
	assert.Equal(t, models.RoleStudent, user.Role)

	_, err = svc.CreateUser(ctx, "", "x", models.RoleStudent)
	assert.Error(t, err)
	_, err = svc.CreateUser(ctx, "bo", "Bo", models.Role("janitor"))
	assert.Error(t, err)
}

func TestLookupUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := redisclient.Connect(&goredis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer cache.Close()

	db := storagetest.NewSQLite(t)
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(db, cache, nil, m)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "an", "Nguyen An", models.RoleStudent)
	require.NoError(t, err)

	_, err = svc.Lookup(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(user.ID)))

	// served from cache even after the row changes
	_, err = db.Exec(`UPDATE users SET display_name = 'Renamed' WHERE id = ?`, user.ID)
	require.NoError(t, err)
	got, err := svc.Lookup(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen An", got.DisplayName)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues(cacheModule)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues(cacheModule)))

	synced, err := svc.SyncUser(ctx, "an", "Nguyen Van An", models.RoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, user.ID, synced.ID)
	assert.Equal(t, "Nguyen Van An", synced.DisplayName)
	assert.Equal(t, models.RoleLibrarian, synced.Role)

	got, err = svc.Lookup(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van An", got.DisplayName)
}

func TestSyncUserCreatesMissingAccount(t *testing.T) {
	svc := NewService(storagetest.NewSQLite(t), nil, nil, nil)
	ctx := context.Background()

	created, err := svc.SyncUser(ctx, "lan", "Cô Lan", models.RoleLibrarian)
	require.NoError(t, err)
	again, err := svc.SyncUser(ctx, "lan", "", "")
	require.NoError(t, err)

	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "lan", again.DisplayName)
	assert.Equal(t, models.RoleStudent, again.Role)
}
