package botlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"libchat/internal/models"
	redisclient "libchat/internal/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.Connect(&goredis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	rs, err := NewRedisStore(client)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func userMsg(text string) models.ChatMessage {
	return models.ChatMessage{Sender: models.SenderUser, Text: text}
}

func TestAppendPreservesOrder(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, text := range []string{"A", "B", "C"} {
				saved, err := store.Append(ctx, 1, userMsg(text))
				require.NoError(t, err)
				assert.NotEmpty(t, saved.ID)
				assert.False(t, saved.CreatedAt.IsZero())
			}

			msgs, err := store.Messages(ctx, 1)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, "A", msgs[0].Text)
			assert.Equal(t, "B", msgs[1].Text)
			assert.Equal(t, "C", msgs[2].Text)
			for i := 1; i < len(msgs); i++ {
				assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
			}
		})
	}
}

func TestUnknownUserHasEmptyHistory(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := store.Messages(context.Background(), 404)
			require.NoError(t, err)
			assert.NotNil(t, msgs)
			assert.Empty(t, msgs)
		})
	}
}

func TestAppendRejectsAnonymous(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Append(context.Background(), 0, userMsg("hi"))
			assert.True(t, errors.Is(err, ErrInvalidUser))
		})
	}
}

func TestRecentReturnsTail(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				_, err := store.Append(ctx, 3, userMsg(fmt.Sprint(i)))
				require.NoError(t, err)
			}
			recent, err := store.Recent(ctx, 3, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "3", recent[0].Text)
			assert.Equal(t, "4", recent[1].Text)

			all, err := store.Recent(ctx, 3, 10)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestSessionsSortedByLastUpdate(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetUserName(ctx, 10, "Nguyen An"))
			_, err := store.Append(ctx, 10, userMsg("first"))
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond)
			_, err = store.Append(ctx, 20, userMsg("second"))
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond)
			_, err = store.Append(ctx, 10, models.ChatMessage{Sender: models.SenderBot, Text: "reply"})
			require.NoError(t, err)

			sessions, err := store.Sessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.EqualValues(t, 10, sessions[0].UserID)
			assert.Equal(t, "Nguyen An", sessions[0].UserName)
			assert.Equal(t, 2, sessions[0].MessageCount)
			require.NotNil(t, sessions[0].LastMessage)
			assert.Equal(t, "reply", sessions[0].LastMessage.Text)
			assert.EqualValues(t, 20, sessions[1].UserID)
		})
	}
}

func TestConcurrentAppendsDoNotLoseWrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 25
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := store.Append(ctx, 5, userMsg(fmt.Sprint(i)))
					assert.NoError(t, err)
					_, err = store.Append(ctx, int64(100+i), userMsg("other"))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			msgs, err := store.Messages(ctx, 5)
			require.NoError(t, err)
			require.Len(t, msgs, writers)
			seen := make(map[string]bool, writers)
			for i, m := range msgs {
				seen[m.Text] = true
				if i > 0 {
					assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
				}
			}
			assert.Len(t, seen, writers)
		})
	}
}
