package support

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"libchat/internal/directory"
	"libchat/internal/models"
	"libchat/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db        *sql.DB
	manager   *Manager
	student   *models.User
	other     *models.User
	librarian *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.NewSQLite(t)
	users := directory.NewService(db, nil, nil, nil)
	ctx := context.Background()

	student, err := users.CreateUser(ctx, "an", "Nguyen An", models.RoleStudent)
	require.NoError(t, err)
	other, err := users.CreateUser(ctx, "binh", "Tran Binh", models.RoleStudent)
	require.NoError(t, err)
	librarian, err := users.CreateUser(ctx, "lan", "Cô Lan", models.RoleLibrarian)
	require.NoError(t, err)

	return &fixture{
		db:        db,
		manager:   NewManager(NewSQLStore(db), users, nil, nil),
		student:   student,
		other:     other,
		librarian: librarian,
	}
}

func TestCreateSessionReusesActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.CreateSession(ctx, f.student.ID, "Em cần hỗ trợ")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, models.SupportPending, first.Session.Status)

	second, err := f.manager.CreateSession(ctx, f.student.ID, "Có ai không ạ?")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Session.ID, second.Session.ID)

	msgs, err := f.manager.Messages(ctx, first.Session.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Em cần hỗ trợ", msgs[0].Content)
	assert.Equal(t, "Có ai không ạ?", msgs[1].Content)
	assert.Equal(t, models.RoleStudent, msgs[0].SenderRole)
}

func TestConcurrentCreateYieldsOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 10
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.manager.CreateSession(ctx, f.student.ID, "help")
			if assert.NoError(t, err) {
				ids[i] = res.Session.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	sessions, err := f.manager.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	msgs, err := f.manager.Messages(ctx, ids[0], 0)
	require.NoError(t, err)
	assert.Len(t, msgs, callers)
}

func TestStaffReplyAdvancesAndStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.CreateSession(ctx, f.student.ID, "hello")
	require.NoError(t, err)
	sessionID := res.Session.ID

	// patron follow-up keeps it pending
	_, err = f.manager.SendMessage(ctx, sessionID, f.student.ID, "still there?")
	require.NoError(t, err)
	active, err := f.manager.ActiveSession(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportPending, active.Status)

	_, err = f.manager.SendMessage(ctx, sessionID, f.librarian.ID, "Chào em, cô nghe đây")
	require.NoError(t, err)
	active, err = f.manager.ActiveSession(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, ActiveStatus{Active: true, SessionID: sessionID, Status: models.SupportInProgress}, active)

	_, err = f.manager.SendMessage(ctx, sessionID, f.student.ID, "cảm ơn cô")
	require.NoError(t, err)
	sess, err := f.manager.Session(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportInProgress, sess.Status)

	msgs, err := f.manager.Messages(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleLibrarian, msgs[2].SenderRole)
}

func TestResolveIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.CreateSession(ctx, f.student.ID, "hello")
	require.NoError(t, err)

	resolved, err := f.manager.Resolve(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportResolved, resolved.Status)

	again, err := f.manager.Resolve(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportResolved, again.Status)

	_, err = f.manager.SendMessage(ctx, res.Session.ID, f.librarian.ID, "late reply")
	assert.True(t, errors.Is(err, ErrSessionResolved))

	active, err := f.manager.ActiveSession(ctx, f.student.ID)
	require.NoError(t, err)
	assert.False(t, active.Active)

	next, err := f.manager.CreateSession(ctx, f.student.ID, "new question")
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.NotEqual(t, res.Session.ID, next.Session.ID)
}

func TestUnknownSessionIsDistinctFromEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Messages(ctx, 9999, 0)
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.manager.SendMessage(ctx, 9999, f.librarian.ID, "hi")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.manager.Resolve(ctx, 9999)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.CreateSession(ctx, f.student.ID, "hello")
	require.NoError(t, err)

	_, err = f.manager.SendMessage(ctx, res.Session.ID, f.student.ID, "   ")
	assert.True(t, errors.Is(err, ErrEmptyMessage))

	_, err = f.manager.SendMessage(ctx, res.Session.ID, 777, "who am i")
	assert.True(t, errors.Is(err, ErrSenderNotFound))

	_, err = f.manager.SendMessage(ctx, res.Session.ID, f.other.ID, "not mine")
	assert.True(t, errors.Is(err, ErrNotParticipant))

	_, err = f.manager.CreateSession(ctx, 0, "anon")
	assert.True(t, errors.Is(err, ErrInvalidUser))
	_, err = f.manager.CreateSession(ctx, f.student.ID, "")
	assert.True(t, errors.Is(err, ErrEmptyMessage))
}

func TestMessagesAfterCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.CreateSession(ctx, f.student.ID, "one")
	require.NoError(t, err)
	second, err := f.manager.SendMessage(ctx, res.Session.ID, f.student.ID, "two")
	require.NoError(t, err)
	_, err = f.manager.SendMessage(ctx, res.Session.ID, f.librarian.ID, "three")
	require.NoError(t, err)

	newer, err := f.manager.Messages(ctx, res.Session.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "three", newer[0].Content)

	none, err := f.manager.Messages(ctx, res.Session.ID, newer[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListSessionsJoinsNameNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.CreateSession(ctx, f.student.ID, "a")
	require.NoError(t, err)
	second, err := f.manager.CreateSession(ctx, f.other.ID, "b")
	require.NoError(t, err)

	sessions, err := f.manager.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.Session.ID, sessions[0].ID)
	assert.Equal(t, "Tran Binh", sessions[0].UserName)
	assert.Equal(t, first.Session.ID, sessions[1].ID)
	assert.Equal(t, "Nguyen An", sessions[1].UserName)
}

func TestActiveSessionForUnknownUser(t *testing.T) {
	f := newFixture(t)
	active, err := f.manager.ActiveSession(context.Background(), 12345)
	require.NoError(t, err)
	assert.False(t, active.Active)
}

func TestStaffPickupCommitsWithMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.CreateSession(ctx, f.student.ID, "Em cần hỗ trợ")
	require.NoError(t, err)
	sessionID := res.Session.ID

	_, err = f.db.Exec(`CREATE TRIGGER block_pickup BEFORE UPDATE OF status ON support_sessions
		WHEN NEW.status = 'in_progress'
		BEGIN SELECT RAISE(ABORT, 'pickup blocked'); END`)
	require.NoError(t, err)

	_, err = f.manager.SendMessage(ctx, sessionID, f.librarian.ID, "Cô đây")
	require.Error(t, err)

	msgs, err := f.manager.Messages(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "failed pickup must not leave the staff message behind")
	sess, err := f.manager.Session(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportPending, sess.Status)

	// patron messages do not touch status and still go through
	_, err = f.manager.SendMessage(ctx, sessionID, f.student.ID, "Em chờ ạ")
	require.NoError(t, err)

	_, err = f.db.Exec(`DROP TRIGGER block_pickup`)
	require.NoError(t, err)
	_, err = f.manager.SendMessage(ctx, sessionID, f.librarian.ID, "Cô đây")
	require.NoError(t, err)
	sess, err = f.manager.Session(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SupportInProgress, sess.Status)
}
