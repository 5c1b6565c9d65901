package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hembot/hembot/src/dialog"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening the same file reruns no migrations.
	db, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestSession_CreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s := &Session{State: JSONState{State: dialog.NewState()}}
	require.NoError(t, CreateSession(ctx, db.DB(), s))
	assert.NotEmpty(t, s.ID)

	got, err := GetSessionByID(ctx, db.DB(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, -1, got.State.LastMentioned)
}

func TestSession_GetMissingReturnsNil(t *testing.T) {
	db := testDB(t)

	got, err := GetSessionByID(context.Background(), db.DB(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	latest, err := GetLatestSession(context.Background(), db.DB())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSession_StateRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s := &Session{State: JSONState{State: dialog.NewState()}}
	require.NoError(t, CreateSession(ctx, db.DB(), s))

	state := dialog.NewState()
	state.History = []dialog.Turn{
		{Role: dialog.RoleUser, Text: "black office chair under $200"},
		{Role: dialog.RoleAssistant, Text: "Here are some options."},
	}
	state.CartItems = []dialog.CartItem{
		{ID: "p1", Name: "MARKUS office chair", Price: "229.00", AddedAt: time.Now()},
	}
	state.LastMentioned = 2
	state.PendingSearch = &dialog.SearchContext{Category: "office chairs"}

	require.NoError(t, UpdateSessionState(ctx, db.DB(), s.ID, state))

	got, err := GetSessionByID(ctx, db.DB(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.State.History, 2)
	assert.Equal(t, "black office chair under $200", got.State.History[0].Text)
	require.Len(t, got.State.CartItems, 1)
	assert.Equal(t, "MARKUS office chair", got.State.CartItems[0].Name)
	assert.Equal(t, 2, got.State.LastMentioned)
	require.NotNil(t, got.State.PendingSearch)
	assert.Equal(t, "office chairs", got.State.PendingSearch.Category)
}

func TestSession_GetLatestOrdersByUpdate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	old := &Session{
		State:     JSONState{State: dialog.NewState()},
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, CreateSession(ctx, db.DB(), old))

	fresh := &Session{State: JSONState{State: dialog.NewState()}}
	require.NoError(t, CreateSession(ctx, db.DB(), fresh))

	latest, err := GetLatestSession(ctx, db.DB())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, fresh.ID, latest.ID)

	sessions, err := ListSessions(ctx, db.DB())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, fresh.ID, sessions[0].ID)
}

func TestMessages_TranscriptOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s := &Session{State: JSONState{State: dialog.NewState()}}
	require.NoError(t, CreateSession(ctx, db.DB(), s))

	base := time.Now().Add(-time.Minute)
	for i, m := range []Message{
		{SessionID: s.ID, Role: "user", Content: "hello"},
		{SessionID: s.ID, Role: "assistant", Content: "hi, what are you looking for?"},
		{SessionID: s.ID, Role: "user", Content: "a desk"},
	} {
		m := m
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, CreateMessage(ctx, db.DB(), &m))
	}

	messages, err := GetMessagesBySessionID(ctx, db.DB(), s.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "a desk", messages[2].Content)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestJSONState_ScanDefaults(t *testing.T) {
	var j JSONState
	require.NoError(t, j.Scan(nil))
	assert.Equal(t, -1, j.State.LastMentioned)

	require.NoError(t, j.Scan("{}"))
	assert.Equal(t, -1, j.State.LastMentioned)

	require.NoError(t, j.Scan([]byte(`{"last_mentioned_product_index": 3}`)))
	assert.Equal(t, 3, j.State.LastMentioned)

	assert.Error(t, j.Scan(42))
}
