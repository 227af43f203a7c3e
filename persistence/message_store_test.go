package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/framework"
)

func storeFixture(t *testing.T) *SQLiteMessageStore {
	t.Helper()
	s, err := NewSQLiteMessageStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndHistoryPreserveOrder(t *testing.T) {
	s := storeFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "p1", "s1",
		framework.Message{Role: "user", Content: "hello"},
		framework.Message{Role: "assistant", Content: "hi there"},
	))
	require.NoError(t, s.Append(ctx, "p1", "s1",
		framework.Message{Role: "user", Content: "next question"},
	))

	history, err := s.History(ctx, "p1", "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "hello", history[0].Content)
	require.Equal(t, "assistant", history[1].Role)
	require.Equal(t, "next question", history[2].Content)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := storeFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "p1", "s1", framework.Message{Role: "user", Content: "a"}))
	require.NoError(t, s.Append(ctx, "p1", "s2", framework.Message{Role: "user", Content: "b"}))
	require.NoError(t, s.Append(ctx, "p2", "s1", framework.Message{Role: "user", Content: "c"}))

	h, err := s.History(ctx, "p1", "s1")
	require.NoError(t, err)
	require.Len(t, h, 1)
	require.Equal(t, "a", h[0].Content)
}

func TestClearRemovesOnlyOneSession(t *testing.T) {
	s := storeFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "p1", "s1", framework.Message{Role: "user", Content: "a"}))
	require.NoError(t, s.Append(ctx, "p1", "s2", framework.Message{Role: "user", Content: "b"}))
	require.NoError(t, s.Clear(ctx, "p1", "s1"))

	h, err := s.History(ctx, "p1", "s1")
	require.NoError(t, err)
	require.Empty(t, h)

	h, err = s.History(ctx, "p1", "s2")
	require.NoError(t, err)
	require.Len(t, h, 1)
}

func TestEmptyHistoryAndValidation(t *testing.T) {
	s := storeFixture(t)
	ctx := context.Background()

	h, err := s.History(ctx, "nope", "nothing")
	require.NoError(t, err)
	require.Empty(t, h)

	require.Error(t, s.Append(ctx, "", "s1", framework.Message{Role: "user", Content: "x"}))
	require.NoError(t, s.Append(ctx, "p1", "s1"), "zero messages is a no-op")
}
