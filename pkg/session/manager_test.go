package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

func setupTestManager(t *testing.T) (*Manager, *events.Broadcaster) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	broadcaster := events.NewBroadcaster(zerolog.Nop())
	t.Cleanup(broadcaster.Close)

	return NewManager(st, broadcaster, zerolog.Nop()), broadcaster
}

func testParams() CreateParams {
	return CreateParams{
		ScenarioTitle:    "Work authorization during pending asylum case",
		ScenarioCategory: "humanitarian",
		ModelID:          "gpt-4o",
		PersonaName:      "Amadou Diallo",
	}
}

func TestManager_Create(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.SessionKey)
	assert.Equal(t, string(StatusPending), sess.Status)
	assert.Equal(t, "gpt-4o", sess.ModelID)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestManager_CreateBatch(t *testing.T) {
	m, broadcaster := setupTestManager(t)
	ctx := context.Background()

	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	sessions, err := m.CreateBatch(ctx, []CreateParams{testParams(), testParams(), testParams()})
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	keys := map[string]bool{}
	for _, sess := range sessions {
		assert.Equal(t, string(StatusPending), sess.Status)
		keys[sess.SessionKey] = true
	}
	assert.Len(t, keys, 3, "session keys must be unique")

	for i := 0; i < 3; i++ {
		ev := <-ch
		assert.Equal(t, events.EventSessionCreated, ev.Event)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, testParams())
	require.NoError(t, err)

	require.NoError(t, m.Start(ctx, sess.ID))
	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusRunning), got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, m.Complete(ctx, sess.ID, 4))
	got, err = m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusCompleted), got.Status)
	assert.Equal(t, 4, got.TotalTurns)
	assert.NotNil(t, got.CompletedAt)
}

func TestManager_InvalidTransitions(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	t.Run("complete without start", func(t *testing.T) {
		sess, err := m.Create(ctx, testParams())
		require.NoError(t, err)

		err = m.Complete(ctx, sess.ID, 2)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, StatusPending, invalid.From)
		assert.Equal(t, StatusCompleted, invalid.To)
	})

	t.Run("terminal state absorbs", func(t *testing.T) {
		sess, err := m.Create(ctx, testParams())
		require.NoError(t, err)
		require.NoError(t, m.Start(ctx, sess.ID))
		require.NoError(t, m.Complete(ctx, sess.ID, 3))

		var invalid *InvalidTransitionError
		assert.ErrorAs(t, m.Fail(ctx, sess.ID, "boom"), &invalid)
		assert.ErrorAs(t, m.Timeout(ctx, sess.ID, 9), &invalid)
		assert.ErrorAs(t, m.Start(ctx, sess.ID), &invalid)

		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, string(StatusCompleted), got.Status)
		assert.Equal(t, 3, got.TotalTurns)
	})
}

func TestManager_Fail(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, testParams())
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, sess.ID))
	require.NoError(t, m.Fail(ctx, sess.ID, "persona turn 2: provider exploded"))

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusFailed), got.Status)
	assert.Equal(t, "persona turn 2: provider exploded", got.ErrorMessage)
}

func TestManager_Timeout(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, testParams())
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, sess.ID))
	require.NoError(t, m.Timeout(ctx, sess.ID, 8))

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusTimeout), got.Status)
	assert.Equal(t, 8, got.TotalTurns)
}

func TestManager_Cancel(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	t.Run("pending session", func(t *testing.T) {
		sess, err := m.Create(ctx, testParams())
		require.NoError(t, err)
		require.NoError(t, m.Cancel(ctx, sess.ID))

		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, string(StatusCancelled), got.Status)
	})

	t.Run("running session", func(t *testing.T) {
		sess, err := m.Create(ctx, testParams())
		require.NoError(t, err)
		require.NoError(t, m.Start(ctx, sess.ID))
		require.NoError(t, m.Cancel(ctx, sess.ID))

		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, string(StatusCancelled), got.Status)
	})

	t.Run("terminal session is a no-op", func(t *testing.T) {
		sess, err := m.Create(ctx, testParams())
		require.NoError(t, err)
		require.NoError(t, m.Start(ctx, sess.ID))
		require.NoError(t, m.Complete(ctx, sess.ID, 2))

		assert.NoError(t, m.Cancel(ctx, sess.ID))

		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, string(StatusCompleted), got.Status)
	})
}

func TestManager_RecordTurnAndMessages(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, testParams())
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, sess.ID))

	require.NoError(t, m.AppendMessage(ctx, store.Message{
		SessionID: sess.ID, Role: "user", Content: "hello", TurnNumber: 1,
	}))
	require.NoError(t, m.AppendMessage(ctx, store.Message{
		SessionID: sess.ID, Role: "assistant", Content: "hi there", TurnNumber: 1,
	}))
	require.NoError(t, m.RecordTurn(ctx, sess.ID, 1))

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalTurns)

	msgs, err := m.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestManager_AppendMessageRejectsEmptyRole(t *testing.T) {
	m, _ := setupTestManager(t)

	sess, err := m.Create(context.Background(), testParams())
	require.NoError(t, err)

	err = m.AppendMessage(context.Background(), store.Message{SessionID: sess.ID, Content: "x"})
	assert.Error(t, err)
}
