// Package session owns the evaluation session lifecycle. All status changes
// go through the Manager, which enforces the transition graph and emits a
// lifecycle event for every accepted change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// CreateParams identifies the (scenario, persona, model) triple a new
// session will evaluate.
type CreateParams struct {
	ScenarioTitle    string
	ScenarioCategory string
	ModelID          string
	PersonaName      string
}

// Manager coordinates session state. Transitions on the same session are
// serialized through a per-session lock so concurrent callers cannot race a
// session past a terminal state.
type Manager struct {
	store  *store.Store
	events *events.Broadcaster
	logger zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a session manager.
func NewManager(st *store.Store, broadcaster *events.Broadcaster, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  st,
		events: broadcaster,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the lock for one session id. Entries are never pruned;
// the map is bounded by the number of sessions in a run, which is fine for
// a run-to-completion process. A long-lived embedding would want cleanup on
// terminal transition.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	if lock, ok := m.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.locks[id] = lock
	return lock
}

func newSessionKey() string {
	key, err := gonanoid.New(12)
	if err != nil {
		// gonanoid only fails when the entropy source does
		return uuid.NewString()
	}
	return key
}

// Create inserts a new pending session and returns it.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*store.Session, error) {
	sess := store.Session{
		ID:               uuid.NewString(),
		SessionKey:       newSessionKey(),
		ScenarioTitle:    params.ScenarioTitle,
		ScenarioCategory: params.ScenarioCategory,
		ModelID:          params.ModelID,
		PersonaName:      params.PersonaName,
		Status:           string(StatusPending),
		CreatedAt:        time.Now(),
	}

	if err := m.store.InsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info().
		Str("sessionId", sess.ID).
		Str("scenario", sess.ScenarioTitle).
		Str("model", sess.ModelID).
		Msg("Session created")
	m.events.Publish(events.EventSessionCreated, sessionEvent(&sess))

	return &sess, nil
}

// CreateBatch inserts one pending session per params entry in a single
// transaction, so a partially created batch never becomes visible.
func (m *Manager) CreateBatch(ctx context.Context, batch []CreateParams) ([]store.Session, error) {
	now := time.Now()
	sessions := make([]store.Session, 0, len(batch))
	for _, params := range batch {
		sessions = append(sessions, store.Session{
			ID:               uuid.NewString(),
			SessionKey:       newSessionKey(),
			ScenarioTitle:    params.ScenarioTitle,
			ScenarioCategory: params.ScenarioCategory,
			ModelID:          params.ModelID,
			PersonaName:      params.PersonaName,
			Status:           string(StatusPending),
			CreatedAt:        now,
		})
	}

	if err := m.store.InsertSessions(ctx, sessions); err != nil {
		return nil, fmt.Errorf("failed to create session batch: %w", err)
	}

	m.logger.Info().Int("count", len(sessions)).Msg("Session batch created")
	for i := range sessions {
		m.events.Publish(events.EventSessionCreated, sessionEvent(&sessions[i]))
	}
	return sessions, nil
}

// Start moves a pending session to running and stamps startedAt.
func (m *Manager) Start(ctx context.Context, id string) error {
	now := time.Now()
	return m.transition(ctx, id, StatusRunning, events.EventSessionStarted, store.SessionPatch{
		StartedAt: &now,
	})
}

// Complete moves a running session to completed with its final turn count.
func (m *Manager) Complete(ctx context.Context, id string, totalTurns int) error {
	now := time.Now()
	return m.transition(ctx, id, StatusCompleted, events.EventSessionCompleted, store.SessionPatch{
		TotalTurns:  &totalTurns,
		CompletedAt: &now,
	})
}

// Fail moves a session to failed with the error that killed it.
func (m *Manager) Fail(ctx context.Context, id string, errMsg string) error {
	now := time.Now()
	return m.transition(ctx, id, StatusFailed, events.EventSessionFailed, store.SessionPatch{
		ErrorMessage: &errMsg,
		CompletedAt:  &now,
	})
}

// Timeout moves a running session to timeout after it hit the scenario's
// turn ceiling without meeting a stop condition.
func (m *Manager) Timeout(ctx context.Context, id string, totalTurns int) error {
	now := time.Now()
	return m.transition(ctx, id, StatusTimeout, events.EventSessionTimeout, store.SessionPatch{
		TotalTurns:  &totalTurns,
		CompletedAt: &now,
	})
}

// Cancel moves a pending or running session to cancelled. Cancelling a
// session that already reached a terminal state is a no-op.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	now := time.Now()
	err := m.transition(ctx, id, StatusCancelled, events.EventSessionCancelled, store.SessionPatch{
		CompletedAt: &now,
	})
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) && invalid.From.Terminal() {
		return nil
	}
	return err
}

// RecordTurn bumps the persisted turn counter and emits a turn event.
func (m *Manager) RecordTurn(ctx context.Context, id string, totalTurns int) error {
	if err := m.store.PatchSession(ctx, id, store.SessionPatch{TotalTurns: &totalTurns}); err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	m.events.Publish(events.EventTurnCompleted, map[string]interface{}{
		"sessionId":  id,
		"totalTurns": totalTurns,
	})
	return nil
}

// AppendMessage persists one message in the session transcript.
func (m *Manager) AppendMessage(ctx context.Context, msg store.Message) error {
	if msg.Role == "" {
		return fmt.Errorf("message role cannot be empty")
	}
	return m.store.InsertMessage(ctx, msg)
}

// Get fetches a session by id.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	return m.store.GetSession(ctx, id)
}

// Messages returns the session transcript in turn order.
func (m *Manager) Messages(ctx context.Context, id string) ([]store.Message, error) {
	return m.store.OrderedMessages(ctx, id)
}

func (m *Manager) transition(ctx context.Context, id string, to Status, event string, patch store.SessionPatch) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}

	from := Status(sess.Status)
	if !CanTransition(from, to) {
		return &InvalidTransitionError{SessionID: id, From: from, To: to}
	}

	status := string(to)
	patch.Status = &status
	if err := m.store.PatchSession(ctx, id, patch); err != nil {
		return fmt.Errorf("failed to transition session %s to %s: %w", id, to, err)
	}

	m.logger.Info().
		Str("sessionId", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Session transitioned")

	updated, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	m.events.Publish(event, sessionEvent(updated))
	return nil
}

func sessionEvent(sess *store.Session) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":  sess.ID,
		"sessionKey": sess.SessionKey,
		"scenario":   sess.ScenarioTitle,
		"category":   sess.ScenarioCategory,
		"model":      sess.ModelID,
		"persona":    sess.PersonaName,
		"status":     sess.Status,
		"totalTurns": sess.TotalTurns,
	}
}
