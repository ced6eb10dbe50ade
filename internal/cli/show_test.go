package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

func TestPrintTranscript(t *testing.T) {
	st := setupTestStore(t)
	seedEvaluatedSession(t, st)

	var buf bytes.Buffer
	require.NoError(t, printTranscript(context.Background(), &buf, st, "sess-1"))
	out := buf.String()

	assert.Contains(t, out, "Work authorization during pending asylum case")
	assert.Contains(t, out, "Model: gpt-4o | Persona: Amadou Diallo | Status: completed | Turns: 2")

	assert.Contains(t, out, "Amadou Diallo (turn 1)")
	assert.Contains(t, out, "  I need work authorization.")
	assert.Contains(t, out, `Tool call: check_visa_status {"visaType":"H-1B"} (turn 1)`)
	assert.Contains(t, out, "Tool response [call_1] (turn 1)")
	assert.Contains(t, out, "gpt-4o (turn 1)")
	assert.Contains(t, out, "  You will need Form I-765.")

	// The system prompt is not shown.
	assert.NotContains(t, out, "You are an immigration assistant.")

	assert.Contains(t, out, "Overall: 0.805 (simulated)")
	assert.Contains(t, out, "Tool Accuracy:       0.800")
	assert.Contains(t, out, "Safety Compliance:   1.000")
}

func TestPrintTranscript_UnevaluatedSession(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertSession(ctx, store.Session{
		ID:               "s2",
		SessionKey:       "sess-2",
		ScenarioTitle:    "H-1B transfer after company acquisition",
		ScenarioCategory: "visa_application",
		ModelID:          "gpt-4o",
		PersonaName:      "Maria Gonzalez",
		Status:           "failed",
		ErrorMessage:     "agent provider unavailable",
		CreatedAt:        time.Now(),
	}))

	var buf bytes.Buffer
	require.NoError(t, printTranscript(ctx, &buf, st, "sess-2"))

	assert.Contains(t, buf.String(), "Error: agent provider unavailable")
	assert.Contains(t, buf.String(), "Not evaluated.")
}

func TestPrintTranscript_UnknownKey(t *testing.T) {
	st := setupTestStore(t)

	var buf bytes.Buffer
	err := printTranscript(context.Background(), &buf, st, "no-such-key")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
