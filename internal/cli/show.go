package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

var showCmd = &cobra.Command{
	Use:   "show <session-key>",
	Short: "Display one session's transcript and scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return printTranscript(cmd.Context(), os.Stdout, app.store, args[0])
	},
}

// printTranscript writes a session's full conversation in reading order:
// persona and agent messages interleaved with tool calls and their keyed
// responses, followed by the evaluation when one exists. The system prompt
// is omitted.
func printTranscript(ctx context.Context, w io.Writer, st *store.Store, sessionKey string) error {
	sess, err := st.SessionByKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	msgs, err := st.OrderedMessages(ctx, sess.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\nModel: %s | Persona: %s | Status: %s | Turns: %d\n",
		sess.ScenarioTitle, sess.ModelID, sess.PersonaName, sess.Status, sess.TotalTurns)
	if sess.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", sess.ErrorMessage)
	}

	for _, msg := range msgs {
		switch msg.Role {
		case "user":
			fmt.Fprintf(w, "\n%s (turn %d)\n%s\n", sess.PersonaName, msg.TurnNumber, indentLines(msg.Content))
		case "assistant":
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				fmt.Fprintf(w, "\nTool call: %s %s (turn %d)\n", tc.Name, args, msg.TurnNumber)
			}
			if msg.Content != "" {
				fmt.Fprintf(w, "\n%s (turn %d)\n%s\n", sess.ModelID, msg.TurnNumber, indentLines(msg.Content))
			}
		case "tool":
			fmt.Fprintf(w, "\nTool response [%s] (turn %d)\n%s\n", msg.ToolCallID, msg.TurnNumber, indentLines(msg.Content))
		}
	}

	ev, err := st.EvaluationBySession(ctx, sess.ID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(w, "\nNot evaluated.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nOverall: %.3f (%s)\n", ev.OverallScore, ev.ScoringSource)
	fmt.Fprintf(w, "  Tool Accuracy:       %.3f\n", ev.Metrics.ToolAccuracy)
	fmt.Fprintf(w, "  Factual Correctness: %.3f\n", ev.Metrics.FactualCorrectness)
	fmt.Fprintf(w, "  Completeness:        %.3f\n", ev.Metrics.Completeness)
	fmt.Fprintf(w, "  Empathy:             %.3f\n", ev.Metrics.Empathy)
	fmt.Fprintf(w, "  Safety Compliance:   %.3f\n", ev.Metrics.SafetyCompliance)
	for _, line := range ev.FailureAnalysis {
		fmt.Fprintf(w, "  ! %s\n", line)
	}
	return nil
}

func indentLines(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
}
