package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/scoring"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

var (
	exportDir   string
	exportRunID string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions and leaderboard to JSON and CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		paths, err := exportResults(cmd.Context(), app.store, exportDir, exportRunID)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("  Wrote %s\n", p)
		}
		return nil
	},
}

// exportContentLimit truncates message bodies in the sessions export.
const exportContentLimit = 500

type exportMessage struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	TurnNumber int                    `json:"turnNumber"`
	ToolCalls  []store.ToolCallRecord `json:"toolCalls,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
}

type exportSession struct {
	SessionKey       string          `json:"sessionKey"`
	ScenarioTitle    string          `json:"scenarioTitle"`
	ScenarioCategory string          `json:"scenarioCategory"`
	ModelID          string          `json:"modelId"`
	PersonaName      string          `json:"personaName"`
	Status           string          `json:"status"`
	TotalTurns       int             `json:"totalTurns"`
	OverallScore     *float64        `json:"overallScore,omitempty"`
	Metrics          *store.Metrics  `json:"metrics,omitempty"`
	FailureAnalysis  []string        `json:"failureAnalysis,omitempty"`
	ScorerTraceID    string          `json:"scorerTraceId,omitempty"`
	ScoringSource    string          `json:"scoringSource,omitempty"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
	Messages         []exportMessage `json:"messages"`
}

type exportRanking struct {
	Rank             int                `json:"rank"`
	ModelID          string             `json:"modelId"`
	OverallScore     float64            `json:"overallScore"`
	TotalEvaluations int                `json:"totalEvaluations"`
	Metrics          store.Metrics      `json:"metrics"`
	CategoryScores   map[string]float64 `json:"categoryScores"`
}

type exportSummary struct {
	RunID             string             `json:"runId"`
	Timestamp         time.Time          `json:"timestamp"`
	TotalSessions     int                `json:"totalSessions"`
	Completed         int                `json:"completed"`
	Failed            int                `json:"failed"`
	ModelsEvaluated   []string           `json:"modelsEvaluated"`
	ScenariosRun      []string           `json:"scenariosRun"`
	CategoriesCovered []string           `json:"categoriesCovered"`
	MetricWeights     map[string]float64 `json:"metricWeights"`
	TopModel          string             `json:"topModel,omitempty"`
	TopScore          float64            `json:"topScore"`
}

// exportResults writes the sessions, leaderboard (JSON and CSV) and run
// summary files into dir and returns the paths written. The CSV is only
// written when the leaderboard is non-empty.
func exportResults(ctx context.Context, st *store.Store, dir, runID string) ([]string, error) {
	if runID == "" {
		runID = time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := st.ListLeaderboard(ctx)
	if err != nil {
		return nil, err
	}

	exported := make([]exportSession, 0, len(sessions))
	models := map[string]struct{}{}
	scenarios := map[string]struct{}{}
	categories := map[string]struct{}{}
	completed, failed := 0, 0

	for _, sess := range sessions {
		models[sess.ModelID] = struct{}{}
		scenarios[sess.ScenarioTitle] = struct{}{}
		categories[sess.ScenarioCategory] = struct{}{}
		switch sess.Status {
		case "completed":
			completed++
		case "failed":
			failed++
		}

		msgs, err := st.OrderedMessages(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		out := exportSession{
			SessionKey:       sess.SessionKey,
			ScenarioTitle:    sess.ScenarioTitle,
			ScenarioCategory: sess.ScenarioCategory,
			ModelID:          sess.ModelID,
			PersonaName:      sess.PersonaName,
			Status:           sess.Status,
			TotalTurns:       sess.TotalTurns,
			StartedAt:        sess.StartedAt,
			CompletedAt:      sess.CompletedAt,
			Messages:         make([]exportMessage, 0, len(msgs)),
		}
		for _, msg := range msgs {
			content := msg.Content
			if msg.Role == "system" {
				content = "[system prompt]"
			} else if runes := []rune(content); len(runes) > exportContentLimit {
				content = string(runes[:exportContentLimit])
			}
			out.Messages = append(out.Messages, exportMessage{
				Role:       msg.Role,
				Content:    content,
				TurnNumber: msg.TurnNumber,
				ToolCalls:  msg.ToolCalls,
				ToolCallID: msg.ToolCallID,
			})
		}

		ev, err := st.EvaluationBySession(ctx, sess.ID)
		if err == nil {
			out.OverallScore = &ev.OverallScore
			metrics := ev.Metrics
			out.Metrics = &metrics
			out.FailureAnalysis = ev.FailureAnalysis
			out.ScorerTraceID = ev.ScorerTraceID
			out.ScoringSource = ev.ScoringSource
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		exported = append(exported, out)
	}

	var paths []string
	sessionsPath := filepath.Join(dir, runID+"_sessions.json")
	if err := writeJSON(sessionsPath, exported); err != nil {
		return nil, err
	}
	paths = append(paths, sessionsPath)

	rankings := make([]exportRanking, 0, len(entries))
	for i, e := range entries {
		rankings = append(rankings, exportRanking{
			Rank:             i + 1,
			ModelID:          e.ModelID,
			OverallScore:     e.OverallScore,
			TotalEvaluations: e.TotalEvaluations,
			Metrics:          e.Metrics,
			CategoryScores:   e.CategoryScores,
		})
	}
	leaderboardPath := filepath.Join(dir, runID+"_leaderboard.json")
	if err := writeJSON(leaderboardPath, rankings); err != nil {
		return nil, err
	}
	paths = append(paths, leaderboardPath)

	if len(entries) > 0 {
		csvPath := filepath.Join(dir, runID+"_leaderboard.csv")
		if err := writeLeaderboardCSV(csvPath, entries); err != nil {
			return nil, err
		}
		paths = append(paths, csvPath)
	}

	summary := exportSummary{
		RunID:             runID,
		Timestamp:         time.Now(),
		TotalSessions:     len(sessions),
		Completed:         completed,
		Failed:            failed,
		ModelsEvaluated:   sortedKeys(models),
		ScenariosRun:      sortedKeys(scenarios),
		CategoriesCovered: sortedKeys(categories),
		MetricWeights:     scoring.MetricWeights(),
	}
	if len(entries) > 0 {
		summary.TopModel = entries[0].ModelID
		summary.TopScore = entries[0].OverallScore
	}
	summaryPath := filepath.Join(dir, runID+"_summary.json")
	if err := writeJSON(summaryPath, summary); err != nil {
		return nil, err
	}
	paths = append(paths, summaryPath)

	return paths, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeLeaderboardCSV(path string, entries []store.LeaderboardEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"rank", "model_id", "overall_score", "total_evaluations",
		"tool_accuracy", "factual_correctness", "completeness", "empathy", "safety_compliance",
	}
	for _, cat := range catalog.Categories {
		header = append(header, "cat_"+string(cat))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, e := range entries {
		row := []string{
			strconv.Itoa(i + 1),
			e.ModelID,
			fmt.Sprintf("%.3f", e.OverallScore),
			strconv.Itoa(e.TotalEvaluations),
			fmt.Sprintf("%.3f", e.Metrics.ToolAccuracy),
			fmt.Sprintf("%.3f", e.Metrics.FactualCorrectness),
			fmt.Sprintf("%.3f", e.Metrics.Completeness),
			fmt.Sprintf("%.3f", e.Metrics.Empathy),
			fmt.Sprintf("%.3f", e.Metrics.SafetyCompliance),
		}
		for _, cat := range catalog.Categories {
			row = append(row, fmt.Sprintf("%.3f", e.CategoryScores[string(cat)]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "exports", "output directory")
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "file name prefix (default: timestamp)")
	rootCmd.AddCommand(exportCmd)
}
