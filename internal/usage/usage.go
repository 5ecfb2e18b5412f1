package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"toolhub-backend/internal/store"
	"toolhub-backend/internal/webhook"
)

// Recorder persists redacted usage records and answers the analytics
// queries behind the usage dashboard.
type Recorder struct {
	store *store.Store
}

func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// RecordUsage appends one usage row. Implements webhook.UsageRecorder.
func (r *Recorder) RecordUsage(ctx context.Context, rec webhook.UsageRecord) error {
	inputJSON, err := json.Marshal(rec.InputSummary)
	if err != nil {
		return fmt.Errorf("marshal input summary: %w", err)
	}

	pb := r.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, r.store.DB, fmt.Sprintf(
		`INSERT INTO tool_usages (id, user_id, tool_id, input_summary, credits_deducted,
		 response_summary, status, duration_ms, used_at)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(store.GenerateUUID()), pb.Add(rec.CallerID), pb.Add(rec.ToolID),
		pb.Add(string(inputJSON)), pb.Add(rec.CreditsDeducted),
		pb.Add(rec.ResponseSummary), pb.Add("success"), pb.Add(rec.DurationMs),
		pb.Add(rec.Timestamp.Format(time.RFC3339))),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// ListForUser returns the user's usage history, newest first.
func (r *Recorder) ListForUser(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	pb := r.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, r.store.DB, fmt.Sprintf(
		`SELECT u.id, u.tool_id, t.name AS tool_name, u.input_summary, u.credits_deducted,
		        u.response_summary, u.status, u.duration_ms, u.used_at
		 FROM tool_usages u
		 LEFT JOIN tools t ON t.id = u.tool_id
		 WHERE u.user_id = %s
		 ORDER BY u.used_at DESC
		 LIMIT %s`, pb.Add(userID), pb.Add(limit)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return rows, nil
}

// Stats summarizes a user's tool activity.
type Stats struct {
	TotalRuns     int            `json:"total_runs"`
	CreditsSpent  int            `json:"credits_spent"`
	SuccessRate   float64        `json:"success_rate"`
	P95DurationMs *float64       `json:"p95_duration_ms,omitempty"`
	RunsByTool    map[string]int `json:"runs_by_tool"`
}

// StatsForUser computes dashboard stats with dialect-aware SQL.
func (r *Recorder) StatsForUser(ctx context.Context, userID string) (*Stats, error) {
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	successCount := d.FilterCountExpr("status = 'success'")

	query := fmt.Sprintf(
		`SELECT COUNT(*) AS total, COALESCE(SUM(credits_deducted), 0) AS spent,
		        COALESCE(%s, 0) AS ok_count`, successCount)
	if d.SupportsPercentile() {
		query += fmt.Sprintf(", %s AS p95", d.PercentileExpr(0.95, "duration_ms"))
	}
	query += fmt.Sprintf(" FROM tool_usages WHERE user_id = %s", pb.Add(userID))

	row, err := store.QueryRow(ctx, r.store.DB, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}

	stats := &Stats{
		TotalRuns:    toInt(row["total"]),
		CreditsSpent: toInt(row["spent"]),
		RunsByTool:   map[string]int{},
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(toInt(row["ok_count"])) / float64(stats.TotalRuns)
	}
	if p95, ok := row["p95"].(float64); ok {
		stats.P95DurationMs = &p95
	}

	pb = d.NewParamBuilder()
	byTool, err := store.QueryRows(ctx, r.store.DB, fmt.Sprintf(
		`SELECT COALESCE(t.name, u.tool_id) AS name, COUNT(*) AS runs
		 FROM tool_usages u
		 LEFT JOIN tools t ON t.id = u.tool_id
		 WHERE u.user_id = %s
		 GROUP BY COALESCE(t.name, u.tool_id)`, pb.Add(userID)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("usage by tool: %w", err)
	}
	for _, row := range byTool {
		name, _ := row["name"].(string)
		stats.RunsByTool[name] = toInt(row["runs"])
	}
	return stats, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
