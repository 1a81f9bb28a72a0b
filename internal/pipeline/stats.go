package pipeline

import (
	"fmt"
	"time"

	"github.com/satchelworks/satchel/internal/shared/id"
)

// StageError records one stage failure. It wraps the original cause so
// callers can errors.Is/As on the concrete failure kind.
type StageError struct {
	Stage     string
	Index     int
	Err       error
	Recovered bool
}

// Error implements error.
func (e *StageError) Error() string {
	if e.Recovered {
		return fmt.Sprintf("stage %s (index %d) recovered: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("stage %s (index %d): %v", e.Stage, e.Index, e.Err)
}

// Unwrap returns the original cause.
func (e *StageError) Unwrap() error { return e.Err }

// Statistics is the orchestrator-owned aggregate record for one run. The
// orchestrator is the sole writer, under its mutex; stages read snapshots
// through the ExecContext. Invariant: StagesCompleted + StagesFailed never
// exceeds the number of registered stages, and equals it exactly when the
// run reaches the final stage.
type Statistics struct {
	RunID           id.RunID                 `json:"run_id"`
	StartTime       time.Time                `json:"start_time"`
	EndTime         time.Time                `json:"end_time"`
	StagesCompleted int                      `json:"stages_completed"`
	StagesFailed    int                      `json:"stages_failed"`
	StageErrors     []*StageError            `json:"stage_errors,omitempty"`
	Durations       map[string]time.Duration `json:"durations"`
	Metrics         map[string]StageMetrics  `json:"metrics"`
	TotalDuration   time.Duration            `json:"total_duration"`
	AverageDuration time.Duration            `json:"average_duration"`
	DurationP50     time.Duration            `json:"duration_p50"`
	DurationP95     time.Duration            `json:"duration_p95"`
}

// newStatistics returns a zeroed record with maps allocated and a fresh
// run ID.
func newStatistics() Statistics {
	return Statistics{
		RunID:     id.NewRunID(),
		Durations: make(map[string]time.Duration),
		Metrics:   make(map[string]StageMetrics),
	}
}

// snapshot returns a copy safe to hand to subscribers and stages. Maps and
// the error list are copied; StageError pointers are shared but treated as
// immutable once recorded.
func (s *Statistics) snapshot() Statistics {
	out := *s
	out.Durations = make(map[string]time.Duration, len(s.Durations))
	for k, v := range s.Durations {
		out.Durations[k] = v
	}
	out.Metrics = make(map[string]StageMetrics, len(s.Metrics))
	for k, v := range s.Metrics {
		out.Metrics[k] = v
	}
	out.StageErrors = append([]*StageError(nil), s.StageErrors...)
	return out
}
