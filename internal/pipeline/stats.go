package pipeline

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"katsuo-market/internal/model"
)

// SourceReport is one row of per-source output.
type SourceReport struct {
	Name    string
	Fetched int
	// Skipped counts rows the source dropped before yielding them.
	Skipped int
	Err     error
}

// Result is the primary artifact for "what happened" in a run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Sources []SourceReport

	// Discards counts dropped records by reason.
	Discards   map[string]int
	Accepted   int
	Aggregated int

	Merge   MergeStats
	Written int
	DryRun  bool

	ArchiveErr error

	// Dataset is the merged dataset, written unless DryRun.
	Dataset model.Dataset
}

func newResult(runID string, now time.Time) *Result {
	return &Result{
		RunID:     runID,
		StartedAt: now,
		Discards:  map[string]int{},
	}
}

func (r *Result) discard(reason string) {
	r.Discards[reason]++
}

// Discarded is the total number of dropped records.
func (r *Result) Discarded() int {
	n := 0
	for _, c := range r.Discards {
		n += c
	}
	return n
}

// Fetched is the total number of raw records across sources.
func (r *Result) Fetched() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Fetched
	}
	return n
}

// Skipped is the total number of rows dropped inside sources.
func (r *Result) Skipped() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Skipped
	}
	return n
}

// FailedSources returns the names of sources that could not be fetched.
func (r *Result) FailedSources() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s.Name)
		}
	}
	return out
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Fields renders the result as structured log fields.
func (r *Result) Fields() []zap.Field {
	reasons := make([]string, 0, len(r.Discards))
	for reason := range r.Discards {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.Int("fetched", r.Fetched()),
		zap.Int("skipped", r.Skipped()),
		zap.Int("accepted", r.Accepted),
		zap.Int("aggregated", r.Aggregated),
		zap.Int("inserted", r.Merge.Inserted),
		zap.Int("replaced", r.Merge.Replaced),
		zap.Int("total", r.Merge.Total),
		zap.Int("written", r.Written),
		zap.Bool("dry_run", r.DryRun),
		zap.Duration("duration", r.Duration()),
	}
	for _, reason := range reasons {
		fields = append(fields, zap.Int("discarded_"+reason, r.Discards[reason]))
	}
	if failed := r.FailedSources(); len(failed) > 0 {
		fields = append(fields, zap.Strings("failed_sources", failed))
	}
	return fields
}
