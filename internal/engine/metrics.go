package engine

import "go.uber.org/atomic"

// Metrics counts engine activity across all runs. Counters are safe for
// concurrent use and exposed read-only through Snapshot.
type Metrics struct {
	DraftAttempts        atomic.Int64
	GeneratorErrors      atomic.Int64
	LexicalRejections    atomic.Int64
	SemanticRejections   atomic.Int64
	JudgeErrors          atomic.Int64
	ChaptersAccepted     atomic.Int64
	ChaptersExhausted    atomic.Int64
	IllustrationFailures atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	DraftAttempts        int64 `json:"draft_attempts"`
	GeneratorErrors      int64 `json:"generator_errors"`
	LexicalRejections    int64 `json:"lexical_rejections"`
	SemanticRejections   int64 `json:"semantic_rejections"`
	JudgeErrors          int64 `json:"judge_errors"`
	ChaptersAccepted     int64 `json:"chapters_accepted"`
	ChaptersExhausted    int64 `json:"chapters_exhausted"`
	IllustrationFailures int64 `json:"illustration_failures"`
}

// NewMetrics creates zeroed engine metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		DraftAttempts:        m.DraftAttempts.Load(),
		GeneratorErrors:      m.GeneratorErrors.Load(),
		LexicalRejections:    m.LexicalRejections.Load(),
		SemanticRejections:   m.SemanticRejections.Load(),
		JudgeErrors:          m.JudgeErrors.Load(),
		ChaptersAccepted:     m.ChaptersAccepted.Load(),
		ChaptersExhausted:    m.ChaptersExhausted.Load(),
		IllustrationFailures: m.IllustrationFailures.Load(),
	}
}
