package interfaces

import (
	"context"
	"time"

	"ether-stories/internal/models"
)

// Run lifecycle phases reported through progress events.
const (
	PhaseDrafting  = "drafting"
	PhaseChapter   = "chapter_done"
	PhaseRunDone   = "run_done"
	PhaseRunFailed = "run_failed"
)

// ChapterEvent is a progress notification emitted by the coordinator as a
// run advances. Events are observational only; dropping them never affects
// the run.
type ChapterEvent struct {
	StoryID       string                `json:"story_id"`
	Phase         string                `json:"phase"`
	ChapterNumber int                   `json:"chapter_number,omitempty"`
	Attempt       int                   `json:"attempt,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	Result        *models.ChapterResult `json:"result,omitempty"`
	At            time.Time             `json:"at"`
}

// ProgressSink receives run progress. Implementations must be non-blocking
// or internally buffered; the coordinator calls them inline.
type ProgressSink interface {
	Publish(ctx context.Context, event ChapterEvent)
}
