package interfaces

import (
	"context"

	"ether-stories/internal/models"
)

// ContentGenerator produces draft chapter text from a structured prompt.
// An empty text with a nil error is a valid outcome, distinct from a
// transport-level error.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Verdict is the structured outcome of a safety evaluation.
type Verdict struct {
	Coherent bool   `json:"coherent"`
	Reason   string `json:"reason,omitempty"`
}

// JudgeRequest carries everything the semantic judge needs: the draft, a
// compact story context, the recent continuity window, the cast, and the
// forbidden elements.
type JudgeRequest struct {
	Text            string
	Title           string
	MainCharacter   string
	ChapterNumber   int
	ExpectedSummary string
	PriorChapters   []string
	CharacterNames  []string
	Forbidden       []string
}

// SafetyJudge delegates a coherence/safety decision to an external judgment
// capability. A transport failure or unparseable response surfaces as an
// error; the gate decides the fail mode, not the judge.
type SafetyJudge interface {
	Judge(ctx context.Context, req JudgeRequest) (Verdict, error)
}

// Illustrator produces an image artifact for an accepted chapter and
// returns the path it was written to. An empty path with a nil error means
// illustration was deliberately skipped.
type Illustrator interface {
	Illustrate(ctx context.Context, prompt string, chapterNumber int) (string, error)
}

// RunStore persists run state: read at run start to support skipping
// already-completed chapters, appended after every finished chapter.
type RunStore interface {
	Load(ctx context.Context, storyID string) (*models.RunState, error)
	Append(ctx context.Context, storyID string, result models.ChapterResult) error
}
