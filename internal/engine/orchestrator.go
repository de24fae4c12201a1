package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ether-stories/internal/interfaces"
	"ether-stories/internal/models"
	"ether-stories/internal/prompts"
)

// chapterState is the orchestrator's position in one chapter's lifecycle.
type chapterState int

const (
	stateDrafting chapterState = iota
	stateChecking
	stateAccepted
	stateRetry
	stateExhausted
)

// ErrEmptyDraft marks a generator call that succeeded at the transport
// level but produced no text. It consumes an attempt like any rejection.
var ErrEmptyDraft = errors.New("generator returned empty draft")

// OrchestratorConfig tunes the per-chapter retry loop.
type OrchestratorConfig struct {
	// MaxRetry is the attempt budget per chapter. The counter starts at 1.
	MaxRetry int
	// RetryBackoff is the fixed pause before re-drafting after a rejection.
	RetryBackoff time.Duration
	// MaxTokens bounds each draft request.
	MaxTokens int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
}

// ChapterOrchestrator drives one chapter from draft to acceptance or
// exhaustion. All collaborators are injected; the orchestrator holds no
// ambient state and is idempotent per invocation; deduplication of
// chapters is the coordinator's responsibility.
type ChapterOrchestrator struct {
	generator   interfaces.ContentGenerator
	gate        *SafetyGate
	illustrator interfaces.Illustrator
	templates   *prompts.TemplateEngine
	cfg         OrchestratorConfig
	metrics     *Metrics
	logger      *slog.Logger
}

// NewChapterOrchestrator wires the per-chapter state machine. illustrator
// may be nil when image generation is disabled.
func NewChapterOrchestrator(
	generator interfaces.ContentGenerator,
	gate *SafetyGate,
	illustrator interfaces.Illustrator,
	templates *prompts.TemplateEngine,
	cfg OrchestratorConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *ChapterOrchestrator {
	cfg.applyDefaults()
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChapterOrchestrator{
		generator:   generator,
		gate:        gate,
		illustrator: illustrator,
		templates:   templates,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
	}
}

// GenerateChapter runs the DRAFTING → CHECKING loop for one chapter and
// always returns a terminal ChapterResult: status "ok" on acceptance or
// "failed" once the attempt budget is spent.
func (o *ChapterOrchestrator) GenerateChapter(
	ctx context.Context,
	storyCtx models.StoryContext,
	spec models.ChapterSpec,
	priorChapters []string,
) models.ChapterResult {
	var (
		state      = stateDrafting
		attempt    = 1
		draft      string
		lastReason string
	)

	for {
		switch state {
		case stateDrafting:
			o.metrics.DraftAttempts.Inc()
			o.logger.Info("drafting chapter",
				"chapter", spec.ChapterNumber,
				"attempt", attempt,
				"max_retry", o.cfg.MaxRetry)

			text, err := o.draft(ctx, storyCtx, spec, attempt, lastReason)
			if err != nil {
				o.metrics.GeneratorErrors.Inc()
				o.logger.Warn("draft generation failed",
					"chapter", spec.ChapterNumber,
					"attempt", attempt,
					"err", err)
				lastReason = fmt.Sprintf("generation failed: %v", err)
				state = stateRetry
				continue
			}
			draft = text
			state = stateChecking

		case stateChecking:
			verdict := o.gate.Evaluate(ctx, draft, GateInput{
				Context:       storyCtx,
				Chapter:       spec,
				PriorChapters: priorChapters,
			})
			if verdict.Coherent {
				state = stateAccepted
				continue
			}
			lastReason = verdict.Reason
			state = stateRetry

		case stateRetry:
			if attempt >= o.cfg.MaxRetry {
				state = stateExhausted
				continue
			}
			if err := o.backoff(ctx); err != nil {
				// Cancelled mid-chapter: surface as exhaustion, the
				// coordinator discards results for cancelled chapters.
				lastReason = fmt.Sprintf("cancelled: %v", err)
				state = stateExhausted
				continue
			}
			attempt++
			state = stateDrafting

		case stateAccepted:
			o.metrics.ChaptersAccepted.Inc()
			return models.ChapterResult{
				ChapterNumber:    spec.ChapterNumber,
				StoryText:        draft,
				IllustrationPath: o.illustrate(ctx, spec),
				Status:           models.StatusOK,
				AttemptCount:     attempt,
				GeneratedAt:      time.Now().UTC(),
			}

		case stateExhausted:
			o.metrics.ChaptersExhausted.Inc()
			o.logger.Warn("chapter attempts exhausted",
				"chapter", spec.ChapterNumber,
				"attempts", attempt,
				"reason", lastReason)
			return models.ChapterResult{
				ChapterNumber: spec.ChapterNumber,
				Status:        models.StatusFailed,
				ErrorMessage:  fmt.Sprintf("exhausted after %d attempts: %s", attempt, lastReason),
				AttemptCount:  attempt,
				GeneratedAt:   time.Now().UTC(),
			}
		}
	}
}

// draft builds the writer prompt for this attempt and invokes the
// generator. On attempt > 1 the prompt carries the previous rejection so
// the generator receives feedback.
func (o *ChapterOrchestrator) draft(ctx context.Context, storyCtx models.StoryContext, spec models.ChapterSpec, attempt int, lastReason string) (string, error) {
	prompt, err := o.templates.BuildDraftPrompt(prompts.DraftInput{
		Context:    storyCtx,
		Chapter:    spec,
		Attempt:    attempt,
		LastReason: lastReason,
	})
	if err != nil {
		return "", err
	}

	text, err := o.generator.Generate(ctx, prompt, o.cfg.MaxTokens)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyDraft
	}
	return text, nil
}

// illustrate generates the chapter image from title + summary. Illustration
// failure never downgrades an accepted chapter: it returns an empty path.
func (o *ChapterOrchestrator) illustrate(ctx context.Context, spec models.ChapterSpec) string {
	if o.illustrator == nil {
		return ""
	}
	prompt, err := o.templates.BuildIllustrationPrompt(spec)
	if err != nil {
		o.metrics.IllustrationFailures.Inc()
		o.logger.Warn("illustration prompt failed", "chapter", spec.ChapterNumber, "err", err)
		return ""
	}
	path, err := o.illustrator.Illustrate(ctx, prompt, spec.ChapterNumber)
	if err != nil {
		o.metrics.IllustrationFailures.Inc()
		o.logger.Warn("illustration generation failed",
			"chapter", spec.ChapterNumber,
			"err", err)
		return ""
	}
	return path
}

// backoff pauses between attempts so a rejected draft is not immediately
// regenerated against an unchanged context.
func (o *ChapterOrchestrator) backoff(ctx context.Context) error {
	if o.cfg.RetryBackoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.cfg.RetryBackoff):
		return nil
	}
}
