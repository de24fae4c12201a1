package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ether-stories/internal/interfaces"
	"ether-stories/internal/models"
)

const defaultPriorChapterWindow = 2

// SafetyGate is the two-stage moderation gate: a cheap local lexical filter
// against the forbidden-element list, then a semantic check delegated to the
// judge. The lexical stage short-circuits: on a match the judge is never
// called.
//
// When the judge errors the gate fails closed: the draft is rejected. A
// fail-open override exists for operators who prefer availability over
// safety; every use of it is logged.
type SafetyGate struct {
	judge    interfaces.SafetyJudge
	window   int
	failOpen bool
	metrics  *Metrics
	logger   *slog.Logger
}

// GateInput bundles the per-chapter context the gate evaluates against.
type GateInput struct {
	Context       models.StoryContext
	Chapter       models.ChapterSpec
	PriorChapters []string
}

// NewSafetyGate creates a gate around the judge. window bounds how many
// prior chapters are forwarded for continuity; zero means the default of
// two.
func NewSafetyGate(judge interfaces.SafetyJudge, window int, failOpen bool, metrics *Metrics, logger *slog.Logger) *SafetyGate {
	if window <= 0 {
		window = defaultPriorChapterWindow
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafetyGate{
		judge:    judge,
		window:   window,
		failOpen: failOpen,
		metrics:  metrics,
		logger:   logger,
	}
}

// Evaluate runs both moderation stages and returns the verdict.
func (g *SafetyGate) Evaluate(ctx context.Context, text string, in GateInput) interfaces.Verdict {
	if matched := models.ContainsForbidden(text, in.Context.ForbiddenElements); len(matched) > 0 {
		g.metrics.LexicalRejections.Inc()
		g.logger.Info("draft rejected by lexical filter",
			"chapter", in.Chapter.ChapterNumber,
			"matched", matched)
		return interfaces.Verdict{
			Coherent: false,
			Reason:   fmt.Sprintf("forbidden elements present: %s", strings.Join(matched, ", ")),
		}
	}

	verdict, err := g.judge.Judge(ctx, interfaces.JudgeRequest{
		Text:            text,
		Title:           in.Context.Title,
		MainCharacter:   in.Context.MainCharacter,
		ChapterNumber:   in.Chapter.ChapterNumber,
		ExpectedSummary: in.Chapter.Summary,
		PriorChapters:   lastN(in.PriorChapters, g.window),
		CharacterNames:  in.Context.CharacterNames(),
		Forbidden:       in.Context.ForbiddenElements,
	})
	if err != nil {
		g.metrics.JudgeErrors.Inc()
		if g.failOpen {
			g.logger.Warn("safety judge failed, fail-open override accepting draft",
				"chapter", in.Chapter.ChapterNumber,
				"err", err)
			return interfaces.Verdict{Coherent: true, Reason: "judge unavailable, accepted by fail-open override"}
		}
		g.logger.Warn("safety judge failed, rejecting draft",
			"chapter", in.Chapter.ChapterNumber,
			"err", err)
		return interfaces.Verdict{
			Coherent: false,
			Reason:   fmt.Sprintf("safety check unavailable: %v", err),
		}
	}

	if !verdict.Coherent {
		g.metrics.SemanticRejections.Inc()
		g.logger.Info("draft rejected by judge",
			"chapter", in.Chapter.ChapterNumber,
			"reason", verdict.Reason)
	}
	return verdict
}

// lastN returns the trailing n elements of items.
func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
