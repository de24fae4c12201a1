package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ether-stories/internal/interfaces"
	"ether-stories/internal/models"
)

// RunCoordinator iterates a plan's chapters in order, skipping chapters
// already present in the persisted run state and persisting every finished
// chapter immediately. It is the only writer of run state for the duration
// of a run.
type RunCoordinator struct {
	orchestrator *ChapterOrchestrator
	store        interfaces.RunStore
	sinks        []interfaces.ProgressSink
	logger       *slog.Logger
}

// NewRunCoordinator wires the coordinator. Progress sinks are optional
// observers; they never influence the run.
func NewRunCoordinator(orchestrator *ChapterOrchestrator, store interfaces.RunStore, logger *slog.Logger, sinks ...interfaces.ProgressSink) *RunCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunCoordinator{
		orchestrator: orchestrator,
		store:        store,
		sinks:        sinks,
		logger:       logger,
	}
}

// Run generates every chapter the plan names that the persisted state does
// not already contain. A chapter failure does not abort the run; structural
// plan problems and persistence failures do. The returned state holds
// exactly one result per processed chapter; Complete() reports overall
// success.
func (c *RunCoordinator) Run(ctx context.Context, storyID string, plan models.Plan) (*models.RunState, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	plan.SortChapters()

	state, err := c.store.Load(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("load run state: %w", err)
	}
	if state == nil {
		state = &models.RunState{StoryID: storyID}
	}

	c.logger.Info("starting run",
		"story_id", storyID,
		"title", plan.Context.Title,
		"chapters", len(plan.Chapters),
		"already_done", len(state.Chapters))

	for _, spec := range plan.Chapters {
		// Cooperative cancellation at chapter boundaries only.
		if err := ctx.Err(); err != nil {
			c.publish(ctx, interfaces.ChapterEvent{
				StoryID: storyID,
				Phase:   interfaces.PhaseRunFailed,
				Reason:  err.Error(),
				At:      time.Now().UTC(),
			})
			return state, err
		}

		if state.Has(spec.ChapterNumber) {
			c.logger.Info("chapter already generated, skipping",
				"story_id", storyID,
				"chapter", spec.ChapterNumber)
			continue
		}

		c.publish(ctx, interfaces.ChapterEvent{
			StoryID:       storyID,
			Phase:         interfaces.PhaseDrafting,
			ChapterNumber: spec.ChapterNumber,
			At:            time.Now().UTC(),
		})

		result := c.orchestrator.GenerateChapter(ctx, plan.Context, spec, state.AcceptedTexts())

		// A result produced under a cancelled context is an in-flight
		// partial: discard it rather than persisting.
		if err := ctx.Err(); err != nil {
			c.logger.Warn("run cancelled mid-chapter, discarding partial result",
				"story_id", storyID,
				"chapter", spec.ChapterNumber)
			c.publish(ctx, interfaces.ChapterEvent{
				StoryID: storyID,
				Phase:   interfaces.PhaseRunFailed,
				Reason:  err.Error(),
				At:      time.Now().UTC(),
			})
			return state, err
		}

		if err := c.store.Append(ctx, storyID, result); err != nil {
			return state, fmt.Errorf("persist chapter %d: %w", spec.ChapterNumber, err)
		}
		state.Append(result)

		c.logger.Info("chapter persisted",
			"story_id", storyID,
			"chapter", spec.ChapterNumber,
			"status", result.Status,
			"attempts", result.AttemptCount)

		c.publish(ctx, interfaces.ChapterEvent{
			StoryID:       storyID,
			Phase:         interfaces.PhaseChapter,
			ChapterNumber: spec.ChapterNumber,
			Attempt:       result.AttemptCount,
			Reason:        result.ErrorMessage,
			Result:        &result,
			At:            time.Now().UTC(),
		})
	}

	phase := interfaces.PhaseRunDone
	if !state.Complete() {
		phase = interfaces.PhaseRunFailed
	}
	c.publish(ctx, interfaces.ChapterEvent{
		StoryID: storyID,
		Phase:   phase,
		At:      time.Now().UTC(),
	})

	return state, nil
}

func (c *RunCoordinator) publish(ctx context.Context, event interfaces.ChapterEvent) {
	for _, sink := range c.sinks {
		sink.Publish(ctx, event)
	}
}
