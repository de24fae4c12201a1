// Command orchestrate generates all chapters of a story plan in one shot:
// plan JSON in, chapters and images out, resumable on re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"ether-stories/internal/config"
	"ether-stories/internal/engine"
	"ether-stories/internal/generators"
	"ether-stories/internal/logging"
	"ether-stories/internal/models"
	"ether-stories/internal/prompts"
	"ether-stories/internal/storage"
)

func main() {
	planPath := flag.String("plan", "plan.json", "path to the story plan")
	configPath := flag.String("config", "", "optional config file")
	storyID := flag.String("story", "", "story id (defaults to the plan file name)")
	totalMinutes := flag.Int("minutes", 0, "total duration to redistribute across chapters")
	flag.Parse()

	_ = godotenv.Load()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	logger := logging.New(cfg.Logging)

	plan, err := loadPlan(*planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load plan: %v\n", err)
		os.Exit(1)
	}
	if *totalMinutes > 0 {
		plan.NormalizeDurations(*totalMinutes)
	}

	id := *storyID
	if id == "" {
		id = stripExt(*planPath)
	}

	store, err := storage.NewFileStore(cfg.Database.File.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create run store: %v\n", err)
		os.Exit(1)
	}

	templates := prompts.NewTemplateEngine()
	metrics := engine.NewMetrics()

	writer := engine.NewWriterClient(cfg.AI.Writer)
	moderator := engine.NewModeratorClient(cfg.AI.Moderator, templates)
	gate := engine.NewSafetyGate(moderator, cfg.Story.PriorChapterWindow, cfg.AI.Moderator.FailOpen, metrics, logger)

	imageCache := generators.NewIllustrationCache(cfg.AI.Painter.OutputDir)
	_ = imageCache.Initialize()
	painter := generators.NewPainterClient(cfg.AI.Painter, imageCache, logger)

	orchestrator := engine.NewChapterOrchestrator(writer, gate, painter, templates, engine.OrchestratorConfig{
		MaxRetry:     cfg.Story.MaxRetry,
		RetryBackoff: cfg.Story.RetryBackoff.Duration(),
		MaxTokens:    cfg.AI.Writer.MaxTokens,
	}, metrics, logger)
	coordinator := engine.NewRunCoordinator(orchestrator, store, logger)

	// Ctrl-C stops cleanly at the next chapter boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := coordinator.Run(ctx, id, *plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nStory %q: %d chapter(s)\n", plan.Context.Title, len(state.Chapters))
	for _, ch := range state.Chapters {
		line := fmt.Sprintf("  chapter %d: %s (attempts: %d", ch.ChapterNumber, ch.Status, ch.AttemptCount)
		if ch.IllustrationPath != "" {
			line += ", image: " + ch.IllustrationPath
		}
		if ch.ErrorMessage != "" {
			line += ", error: " + ch.ErrorMessage
		}
		fmt.Println(line + ")")
	}

	if !state.Complete() {
		os.Exit(1)
	}
}

func loadPlan(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("invalid plan document: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func stripExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
