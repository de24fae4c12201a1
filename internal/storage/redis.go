package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ether-stories/internal/config"
	"ether-stories/internal/interfaces"
)

const (
	progressEventsKeyFmt = "story:events:%s"
	progressPhaseKeyFmt  = "story:phase:%s"
	progressMaxEvents    = 200
	progressTTL          = 24 * time.Hour
)

// RedisStore caches run progress so the web layer can answer status queries
// without touching the durable store. It is a ProgressSink: the coordinator
// publishes events into it as a run advances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Publish records a progress event. Caching is best-effort: failures are
// swallowed so progress reporting never affects the run.
func (s *RedisStore) Publish(ctx context.Context, event interfaces.ChapterEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	eventsKey := fmt.Sprintf(progressEventsKeyFmt, event.StoryID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, eventsKey, data)
	pipe.LTrim(ctx, eventsKey, 0, progressMaxEvents-1)
	pipe.Expire(ctx, eventsKey, progressTTL)
	pipe.Set(ctx, fmt.Sprintf(progressPhaseKeyFmt, event.StoryID), event.Phase, progressTTL)
	_, _ = pipe.Exec(ctx)
}

// Phase returns the most recent run phase for a story, or "" if unknown.
func (s *RedisStore) Phase(ctx context.Context, storyID string) (string, error) {
	phase, err := s.client.Get(ctx, fmt.Sprintf(progressPhaseKeyFmt, storyID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read run phase: %w", err)
	}
	return phase, nil
}

// RecentEvents returns the latest progress events, newest first.
func (s *RedisStore) RecentEvents(ctx context.Context, storyID string, limit int64) ([]interfaces.ChapterEvent, error) {
	if limit <= 0 || limit > progressMaxEvents {
		limit = 50
	}

	raw, err := s.client.LRange(ctx, fmt.Sprintf(progressEventsKeyFmt, storyID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read progress events: %w", err)
	}

	events := make([]interfaces.ChapterEvent, 0, len(raw))
	for _, item := range raw {
		var event interfaces.ChapterEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// Close shuts down the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
