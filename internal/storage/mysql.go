package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ether-stories/internal/config"
	"ether-stories/internal/models"
)

// ChapterRecord is the relational shape of a persisted chapter result.
type ChapterRecord struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	StoryID          string `gorm:"size:64;uniqueIndex:idx_story_chapter"`
	ChapterNumber    int    `gorm:"uniqueIndex:idx_story_chapter"`
	StoryText        string `gorm:"type:text"`
	IllustrationPath string `gorm:"size:512"`
	Status           string `gorm:"size:16"`
	ErrorMessage     string `gorm:"type:text"`
	AttemptCount     int
	GeneratedAt      time.Time
	CreatedAt        time.Time
}

// MySQLStore persists run state in MySQL. The unique (story_id,
// chapter_number) index enforces the run-state uniqueness invariant at the
// database level.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore opens the connection pool and migrates the schema.
func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration())

	if err := db.AutoMigrate(&ChapterRecord{}); err != nil {
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

// Load reads a story's chapter results in ascending chapter order.
func (s *MySQLStore) Load(ctx context.Context, storyID string) (*models.RunState, error) {
	var records []ChapterRecord
	err := s.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("chapter_number ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load run state: %w", err)
	}

	state := &models.RunState{StoryID: storyID}
	for _, r := range records {
		state.Chapters = append(state.Chapters, models.ChapterResult{
			ChapterNumber:    r.ChapterNumber,
			StoryText:        r.StoryText,
			IllustrationPath: r.IllustrationPath,
			Status:           r.Status,
			ErrorMessage:     r.ErrorMessage,
			AttemptCount:     r.AttemptCount,
			GeneratedAt:      r.GeneratedAt,
		})
	}
	return state, nil
}

// Append inserts a chapter result. An existing (story, chapter) row wins;
// results are append-only and never rewritten.
func (s *MySQLStore) Append(ctx context.Context, storyID string, result models.ChapterResult) error {
	record := ChapterRecord{
		StoryID:          storyID,
		ChapterNumber:    result.ChapterNumber,
		StoryText:        result.StoryText,
		IllustrationPath: result.IllustrationPath,
		Status:           result.Status,
		ErrorMessage:     result.ErrorMessage,
		AttemptCount:     result.AttemptCount,
		GeneratedAt:      result.GeneratedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to append chapter result: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
