package models

import (
	"sort"
	"strings"
	"time"
)

// Character roles within a story plan.
const (
	RolePrincipal = "principal"
	RoleSecondary = "secondary"
)

// Chapter result statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Character is one member of the story's cast.
type Character struct {
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role" yaml:"role"` // "principal" or "secondary"
	Description string `json:"description" yaml:"description"`
}

// StoryContext is the shared narrative context of a run. It is created once
// from the plan and never mutated during generation.
type StoryContext struct {
	Title             string      `json:"title" yaml:"title"`
	StoryType         string      `json:"story_type" yaml:"story_type"`
	TargetAge         int         `json:"target_age" yaml:"target_age"`
	MainCharacter     string      `json:"main_character" yaml:"main_character"`
	Characters        []Character `json:"characters" yaml:"characters"`
	Moral             string      `json:"moral" yaml:"moral"`
	ForbiddenElements []string    `json:"forbidden_elements" yaml:"forbidden_elements"`
}

// CharacterNames returns the cast names in plan order.
func (c StoryContext) CharacterNames() []string {
	names := make([]string, 0, len(c.Characters))
	for _, ch := range c.Characters {
		if ch.Name != "" {
			names = append(names, ch.Name)
		}
	}
	return names
}

// ChapterSpec describes one chapter to generate. Chapter numbers are
// positive, unique within a plan, and define generation order.
type ChapterSpec struct {
	ChapterNumber   int    `json:"chapter_number" yaml:"chapter_number"`
	Title           string `json:"title" yaml:"title"`
	Summary         string `json:"summary" yaml:"summary"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
}

// ChapterResult is the terminal record of one chapter's lifecycle. Once
// written it is never mutated, only superseded by re-running from scratch.
type ChapterResult struct {
	ChapterNumber    int       `json:"chapter_number"`
	StoryText        string    `json:"story_text"`
	IllustrationPath string    `json:"illustration_path"`
	Status           string    `json:"status"` // "ok" or "failed"
	ErrorMessage     string    `json:"error_message,omitempty"`
	AttemptCount     int       `json:"attempt_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Accepted reports whether the chapter completed moderation successfully.
func (r ChapterResult) Accepted() bool {
	return r.Status == StatusOK
}

// RunState is the append-only list of chapter results for one run, keyed by
// chapter number. The coordinator is its only writer.
type RunState struct {
	StoryID  string          `json:"story_id"`
	Chapters []ChapterResult `json:"chapters"`
}

// Has reports whether a result already exists for the chapter number.
func (s *RunState) Has(chapterNumber int) bool {
	for _, c := range s.Chapters {
		if c.ChapterNumber == chapterNumber {
			return true
		}
	}
	return false
}

// Append inserts a chapter result keeping the list ordered by chapter
// number. Duplicate chapter numbers are the caller's bug; Append keeps the
// first occurrence to preserve the uniqueness invariant.
func (s *RunState) Append(result ChapterResult) {
	if s.Has(result.ChapterNumber) {
		return
	}
	i := sort.Search(len(s.Chapters), func(i int) bool {
		return s.Chapters[i].ChapterNumber > result.ChapterNumber
	})
	s.Chapters = append(s.Chapters, ChapterResult{})
	copy(s.Chapters[i+1:], s.Chapters[i:])
	s.Chapters[i] = result
}

// AcceptedTexts returns the story texts of accepted chapters in chapter
// order. This is the continuity context fed to later moderation.
func (s *RunState) AcceptedTexts() []string {
	texts := make([]string, 0, len(s.Chapters))
	for _, c := range s.Chapters {
		if c.Accepted() && c.StoryText != "" {
			texts = append(texts, c.StoryText)
		}
	}
	return texts
}

// Complete reports whether every chapter result carries status "ok".
func (s *RunState) Complete() bool {
	for _, c := range s.Chapters {
		if !c.Accepted() {
			return false
		}
	}
	return true
}

// ContainsForbidden lower-cases the text and reports which forbidden
// elements appear as substrings.
func ContainsForbidden(text string, forbidden []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, term := range forbidden {
		t := strings.TrimSpace(term)
		if t == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			matched = append(matched, t)
		}
	}
	return matched
}
