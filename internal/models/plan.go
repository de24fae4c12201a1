package models

import (
	"errors"
	"fmt"
	"sort"
)

// Plan is a fully decomposed story: shared context plus the ordered chapter
// specifications. Plans are produced upstream (plan model / admin tooling);
// the engine only validates and normalizes them.
type Plan struct {
	Context  StoryContext  `json:"context" yaml:"context"`
	Chapters []ChapterSpec `json:"chapters" yaml:"chapters"`
}

// ErrPlanInvalid wraps all structural plan failures. It is fatal for the
// whole run and raised before any chapter processing begins.
var ErrPlanInvalid = errors.New("invalid story plan")

// Validate checks the structural invariants the engine relies on: at least
// one chapter, positive chapter numbers, no duplicates.
func (p *Plan) Validate() error {
	if len(p.Chapters) == 0 {
		return fmt.Errorf("%w: plan has no chapters", ErrPlanInvalid)
	}
	seen := make(map[int]bool, len(p.Chapters))
	for _, ch := range p.Chapters {
		if ch.ChapterNumber < 1 {
			return fmt.Errorf("%w: chapter number %d is not positive", ErrPlanInvalid, ch.ChapterNumber)
		}
		if seen[ch.ChapterNumber] {
			return fmt.Errorf("%w: duplicate chapter number %d", ErrPlanInvalid, ch.ChapterNumber)
		}
		seen[ch.ChapterNumber] = true
	}
	return nil
}

// SortChapters orders the chapter list by chapter number. Generation order
// is defined by chapter numbers, not by document order.
func (p *Plan) SortChapters() {
	sort.Slice(p.Chapters, func(i, j int) bool {
		return p.Chapters[i].ChapterNumber < p.Chapters[j].ChapterNumber
	})
}

// ChapterCount derives how many chapters a story of the given total
// duration should have: one chapter per two minutes, at least one.
func ChapterCount(durationMinutes int) int {
	if durationMinutes <= 2 {
		return 1
	}
	return (durationMinutes + 1) / 2
}

// NormalizeDurations redistributes the total planned duration evenly across
// the chapters when the per-chapter durations don't add up to it. Earlier
// chapters absorb the remainder minute by minute.
func (p *Plan) NormalizeDurations(totalMinutes int) {
	n := len(p.Chapters)
	if n == 0 || totalMinutes <= 0 {
		return
	}
	sum := 0
	for _, ch := range p.Chapters {
		sum += ch.DurationMinutes
	}
	if sum == totalMinutes {
		return
	}
	base := totalMinutes / n
	rem := totalMinutes % n
	for i := range p.Chapters {
		d := base
		if i < rem {
			d++
		}
		if d < 1 {
			d = 1
		}
		p.Chapters[i].DurationMinutes = d
	}
}
