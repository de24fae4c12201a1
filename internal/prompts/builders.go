package prompts

import (
	"fmt"
	"strings"

	"ether-stories/internal/models"
)

// DraftInput carries everything the writer prompt needs for one attempt.
type DraftInput struct {
	Context models.StoryContext
	Chapter models.ChapterSpec
	// Attempt starts at 1. On later attempts the prompt carries a visible
	// rejection notice so the generator receives feedback.
	Attempt    int
	LastReason string
}

// BuildDraftPrompt renders the writer prompt for one generation attempt.
func (e *TemplateEngine) BuildDraftPrompt(in DraftInput) (string, error) {
	vars := map[string]string{
		"title":          in.Context.Title,
		"chapter_number": fmt.Sprintf("%d", in.Chapter.ChapterNumber),
		"chapter_title":  in.Chapter.Title,
		"summary":        in.Chapter.Summary,
		"characters":     strings.Join(in.Context.CharacterNames(), ", "),
		"target_age":     fmt.Sprintf("%d", in.Context.TargetAge),
		"moral":          in.Context.Moral,
		"word_range":     wordRange(in.Chapter.DurationMinutes),
	}

	if in.Attempt > 1 {
		notice := fmt.Sprintf("ATTEMPT #%d: the previous draft was REJECTED", in.Attempt)
		if in.LastReason != "" {
			notice += ": " + in.LastReason
		}
		notice += ".\nStrictly follow ALL constraints this time."
		vars["retry_notice"] = notice
	}

	if len(in.Context.ForbiddenElements) > 0 {
		vars["forbidden_block"] = fmt.Sprintf(
			"FORBIDDEN WORDS: %s\nNEVER use these words, not even as metaphors.",
			strings.Join(in.Context.ForbiddenElements, ", "))
	}

	return e.Render(TemplateChapterDraft, vars)
}

// JudgeInput carries the moderation prompt variables.
type JudgeInput struct {
	Text            string
	Title           string
	MainCharacter   string
	ExpectedSummary string
	CharacterNames  []string
	Forbidden       []string
	PriorChapters   []string
}

// BuildJudgePrompt renders the semantic moderation prompt. Only the prior
// chapters the caller passes are included; windowing is the gate's job.
func (e *TemplateEngine) BuildJudgePrompt(in JudgeInput) (string, error) {
	vars := map[string]string{
		"title":          in.Title,
		"main_character": in.MainCharacter,
		"text":           in.Text,
	}

	n := 1
	if in.ExpectedSummary != "" {
		vars["summary_criterion"] = fmt.Sprintf("%d. The text follows this summary: «%s»", n, in.ExpectedSummary)
		n++
	}
	if len(in.CharacterNames) > 0 {
		vars["characters_criterion"] = fmt.Sprintf("%d. All of these characters are present: %s", n, strings.Join(in.CharacterNames, ", "))
		n++
	}
	if len(in.Forbidden) > 0 {
		vars["forbidden_criterion"] = fmt.Sprintf(
			"%d. CRITICAL: the text contains NONE of these words: %s\n   If a single forbidden word appears, coherent must be false.",
			n, strings.Join(in.Forbidden, ", "))
	}
	if len(in.PriorChapters) > 0 {
		vars["previous_block"] = "PREVIOUS CHAPTERS:\n" + strings.Join(in.PriorChapters, "\n---\n")
	}

	return e.Render(TemplateModeration, vars)
}

// BuildIllustrationPrompt derives the image prompt from the chapter title
// and summary only, to bound prompt size.
func (e *TemplateEngine) BuildIllustrationPrompt(chapter models.ChapterSpec) (string, error) {
	return e.Render(TemplateIllustration, map[string]string{
		"chapter_title": chapter.Title,
		"summary":       chapter.Summary,
	})
}

// wordRange maps a chapter duration to a target word count range. Roughly
// 125-200 spoken words per minute, floored at 250-400 so very short
// chapters still read as chapters.
func wordRange(durationMinutes int) string {
	if durationMinutes < 2 {
		durationMinutes = 2
	}
	return fmt.Sprintf("%d-%d", durationMinutes*125, durationMinutes*200)
}
