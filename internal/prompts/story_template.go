package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// TemplateEngine manages prompt templates.
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template is a prompt template with {{variable}} placeholders.
type Template struct {
	Name    string
	Content string
}

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// NewTemplateEngine creates an engine pre-loaded with the default story
// templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerDefaults()
	return e
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(tmpl *Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
}

// Render substitutes {{variable}} placeholders from vars. Unknown
// placeholders render as empty strings so optional blocks can be omitted.
func (e *TemplateEngine) Render(name string, vars map[string]string) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	result := varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		key := varRegex.FindStringSubmatch(match)[1]
		return vars[key]
	})
	return collapseBlankLines(result), nil
}

// collapseBlankLines squeezes runs of blank lines left behind by empty
// optional blocks.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

const (
	// TemplateChapterDraft is the writer prompt.
	TemplateChapterDraft = "chapter_draft"
	// TemplateModeration is the semantic judge prompt.
	TemplateModeration = "moderation"
	// TemplateIllustration is the image generation prompt.
	TemplateIllustration = "illustration"
)

// WriterSystemPrompt is the system message sent with every draft request.
const WriterSystemPrompt = "You are a talented children's story writer."

func (e *TemplateEngine) registerDefaults() {
	e.templates[TemplateChapterDraft] = &Template{
		Name: TemplateChapterDraft,
		Content: `Story title: {{title}}
Chapter {{chapter_number}}: {{chapter_title}}
Summary to follow EXACTLY: {{summary}}
Characters: {{characters}}
Target age: {{target_age}} years
Moral of the story: {{moral}}

{{retry_notice}}

{{forbidden_block}}

Write {{word_range}} words, joyful and reassuring.
Use the EXACT character names.
Follow the summary above to the letter.`,
	}

	e.templates[TemplateModeration] = &Template{
		Name: TemplateModeration,
		Content: `You are a moderator for a children's story ("{{title}}", main character {{main_character}}).
Check whether the following chapter text respects ALL criteria.

TEXT:
{{text}}

CRITERIA:
{{summary_criterion}}
{{characters_criterion}}
{{forbidden_criterion}}

{{previous_block}}

Respond ONLY with JSON:
{"coherent": true} or {"coherent": false, "reason": "..."}`,
	}

	e.templates[TemplateIllustration] = &Template{
		Name:    TemplateIllustration,
		Content: `Children's book illustration: {{chapter_title}} - {{summary}}`,
	}
}
