package engine

import (
	"context"
	"sync"

	"ether-stories/internal/interfaces"
	"ether-stories/internal/models"
)

// fakeGenerator returns scripted drafts in order, repeating the last one
// when the script runs out.
type fakeGenerator struct {
	mu      sync.Mutex
	drafts  []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)

	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if len(f.drafts) == 0 {
		return "", nil
	}
	if i >= len(f.drafts) {
		i = len(f.drafts) - 1
	}
	return f.drafts[i], nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeJudge returns scripted verdicts, or err on every call when set.
type fakeJudge struct {
	mu       sync.Mutex
	verdicts []interfaces.Verdict
	err      error
	calls    int
	requests []interfaces.JudgeRequest
}

func (f *fakeJudge) Judge(_ context.Context, req interfaces.JudgeRequest) (interfaces.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)

	if f.err != nil {
		return interfaces.Verdict{}, f.err
	}
	if len(f.verdicts) == 0 {
		return interfaces.Verdict{Coherent: true}, nil
	}
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	return f.verdicts[i], nil
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeJudge) lastRequest() interfaces.JudgeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return interfaces.JudgeRequest{}
	}
	return f.requests[len(f.requests)-1]
}

// fakeIllustrator returns a fixed path or error.
type fakeIllustrator struct {
	mu      sync.Mutex
	path    string
	err     error
	calls   int
	prompts []string
}

func (f *fakeIllustrator) Illustrate(_ context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

// memStore is an in-memory RunStore.
type memStore struct {
	mu        sync.Mutex
	states    map[string]*models.RunState
	appendErr error
	appends   int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]*models.RunState)}
}

func (s *memStore) Load(_ context.Context, storyID string) (*models.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[storyID]
	if !ok {
		return &models.RunState{StoryID: storyID}, nil
	}
	copied := &models.RunState{StoryID: storyID}
	copied.Chapters = append(copied.Chapters, state.Chapters...)
	return copied, nil
}

func (s *memStore) Append(_ context.Context, storyID string, result models.ChapterResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends++
	state, ok := s.states[storyID]
	if !ok {
		state = &models.RunState{StoryID: storyID}
		s.states[storyID] = state
	}
	state.Append(result)
	return nil
}

func (s *memStore) chapters(storyID string) []models.ChapterResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[storyID]
	if !ok {
		return nil
	}
	return append([]models.ChapterResult(nil), state.Chapters...)
}

// recordingSink collects progress events.
type recordingSink struct {
	mu     sync.Mutex
	events []interfaces.ChapterEvent
}

func (s *recordingSink) Publish(_ context.Context, event interfaces.ChapterEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	phases := make([]string, len(s.events))
	for i, e := range s.events {
		phases[i] = e.Phase
	}
	return phases
}

func testStoryContext() models.StoryContext {
	return models.StoryContext{
		Title:         "Luna and the Sky Garden",
		StoryType:     "conte",
		TargetAge:     7,
		MainCharacter: "Luna",
		Characters: []models.Character{
			{Name: "Luna", Role: models.RolePrincipal, Description: "a curious girl"},
			{Name: "Pip", Role: models.RoleSecondary, Description: "a small bird"},
		},
		Moral:             "courage and friendship",
		ForbiddenElements: []string{"monster"},
	}
}

func testJudgeRequest() interfaces.JudgeRequest {
	return interfaces.JudgeRequest{
		Text:            "Luna opened the gate to the sky garden.",
		Title:           "Luna and the Sky Garden",
		MainCharacter:   "Luna",
		ChapterNumber:   1,
		ExpectedSummary: "Luna meets a new friend in the garden",
		CharacterNames:  []string{"Luna", "Pip"},
		Forbidden:       []string{"monster"},
	}
}

func testChapterSpec(n int) models.ChapterSpec {
	return models.ChapterSpec{
		ChapterNumber:   n,
		Title:           "A friendly encounter",
		Summary:         "Luna meets a new friend in the garden",
		DurationMinutes: 2,
	}
}
