package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ether-stories/internal/interfaces"
	"ether-stories/internal/logging"
)

func newTestGate(judge interfaces.SafetyJudge, failOpen bool) *SafetyGate {
	return NewSafetyGate(judge, 2, failOpen, NewMetrics(), logging.NewForTest())
}

func TestSafetyGate_ForbiddenWordShortCircuits(t *testing.T) {
	judge := &fakeJudge{}
	gate := newTestGate(judge, false)

	verdict := gate.Evaluate(context.Background(), "A Monster appears in the garden", GateInput{
		Context: testStoryContext(),
		Chapter: testChapterSpec(1),
	})

	if verdict.Coherent {
		t.Error("Evaluate() accepted a draft containing a forbidden word")
	}
	if !strings.Contains(verdict.Reason, "monster") {
		t.Errorf("Reason = %q, want it to list the matched term", verdict.Reason)
	}
	if judge.callCount() != 0 {
		t.Errorf("judge called %d times, want 0 (lexical short-circuit)", judge.callCount())
	}
}

func TestSafetyGate_PassesCleanDraftToJudge(t *testing.T) {
	judge := &fakeJudge{verdicts: []interfaces.Verdict{{Coherent: true}}}
	gate := newTestGate(judge, false)

	verdict := gate.Evaluate(context.Background(), "A friendly creature appears", GateInput{
		Context: testStoryContext(),
		Chapter: testChapterSpec(1),
	})

	if !verdict.Coherent {
		t.Errorf("Evaluate() = %+v, want accepted", verdict)
	}
	if judge.callCount() != 1 {
		t.Errorf("judge called %d times, want 1", judge.callCount())
	}

	req := judge.lastRequest()
	if req.Title != "Luna and the Sky Garden" || req.MainCharacter != "Luna" {
		t.Errorf("judge request context = %q/%q, want story title and main character", req.Title, req.MainCharacter)
	}
	if len(req.CharacterNames) != 2 {
		t.Errorf("CharacterNames = %v, want both cast members", req.CharacterNames)
	}
}

func TestSafetyGate_SemanticRejectionPropagatesReason(t *testing.T) {
	judge := &fakeJudge{verdicts: []interfaces.Verdict{{Coherent: false, Reason: "does not follow the summary"}}}
	gate := newTestGate(judge, false)

	verdict := gate.Evaluate(context.Background(), "Some unrelated tale", GateInput{
		Context: testStoryContext(),
		Chapter: testChapterSpec(1),
	})

	if verdict.Coherent {
		t.Error("Evaluate() accepted a draft the judge rejected")
	}
	if verdict.Reason != "does not follow the summary" {
		t.Errorf("Reason = %q, want the judge's reason", verdict.Reason)
	}
}

func TestSafetyGate_FailsClosedOnJudgeError(t *testing.T) {
	judge := &fakeJudge{err: errors.New("connection refused")}
	gate := newTestGate(judge, false)

	verdict := gate.Evaluate(context.Background(), "A friendly creature appears", GateInput{
		Context: testStoryContext(),
		Chapter: testChapterSpec(1),
	})

	if verdict.Coherent {
		t.Error("Evaluate() accepted a draft on judge error, want fail-closed rejection")
	}
	if !strings.Contains(verdict.Reason, "safety check unavailable") {
		t.Errorf("Reason = %q, want it to mention the unavailable check", verdict.Reason)
	}
}

func TestSafetyGate_FailOpenOverride(t *testing.T) {
	judge := &fakeJudge{err: errors.New("connection refused")}
	gate := newTestGate(judge, true)

	verdict := gate.Evaluate(context.Background(), "A friendly creature appears", GateInput{
		Context: testStoryContext(),
		Chapter: testChapterSpec(1),
	})

	if !verdict.Coherent {
		t.Error("Evaluate() rejected under fail-open override, want acceptance")
	}
}

func TestSafetyGate_PriorChapterWindow(t *testing.T) {
	judge := &fakeJudge{}
	gate := newTestGate(judge, false)

	gate.Evaluate(context.Background(), "A friendly creature appears", GateInput{
		Context:       testStoryContext(),
		Chapter:       testChapterSpec(4),
		PriorChapters: []string{"one", "two", "three"},
	})

	got := judge.lastRequest().PriorChapters
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("PriorChapters = %v, want the last two chapters", got)
	}
}
