package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"ether-stories/internal/interfaces"
)

// jsonBlockRegex grabs the first balanced-looking JSON object out of
// free-form model output.
var jsonBlockRegex = regexp.MustCompile(`(?s)\{.*\}`)

// ParseVerdict extracts a typed verdict from raw judge output. Models wrap
// JSON in markdown fences or surround it with prose; this is the single
// boundary where that ambiguity is resolved. A response with no usable JSON
// object is an error, never a silent acceptance.
func ParseVerdict(raw string) (interfaces.Verdict, error) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var v verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		block := jsonBlockRegex.FindString(cleaned)
		if block == "" {
			return interfaces.Verdict{}, fmt.Errorf("no JSON object in judge response: %q", truncate(raw, 120))
		}
		if err := json.Unmarshal([]byte(block), &v); err != nil {
			return interfaces.Verdict{}, fmt.Errorf("malformed judge response: %w", err)
		}
	}

	if v.Coherent == nil {
		return interfaces.Verdict{}, fmt.Errorf("judge response missing coherent field: %q", truncate(raw, 120))
	}

	reason := v.Reason
	if reason == "" {
		reason = v.Raison
	}
	return interfaces.Verdict{Coherent: *v.Coherent, Reason: reason}, nil
}

// verdictPayload tolerates both field spellings seen in judge output.
type verdictPayload struct {
	Coherent *bool  `json:"coherent"`
	Reason   string `json:"reason"`
	Raison   string `json:"raison"`
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
