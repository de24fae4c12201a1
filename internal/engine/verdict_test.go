package engine

import "testing"

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		coherent bool
		reason   string
		wantErr  bool
	}{
		{
			name:     "plain acceptance",
			raw:      `{"coherent": true}`,
			coherent: true,
		},
		{
			name:     "plain rejection with reason",
			raw:      `{"coherent": false, "reason": "forbidden word"}`,
			coherent: false,
			reason:   "forbidden word",
		},
		{
			name:     "french reason field",
			raw:      `{"coherent": false, "raison": "mot interdit"}`,
			coherent: false,
			reason:   "mot interdit",
		},
		{
			name:     "markdown fenced",
			raw:      "```json\n{\"coherent\": true}\n```",
			coherent: true,
		},
		{
			name:     "json embedded in prose",
			raw:      "Here is my verdict:\n{\"coherent\": false, \"reason\": \"off topic\"}\nThanks!",
			coherent: false,
			reason:   "off topic",
		},
		{
			name:    "missing coherent field",
			raw:     `{"reason": "hmm"}`,
			wantErr: true,
		},
		{
			name:    "no json at all",
			raw:     "the text looks fine to me",
			wantErr: true,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVerdict(%q) = %+v, want error", tt.raw, verdict)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVerdict(%q) error = %v", tt.raw, err)
			}
			if verdict.Coherent != tt.coherent {
				t.Errorf("Coherent = %v, want %v", verdict.Coherent, tt.coherent)
			}
			if verdict.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", verdict.Reason, tt.reason)
			}
		})
	}
}
