package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantPassed bool
		wantReason string
	}{
		{name: "plain pass", raw: "PASS", wantPassed: true},
		{name: "lowercase pass", raw: "pass", wantPassed: true},
		{name: "pass with trailing text", raw: "PASS - looks good", wantPassed: true},
		{name: "pass with leading whitespace", raw: "  \nPASS", wantPassed: true},
		{name: "reject with reason", raw: "REJECT: answer cites no sources", wantReason: ": answer cites no sources"},
		{name: "reject with spaced reason", raw: "REJECT answer is off-topic", wantReason: "answer is off-topic"},
		{name: "lowercase reject", raw: "reject too vague", wantReason: "too vague"},
		{name: "bare reject", raw: "REJECT", wantReason: defaultRejectReason},
		{name: "reject with only whitespace after", raw: "REJECT   ", wantReason: defaultRejectReason},
		{name: "unparseable output passes", raw: "The response seems fine to me.", wantPassed: true},
		{name: "empty output passes", raw: "", wantPassed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseVerdict(tt.raw)
			assert.Equal(t, tt.wantPassed, got.passed)
			assert.Equal(t, tt.wantReason, got.reason)
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("Q: {question}\nCtx: {context}", map[string]string{
		"question": "why?",
		"context":  "because",
	})
	assert.Equal(t, "Q: why?\nCtx: because", got)

	// Unknown placeholders survive verbatim.
	got = renderTemplate("{response} and {typo}", map[string]string{"response": "x"})
	assert.Equal(t, "x and {typo}", got)
}
