package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

func TestCovers(t *testing.T) {
	tests := []struct {
		name         string
		capabilities []string
		target       string
		want         bool
	}{
		{"child_of_granted", []string{"workflow/approval"}, "workflow/approval/invoice", true},
		{"exact_match", []string{"workflow/approval"}, "workflow/approval", true},
		{"sibling", []string{"workflow/approval"}, "workflow/review", false},
		{"text_prefix_of_granted", []string{"workflow/approval"}, "work", false},
		{"substring_not_segment", []string{"work"}, "workflow", false},
		{"any_of_several", []string{"assistant/chat", "workflow"}, "workflow/approval", true},
		{"none_of_several", []string{"assistant/chat", "tooling"}, "workflow/approval", false},
		{"empty_set", nil, "workflow", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := make([]uri.CapabilityPath, len(tt.capabilities))
			for i, c := range tt.capabilities {
				caps[i] = mustPath(t, c)
			}
			assert.Equal(t, tt.want, Covers(caps, mustPath(t, tt.target)))
		})
	}
}

func TestCovers_AgreesWithStartsWith(t *testing.T) {
	// For a singleton set, coverage is exactly StartsWith.
	pairs := [][2]string{
		{"a", "a/b"},
		{"a/b", "a/b"},
		{"a/b", "a"},
		{"a/b/c", "a/b/d"},
		{"x", "y"},
	}
	for _, pair := range pairs {
		c := mustPath(t, pair[0])
		target := mustPath(t, pair[1])
		assert.Equal(t, target.StartsWith(c), Covers([]uri.CapabilityPath{c}, target),
			"capability %q target %q", pair[0], pair[1])
	}
}
