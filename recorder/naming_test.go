package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Inline 4", "Inline 4"},
		{"V8: Big/Block", "V8_ Big_Block"},
		{"a::b", "a__b"},
		{"?lead", "_lead"},
		{"tab\there", "tab_here"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeFileName(tc.in), tc.in)
	}
}

func TestBlendify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Inline 4", "Inline_4"},
		// underscores introduced by sanitising are dropped again
		{"V8: Big/Block", "V8_BigBlock"},
		{"2JZ-GTE (twin turbo)", "2JZ-GTE_twin_turbo"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Blendify(tc.in), tc.in)
	}
}
