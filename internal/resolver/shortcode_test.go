package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dpshade/prompthive/internal/storage"
)

func TestShortCode(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"test", nil, "t"},
		{"auth-basic", nil, "ab"},
		{"auth_basic_flow", nil, "abf"},
		{"auth-basic", []string{"ab"}, "auba"},
		{"api", []string{"a", "ap"}, "ap1"},
		{"api", []string{"a", "ap", "ap1", "ap2"}, "ap3"},
		{"x", []string{"x", "x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9"}, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken := map[string]bool{}
			for _, e := range tt.existing {
				taken[e] = true
			}
			assert.Equal(t, tt.want, ShortCode(tt.name, taken))
		})
	}
}

func TestAssignShortCodesIsIncremental(t *testing.T) {
	keys := []storage.Key{
		storage.LocalKey("api"),
		storage.LocalKey("apps"),
		storage.BankKey("b", "auth-basic"),
		storage.TeamKey("t", "api"),
	}

	got := AssignShortCodes(keys)
	codes := make([]string, len(got))
	for i, c := range got {
		codes[i] = c.ShortCode
	}
	assert.Equal(t, []string{"a", "ap", "ab", "ap1"}, codes)
	assert.Equal(t, "b/auth-basic (ab)", got[2].String())
}
