package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dpshade/prompthive/internal/errors"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		input string
		want  Key
		path  string
	}{
		{"foo", LocalKey("foo"), "prompts/foo.md"},
		{"  my prompt! ", LocalKey("myprompt"), "prompts/myprompt.md"},
		{"bank/name", BankKey("bank", "name"), "banks/bank/name.md"},
		{"bank/sub/deep/name", BankKey("bank", "sub/deep/name"), "banks/bank/sub/deep/name.md"},
		{"/bank/name/", BankKey("bank", "name"), "banks/bank/name.md"},
		{"@team/name", TeamKey("team", "name"), "teams/team/name.md"},
		{"中文/提示", BankKey("中文", "提示"), "banks/中文/提示.md"},
		{"café", LocalKey("café"), "prompts/café.md"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.path, got.RelPath())
		})
	}
}

func TestParseKeyRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "..", "bank/../x", "@team", "@team/a/b", "@/name", "!!!", ".hidden", "bank/readme"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseKey(input)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidKey))
		})
	}
}

func TestSanitizeComponent(t *testing.T) {
	got, err := SanitizeComponent(strings.Repeat("a", 100))
	require.NoError(t, err)
	assert.Len(t, []rune(got), 64)

	// NFD input normalizes to the composed form
	got, err = SanitizeComponent("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)

	got, err = SanitizeComponent("ひらがな-カタカナ_v1.2")
	require.NoError(t, err)
	assert.Equal(t, "ひらがな-カタカナ_v1.2", got)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "foo", LocalKey("foo").String())
	assert.Equal(t, "bank/sub/foo", BankKey("bank", "sub/foo").String())
	assert.Equal(t, "@team/foo", TeamKey("team", "foo").String())
	assert.Equal(t, "foo", BankKey("bank", "sub/foo").BaseName())
}
