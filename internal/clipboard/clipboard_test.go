package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShell struct {
	installed map[string]bool
	failing   map[string]bool
	ran       []string
	input     string
}

func (f *fakeShell) lookPath(name string) (string, error) {
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func (f *fakeShell) run(_ context.Context, name string, _ []string, input string) error {
	f.ran = append(f.ran, name)
	if f.failing[name] {
		return errors.New("exit status 1")
	}
	f.input = input
	return nil
}

func TestCopyFallsBackInOrder(t *testing.T) {
	sh := &fakeShell{
		installed: map[string]bool{"xclip": true, "xsel": true},
		failing:   map[string]bool{"xclip": true},
	}
	c := New(WithPlatform("linux"), WithRunner(sh.lookPath, sh.run))

	require.NoError(t, c.Copy(context.Background(), "hello"))
	assert.Equal(t, []string{"xclip", "xsel"}, sh.ran)
	assert.Equal(t, "hello", sh.input)
	assert.True(t, c.Available())
}

func TestCopyUnavailable(t *testing.T) {
	sh := &fakeShell{}
	c := New(WithPlatform("linux"), WithRunner(sh.lookPath, sh.run))

	err := c.Copy(context.Background(), "x")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "linux", unavailable.OS)
	assert.Contains(t, err.Error(), "xclip")
	assert.False(t, c.Available())
}

func TestCopyAllFail(t *testing.T) {
	sh := &fakeShell{
		installed: map[string]bool{"pbcopy": true},
		failing:   map[string]bool{"pbcopy": true},
	}
	c := New(WithPlatform("darwin"), WithRunner(sh.lookPath, sh.run))

	err := c.Copy(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pbcopy failed")
}

func TestUnsupportedPlatform(t *testing.T) {
	c := New(WithPlatform("plan9"))
	assert.Error(t, c.Copy(context.Background(), "x"))
	assert.Contains(t, InstallInstructions("plan9"), "not supported")
}
