package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// tool is one clipboard command and its arguments.
type tool struct {
	name string
	args []string
}

// tools lists the clipboard commands tried on each platform, in order.
var tools = map[string][]tool{
	"darwin":  {{name: "pbcopy"}},
	"linux":   {{name: "wl-copy"}, {name: "xclip", args: []string{"-selection", "clipboard"}}, {name: "xsel", args: []string{"--clipboard", "--input"}}},
	"windows": {{name: "clip"}},
}

// UnavailableError reports that no clipboard command could be found.
type UnavailableError struct {
	OS string
}

func (e *UnavailableError) Error() string {
	return "no clipboard utility found. " + InstallInstructions(e.OS)
}

// Copier writes text to the system clipboard through an external command.
type Copier struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args []string, input string) error
	timeout  time.Duration
}

// Option configures a Copier.
type Option func(*Copier)

// WithPlatform overrides runtime.GOOS.
func WithPlatform(goos string) Option {
	return func(c *Copier) { c.goos = goos }
}

// WithRunner overrides command lookup and execution.
func WithRunner(lookPath func(string) (string, error), run func(ctx context.Context, name string, args []string, input string) error) Option {
	return func(c *Copier) {
		c.lookPath = lookPath
		c.run = run
	}
}

// New creates a clipboard copier for the current platform
func New(opts ...Option) *Copier {
	c := &Copier{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether any clipboard command is installed.
func (c *Copier) Available() bool {
	for _, t := range tools[c.goos] {
		if _, err := c.lookPath(t.name); err == nil {
			return true
		}
	}
	return false
}

// Copy writes text to the clipboard using the first installed command that
// succeeds.
func (c *Copier) Copy(ctx context.Context, text string) error {
	candidates, ok := tools[c.goos]
	if !ok {
		return fmt.Errorf("clipboard not supported on %s", c.goos)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var errs []error
	for _, t := range candidates {
		if _, err := c.lookPath(t.name); err != nil {
			continue
		}
		if err := c.run(ctx, t.name, t.args, text); err != nil {
			errs = append(errs, fmt.Errorf("%s failed: %w", t.name, err))
			continue
		}
		return nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("clipboard utilities available but failed: %w", errors.Join(errs...))
	}
	return &UnavailableError{OS: c.goos}
}

func runCommand(ctx context.Context, name string, args []string, input string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)
	return cmd.Run()
}

// InstallInstructions returns installation hints for goos.
func InstallInstructions(goos string) string {
	switch goos {
	case "linux":
		return "Install one of: wl-clipboard (Wayland), xclip or xsel"
	case "darwin":
		return "pbcopy should be available by default on macOS"
	case "windows":
		return "clip should be available by default on Windows"
	default:
		return fmt.Sprintf("Clipboard not supported on %s", goos)
	}
}
