package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var envVarRe = regexp.MustCompile(`\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// inputPlaceholders are replaced by the caller-supplied input.
var inputPlaceholders = []string{"{input}", "{INPUT}", "{content}", "{CONTENT}"}

// Renderer substitutes {placeholders} in prompt bodies.
//
// Supported: {input} (also {INPUT}, {content}, {CONTENT}), {date}, {time},
// {datetime}, {timestamp}, {iso_date}, {user}, {hostname}, {uuid}, {cwd},
// {pwd}, {env:NAME} and any variable set with Set, e.g. {name}.
// Unknown placeholders are left as they are.
type Renderer struct {
	vars map[string]string
	now  func() time.Time
	env  func(string) (string, bool)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock overrides time.Now for date and time placeholders.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithEnv overrides environment lookups for {env:NAME} and {user}.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Renderer) { r.env = lookup }
}

// NewRenderer creates a new renderer instance
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		vars: make(map[string]string),
		now:  time.Now,
		env:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set defines a custom variable rendered from {name}.
func (r *Renderer) Set(name, value string) {
	r.vars[name] = value
}

// SetAll defines several custom variables from name=value pairs.
func (r *Renderer) SetAll(pairs []string) error {
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid variable %q, expected name=value", p)
		}
		r.Set(name, value)
	}
	return nil
}

// RenderText substitutes every known placeholder in body. A body with no
// placeholders at all gets the input appended after a blank line.
func (r *Renderer) RenderText(body, input string) string {
	if !strings.Contains(body, "{") {
		if input == "" {
			return body
		}
		return body + "\n\n" + input
	}

	result := body
	if input != "" {
		for _, p := range inputPlaceholders {
			result = strings.ReplaceAll(result, p, input)
		}
	}

	if strings.Contains(result, "{") {
		result = r.systemVars(result)
	}
	if strings.Contains(result, "{env:") {
		result = envVarRe.ReplaceAllStringFunc(result, func(m string) string {
			name := envVarRe.FindStringSubmatch(m)[1]
			v, _ := r.env(name)
			return v
		})
	}
	for name, value := range r.vars {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}

func (r *Renderer) systemVars(s string) string {
	now := r.now()
	utc := now.UTC()
	pairs := []string{
		"{date}", utc.Format("2006-01-02"),
		"{time}", now.Format("15:04:05"),
		"{datetime}", now.Format("2006-01-02 15:04:05"),
		"{timestamp}", strconv.FormatInt(utc.Unix(), 10),
		"{iso_date}", utc.Format(time.RFC3339),
	}
	if strings.Contains(s, "{user}") {
		user, ok := r.env("USER")
		if !ok || user == "" {
			user = "unknown"
		}
		pairs = append(pairs, "{user}", user)
	}
	if strings.Contains(s, "{hostname}") {
		host, _ := os.Hostname()
		pairs = append(pairs, "{hostname}", host)
	}
	if strings.Contains(s, "{cwd}") || strings.Contains(s, "{pwd}") {
		if cwd, err := os.Getwd(); err == nil {
			pairs = append(pairs, "{cwd}", cwd, "{pwd}", filepath.Base(cwd))
		}
	}
	s = strings.NewReplacer(pairs...).Replace(s)

	// each {uuid} gets its own value
	for strings.Contains(s, "{uuid}") {
		s = strings.Replace(s, "{uuid}", uuid.NewString(), 1)
	}
	return s
}

// RenderJSON renders the prompt as a JSON message array for LLM APIs
func (r *Renderer) RenderJSON(body, input string) (string, error) {
	messages := []Message{
		{
			Role:    "user",
			Content: r.RenderText(body, input),
		},
	}

	jsonBytes, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// Message represents a chat message for LLM APIs
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
