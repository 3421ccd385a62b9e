package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultID and DefaultDescription are used for records whose file carries
// no recognizable front matter.
const (
	DefaultID          = "unknown"
	DefaultDescription = "No description"
)

// Metadata is the front matter of a prompt file.
// Optional fields are omitted from the header when empty.
type Metadata struct {
	ID            string   `yaml:"id" json:"id"`
	Description   string   `yaml:"description" json:"description"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt     string   `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     string   `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	Version       string   `yaml:"version,omitempty" json:"version,omitempty"`
	ContentHash   string   `yaml:"git_hash,omitempty" json:"git_hash,omitempty"`
	ParentVersion string   `yaml:"parent_version,omitempty" json:"parent_version,omitempty"`
}

// DefaultMetadata returns the metadata synthesized for headerless files.
func DefaultMetadata() Metadata {
	return Metadata{ID: DefaultID, Description: DefaultDescription}
}

// Clone returns a deep copy; the tags slice is not shared.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	return out
}

// HasTag reports whether the metadata carries tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Record is a prompt's metadata together with its body.
type Record struct {
	Key      string   `json:"key"`
	Metadata Metadata `json:"metadata"`
	Body     string   `json:"body"`
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	return Record{Key: r.Key, Metadata: r.Metadata.Clone(), Body: r.Body}
}

// Timestamp formats t the way headers store it (RFC 3339, UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Now returns the current time as a header timestamp.
func Now() string {
	return Timestamp(time.Now())
}

// HashBody returns the hex sha256 of a body, used for content_hash.
func HashBody(body string) string {
	hash := sha256.Sum256([]byte(body))
	return hex.EncodeToString(hash[:])
}

// Preview returns at most n runes of s on a single line.
func Preview(s string, n int) string {
	cleaned := cleanString(s)
	runes := []rune(cleaned)
	if len(runes) <= n {
		return cleaned
	}
	return string(runes[:n]) + "..."
}

// cleanString removes problematic characters that might cause rendering issues
func cleanString(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(' ')
		} else if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
