// Package importer copies markdown prompt files from another tool's
// directory (for example .claude/commands or .claude/agents) into the
// library.
package importer

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/storage"
)

// Target is where imported records are written.
type Target interface {
	Exists(key storage.Key) bool
	Write(key storage.Key, meta models.Metadata, body string) error
}

// Options configures an import.
type Options struct {
	Bank      string   // import into this bank, keeping subdirectories; empty imports flat local prompts
	Tags      []string // added to every imported record
	Overwrite bool     // replace records that already exist
	DryRun    bool     // report what would happen without writing
}

// Result lists what an import did.
type Result struct {
	Imported []storage.Key
	Skipped  []storage.Key
	Errors   []error
}

// Importer walks a source directory and writes each markdown file as a record.
type Importer struct {
	fs     afero.Fs
	target Target
	log    zerolog.Logger
	now    func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithFs reads sources from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(i *Importer) { i.fs = fs }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// New creates a new importer writing into target
func New(target Target, log zerolog.Logger, opts ...Option) *Importer {
	i := &Importer{
		fs:     afero.NewOsFs(),
		target: target,
		log:    log.With().Str("component", "importer").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import copies every .md file below dir. Per-file failures are collected
// in the result; only an unreadable source directory fails the call.
func (i *Importer) Import(dir string, opts Options) (*Result, error) {
	info, err := i.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NotFoundError(fmt.Sprintf("directory '%s'", dir))
	}

	result := &Result{}
	err = afero.Walk(i.fs, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key, err := keyFromPath(rel, opts.Bank)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to import %s: %w", rel, err))
			return nil
		}

		if i.target.Exists(key) && !opts.Overwrite {
			result.Skipped = append(result.Skipped, key)
			return nil
		}

		if err := i.importFile(p, rel, key, opts); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to import %s: %w", rel, err))
			return nil
		}
		result.Imported = append(result.Imported, key)
		return nil
	})
	if err != nil {
		return result, apperrors.StorageError("walk "+dir, err)
	}

	i.log.Info().
		Str("source", dir).
		Int("imported", len(result.Imported)).
		Int("skipped", len(result.Skipped)).
		Int("errors", len(result.Errors)).
		Bool("dry_run", opts.DryRun).
		Msg("import complete")
	return result, nil
}

func (i *Importer) importFile(p, rel string, key storage.Key, opts Options) error {
	content, err := afero.ReadFile(i.fs, p)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	header, body := parseFrontmatter(content)

	tags := stringList(header["tags"])
	if dir := filepath.Dir(rel); dir != "." && opts.Bank == "" {
		tags = append(tags, strings.Split(filepath.ToSlash(dir), "/")...)
	}
	tags = cleanTags(append(tags, opts.Tags...))

	description, _ := header["description"].(string)
	if description == "" {
		description = extractTitle(body)
	}
	if description == "" {
		description = models.DefaultDescription
	}

	ts := models.Timestamp(i.now())
	meta := models.Metadata{
		ID:          key.String(),
		Description: strings.TrimSpace(description),
		Tags:        tags,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	if opts.DryRun {
		i.log.Debug().Str("key", key.String()).Msg("would import")
		return nil
	}
	return i.target.Write(key, meta, body)
}

// keyFromPath maps a source path to a key: nested directories are kept
// below a bank, or joined with '-' for flat local names.
func keyFromPath(rel, bank string) (storage.Key, error) {
	stem := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	if bank != "" {
		return storage.ParseKey(bank + "/" + stem)
	}
	return storage.ParseKey(strings.ReplaceAll(stem, "/", "-"))
}

// parseFrontmatter splits optional YAML front matter from the body. A header
// that does not parse is ignored.
func parseFrontmatter(content []byte) (map[string]interface{}, string) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return nil, strings.TrimSpace(string(content))
	}

	var header []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		header = append(header, line)
	}
	if !closed {
		return nil, strings.TrimSpace(string(content))
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(strings.Join(header, "\n")), &fm); err != nil {
		fm = nil
	}
	return fm, strings.TrimSpace(strings.Join(body, "\n"))
}

// stringList accepts a YAML list or a comma-separated string.
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(t, ",")
	}
	return nil
}

// extractTitle returns the text of the first "# " heading.
func extractTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// cleanTags removes empty and duplicate tags
func cleanTags(tags []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !seen[tag] {
			seen[tag] = true
			result = append(result, tag)
		}
	}
	return result
}
