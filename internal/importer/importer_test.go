package importer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/storage"
)

type memTarget struct {
	records map[string]models.Record
}

func (m *memTarget) Exists(key storage.Key) bool {
	_, ok := m.records[key.String()]
	return ok
}

func (m *memTarget) Write(key storage.Key, meta models.Metadata, body string) error {
	m.records[key.String()] = models.Record{Key: key.String(), Metadata: meta, Body: body}
	return nil
}

func setup(t *testing.T, files map[string]string) (*Importer, *memTarget) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/src", name), []byte(content), 0o644))
	}
	target := &memTarget{records: map[string]models.Record{}}
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return New(target, zerolog.Nop(), WithFs(fs), WithClock(clock)), target
}

func TestImportIntoBank(t *testing.T) {
	imp, target := setup(t, map[string]string{
		"review.md":         "---\ndescription: Review a diff\ntags: [code, review]\n---\n\nReview this: $ARGUMENTS\n",
		"git/commit.md":     "# Write a commit message\n\nSummarize the staged changes.",
		"notes.txt":         "ignored",
		".hidden/secret.md": "ignored",
	})

	res, err := imp.Import("/src", Options{Bank: "claude", Tags: []string{"imported"}})
	require.NoError(t, err)
	assert.Len(t, res.Imported, 2)
	assert.Empty(t, res.Errors)

	review := target.records["claude/review"]
	assert.Equal(t, "claude/review", review.Metadata.ID)
	assert.Equal(t, "Review a diff", review.Metadata.Description)
	assert.Equal(t, []string{"code", "review", "imported"}, review.Metadata.Tags)
	assert.Equal(t, "Review this: $ARGUMENTS", review.Body)
	assert.Equal(t, "2025-01-02T03:04:05Z", review.Metadata.CreatedAt)

	commit := target.records["claude/git/commit"]
	assert.Equal(t, "Write a commit message", commit.Metadata.Description)
}

func TestImportFlatNamesAndDirectoryTags(t *testing.T) {
	imp, target := setup(t, map[string]string{
		"agents/planner.md": "Plan the work.",
	})

	_, err := imp.Import("/src", Options{})
	require.NoError(t, err)

	rec, ok := target.records["agents-planner"]
	require.True(t, ok)
	assert.Equal(t, []string{"agents"}, rec.Metadata.Tags)
	assert.Equal(t, models.DefaultDescription, rec.Metadata.Description)
}

func TestImportSkipsExistingUnlessOverwrite(t *testing.T) {
	imp, target := setup(t, map[string]string{"a.md": "new body"})
	target.records["a"] = models.Record{Key: "a", Body: "old body"}

	res, err := imp.Import("/src", Options{})
	require.NoError(t, err)
	assert.Equal(t, []storage.Key{storage.LocalKey("a")}, res.Skipped)
	assert.Equal(t, "old body", target.records["a"].Body)

	res, err = imp.Import("/src", Options{Overwrite: true})
	require.NoError(t, err)
	assert.Len(t, res.Imported, 1)
	assert.Equal(t, "new body", target.records["a"].Body)
}

func TestImportDryRun(t *testing.T) {
	imp, target := setup(t, map[string]string{"a.md": "body"})

	res, err := imp.Import("/src", Options{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Imported, 1)
	assert.Empty(t, target.records)
}

func TestImportCollectsBadNames(t *testing.T) {
	imp, _ := setup(t, map[string]string{"README.md": "reserved name"})

	res, err := imp.Import("/src", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "README.md")
}

func TestImportMissingDirectory(t *testing.T) {
	imp, _ := setup(t, nil)
	_, err := imp.Import("/nope", Options{})
	assert.Error(t, err)
}

func TestParseFrontmatter(t *testing.T) {
	fm, body := parseFrontmatter([]byte("---\ndescription: x\n---\nbody\n"))
	assert.Equal(t, "x", fm["description"])
	assert.Equal(t, "body", body)

	fm, body = parseFrontmatter([]byte("---\nunterminated"))
	assert.Nil(t, fm)
	assert.Equal(t, "---\nunterminated", body)

	assert.Equal(t, []string{"a", " b"}, stringList("a, b"))
}
