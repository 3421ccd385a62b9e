package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/models"
)

// VersionInfo is the header of a version snapshot.
type VersionInfo struct {
	Version       string `yaml:"version" json:"version"`
	ContentHash   string `yaml:"git_hash" json:"git_hash"`
	CreatedAt     string `yaml:"created_at" json:"created_at"`
	Message       string `yaml:"message,omitempty" json:"message,omitempty"`
	ParentVersion string `yaml:"parent_version,omitempty" json:"parent_version,omitempty"`
}

// versionDir is where snapshots of key live, outside all listing subtrees.
func (s *Store) versionDir(key Key) string {
	return s.abs(path.Join(VersionsDir, strings.TrimSuffix(key.RelPath(), recordExt)))
}

// Snapshot records the current body of key under tag and stamps the record
// with the new version, its content hash and the previous version as parent.
func (s *Store) Snapshot(key Key, tag, message string) (VersionInfo, error) {
	tag, err := SanitizeComponent(tag)
	if err != nil {
		return VersionInfo{}, apperrors.InvalidInputError(fmt.Sprintf("invalid version tag: %v", err))
	}

	rec, err := s.Read(key)
	if err != nil {
		return VersionInfo{}, err
	}

	snapPath := filepath.Join(s.versionDir(key), tag+recordExt)
	if _, err := s.fs.Stat(snapPath); err == nil {
		return VersionInfo{}, apperrors.AlreadyExistsError(fmt.Sprintf("version '%s' of '%s'", tag, key))
	}

	now := models.Now()
	info := VersionInfo{
		Version:       tag,
		ContentHash:   models.HashBody(rec.Body),
		CreatedAt:     now,
		Message:       message,
		ParentVersion: rec.Metadata.Version,
	}

	content, err := encodeFrontMatter(info, rec.Body)
	if err != nil {
		return VersionInfo{}, apperrors.StorageError("serialize snapshot", err)
	}
	if err := s.writeAtomic(snapPath, content); err != nil {
		return VersionInfo{}, err
	}

	meta := rec.Metadata.Clone()
	meta.ParentVersion = meta.Version
	meta.Version = tag
	meta.ContentHash = info.ContentHash
	meta.UpdatedAt = now
	if err := s.Write(key, meta, rec.Body); err != nil {
		return VersionInfo{}, err
	}

	return info, nil
}

// Versions lists the snapshots of key, oldest first.
func (s *Store) Versions(key Key) ([]VersionInfo, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}

	dir := s.versionDir(key)
	if !s.isDir(dir) {
		return nil, nil
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, apperrors.StorageError("read versions", err)
	}

	var out []VersionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		info, _, err := s.readSnapshot(filepath.Join(dir, e.Name()))
		if err != nil {
			s.log.Warn().Str("key", key.String()).Str("file", e.Name()).Err(err).Msg("skipping unreadable snapshot")
			continue
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// ReadVersion returns one snapshot and its body.
func (s *Store) ReadVersion(key Key, tag string) (VersionInfo, string, error) {
	if err := key.validate(); err != nil {
		return VersionInfo{}, "", err
	}
	if err := checkComponent(tag); err != nil {
		return VersionInfo{}, "", apperrors.InvalidInputError(fmt.Sprintf("invalid version tag: %v", err))
	}
	info, body, err := s.readSnapshot(filepath.Join(s.versionDir(key), tag+recordExt))
	if os.IsNotExist(err) {
		return VersionInfo{}, "", apperrors.NotFoundError(fmt.Sprintf("version '%s' of '%s'", tag, key))
	}
	if err != nil && !apperrors.Is(err, apperrors.ErrCodeParseFailure) {
		return VersionInfo{}, "", apperrors.StorageError("read snapshot", err)
	}
	return info, body, err
}

func (s *Store) readSnapshot(p string) (VersionInfo, string, error) {
	content, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return VersionInfo{}, "", err
	}
	header, body, ok := splitFrontMatter(string(content))
	if !ok {
		return VersionInfo{}, "", apperrors.ParseError("snapshot", fmt.Errorf("missing frontmatter delimiter"))
	}
	var info VersionInfo
	if err := yaml.Unmarshal([]byte(header), &info); err != nil {
		return VersionInfo{}, "", apperrors.ParseError("snapshot", err)
	}
	return info, body, nil
}
