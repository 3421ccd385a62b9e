package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/models"
)

// Store handles all file system operations for prompt records.
//
// The store does no locking of its own; callers keep to one writer per path.
// Every write replaces the whole file atomically.
type Store struct {
	fs   afero.Fs
	root string
	log  zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFs swaps the filesystem the store works on (tests use afero.NewMemMapFs).
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) { s.fs = fsys }
}

// WithLogger sets the logger used for non-fatal parse warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a new store rooted at root
func New(root string, opts ...Option) *Store {
	s := &Store{
		fs:   afero.NewOsFs(),
		root: root,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "store").Logger()
	return s
}

// Init creates the directory structure for a prompt library
func (s *Store) Init() error {
	dirs := []string{
		s.root,
		s.abs(PromptsDir),
		s.abs(BanksDir),
		s.abs(TeamsDir),
	}

	for _, dir := range dirs {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return apperrors.StorageError(fmt.Sprintf("create directory %s", dir), err)
		}
	}

	return nil
}

// Root returns the root path of the store
func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute file path of a record.
func (s *Store) Path(key Key) string {
	return s.abs(key.RelPath())
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Exists reports whether a record file exists for key.
func (s *Store) Exists(key Key) bool {
	if key.validate() != nil {
		return false
	}
	info, err := s.fs.Stat(s.Path(key))
	return err == nil && !info.IsDir()
}

// Read loads a record. Files without a recognizable header are returned
// with default metadata and their whole content as body.
func (s *Store) Read(key Key) (models.Record, error) {
	if err := key.validate(); err != nil {
		return models.Record{}, err
	}

	content, err := afero.ReadFile(s.fs, s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return models.Record{}, apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", key))
		}
		return models.Record{}, apperrors.StorageError("read prompt", err)
	}

	meta, body, warn := parseRecord(content)
	if warn != nil {
		s.log.Warn().Str("key", key.String()).Err(warn).Msg("using default metadata")
	}

	return models.Record{Key: key.String(), Metadata: meta, Body: body}, nil
}

// ReadMetadata loads only the metadata of a record.
func (s *Store) ReadMetadata(key Key) (models.Metadata, error) {
	rec, err := s.Read(key)
	if err != nil {
		return models.Metadata{}, err
	}
	return rec.Metadata, nil
}

// Write serializes metadata and body and replaces any existing file at key.
func (s *Store) Write(key Key, meta models.Metadata, body string) error {
	if err := key.validate(); err != nil {
		return err
	}

	content, err := encodeFrontMatter(meta, body)
	if err != nil {
		return apperrors.StorageError("serialize prompt", err)
	}

	return s.writeAtomic(s.Path(key), content)
}

// WriteMetadata rewrites the header of an existing record, keeping its body.
func (s *Store) WriteMetadata(key Key, meta models.Metadata) error {
	rec, err := s.Read(key)
	if err != nil {
		return err
	}
	return s.Write(key, meta, rec.Body)
}

// writeAtomic writes to a temp file beside target and renames it into place.
func (s *Store) writeAtomic(target string, content []byte) error {
	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return apperrors.StorageError("create directory", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return apperrors.StorageError("create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return apperrors.StorageError("write prompt file", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return apperrors.StorageError("write prompt file", err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		s.fs.Remove(tmpName)
		return apperrors.StorageError("replace prompt file", err)
	}
	return nil
}

// Delete removes a record file.
func (s *Store) Delete(key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	p := s.Path(key)
	if _, err := s.fs.Stat(p); os.IsNotExist(err) {
		return apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", key))
	}
	if err := s.fs.Remove(p); err != nil {
		return apperrors.StorageError("delete prompt", err)
	}
	return nil
}

// List walks all three subtrees and returns every key sorted by its string form.
func (s *Store) List() ([]Key, error) {
	var keys []Key

	local, err := s.listFlat(PromptsDir, func(name string) Key { return LocalKey(name) })
	if err != nil {
		return nil, err
	}
	keys = append(keys, local...)

	banks, err := s.ListBanks()
	if err != nil {
		return nil, err
	}
	for _, bank := range banks {
		bankKeys, err := s.ListBank(bank)
		if err != nil {
			return nil, err
		}
		keys = append(keys, bankKeys...)
	}

	teams, err := s.ListTeams()
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		teamKeys, err := s.ListTeam(team)
		if err != nil {
			return nil, err
		}
		keys = append(keys, teamKeys...)
	}

	sortKeys(keys)
	return keys, nil
}

// ListBanks returns the sorted names of all bank directories.
func (s *Store) ListBanks() ([]string, error) {
	return s.listDirs(BanksDir)
}

// ListTeams returns the sorted names of all team directories.
func (s *Store) ListTeams() ([]string, error) {
	return s.listDirs(TeamsDir)
}

// ListBank walks a bank recursively, flattening nested directories into
// slash-joined names. Hidden directories and readme files are skipped.
func (s *Store) ListBank(bank string) ([]Key, error) {
	bankDir := s.abs(path.Join(BanksDir, bank))
	if !s.isDir(bankDir) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("bank '%s'", bank))
	}

	var keys []Key
	err := afero.Walk(s.fs, bankDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != bankDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		stem, ok := recordStem(info.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(bankDir, filepath.Join(filepath.Dir(p), stem))
		if err != nil {
			return err
		}
		keys = append(keys, BankKey(bank, filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, apperrors.StorageError("list bank", err)
	}

	sortKeys(keys)
	return keys, nil
}

// ListTeam returns the records of one team namespace.
func (s *Store) ListTeam(team string) ([]Key, error) {
	teamDir := path.Join(TeamsDir, team)
	if !s.isDir(s.abs(teamDir)) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("team '%s'", team))
	}
	keys, err := s.listFlat(teamDir, func(name string) Key { return TeamKey(team, name) })
	if err != nil {
		return nil, err
	}
	sortKeys(keys)
	return keys, nil
}

// CreateTeam creates an empty team namespace and returns its sanitized name.
func (s *Store) CreateTeam(team string) (string, error) {
	clean, err := SanitizeComponent(strings.TrimPrefix(team, teamPrefix))
	if err != nil {
		return "", apperrors.InvalidKeyError(team, err.Error())
	}
	dir := s.abs(path.Join(TeamsDir, clean))
	if s.isDir(dir) {
		return "", apperrors.AlreadyExistsError(fmt.Sprintf("team '%s'", clean))
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.StorageError("create team", err)
	}
	return clean, nil
}

// DeleteTeam removes an empty team namespace.
func (s *Store) DeleteTeam(team string) error {
	return s.removeEmptyDir(path.Join(TeamsDir, team), fmt.Sprintf("team '%s'", team))
}

// DeleteBank removes an empty bank. Records must be deleted first.
func (s *Store) DeleteBank(bank string) error {
	return s.removeEmptyDir(path.Join(BanksDir, bank), fmt.Sprintf("bank '%s'", bank))
}

// RenameBank moves a bank directory. It fails if oldName is missing or newName exists.
func (s *Store) RenameBank(oldName, newName string) error {
	if err := checkComponent(oldName); err != nil {
		return apperrors.InvalidKeyError(oldName, err.Error())
	}
	clean, err := SanitizeComponent(newName)
	if err != nil {
		return apperrors.InvalidKeyError(newName, err.Error())
	}

	oldDir := s.abs(path.Join(BanksDir, oldName))
	newDir := s.abs(path.Join(BanksDir, clean))
	if !s.isDir(oldDir) {
		return apperrors.NotFoundError(fmt.Sprintf("bank '%s'", oldName))
	}
	if _, err := s.fs.Stat(newDir); err == nil {
		return apperrors.AlreadyExistsError(fmt.Sprintf("bank '%s'", clean))
	}
	if err := s.fs.Rename(oldDir, newDir); err != nil {
		return apperrors.StorageError("rename bank", err)
	}
	return nil
}

func (s *Store) removeEmptyDir(rel, what string) error {
	dir := s.abs(rel)
	if !s.isDir(dir) {
		return apperrors.NotFoundError(what)
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return apperrors.StorageError("read directory", err)
	}
	if len(entries) > 0 {
		return apperrors.NotEmptyError(what).
			WithDetails(fmt.Sprintf("%d entries; delete them first", len(entries)))
	}
	if err := s.fs.Remove(dir); err != nil {
		return apperrors.StorageError("remove directory", err)
	}
	return nil
}

func (s *Store) listFlat(rel string, mk func(name string) Key) ([]Key, error) {
	dir := s.abs(rel)
	if !s.isDir(dir) {
		return nil, nil
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, apperrors.StorageError("read directory", err)
	}

	var keys []Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if stem, ok := recordStem(e.Name()); ok {
			keys = append(keys, mk(stem))
		}
	}
	return keys, nil
}

func (s *Store) listDirs(rel string) ([]string, error) {
	dir := s.abs(rel)
	if !s.isDir(dir) {
		return nil, nil
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, apperrors.StorageError("read directory", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) isDir(p string) bool {
	ok, err := afero.IsDir(s.fs, p)
	return err == nil && ok
}

// recordStem returns the name of a listable record file without extension.
func recordStem(filename string) (string, bool) {
	if strings.HasPrefix(filename, ".") || !strings.HasSuffix(filename, recordExt) {
		return "", false
	}
	stem := strings.TrimSuffix(filename, recordExt)
	if stem == "" || isReadme(stem) {
		return "", false
	}
	return stem, true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
