package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"

	"github.com/dpshade/prompthive/internal/cloudsync"
	"github.com/dpshade/prompthive/internal/config"
	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/remote"
	"github.com/dpshade/prompthive/internal/resolver"
	"github.com/dpshade/prompthive/internal/storage"
)

// Service provides business logic for prompt management
type Service struct {
	store    *storage.Store
	cache    *storage.PromptCache
	listing  *storage.DirectoryCache
	group    singleflight.Group
	resolver *resolver.Resolver
	engine   *cloudsync.Engine
	log      zerolog.Logger
	now      func() time.Time
}

var (
	_ resolver.Lister = (*Service)(nil)
	_ cloudsync.Store = syncStore{}
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	remote remote.Remote
	now    func() time.Time
}

// WithRemote enables sync against r.
func WithRemote(r remote.Remote) Option {
	return func(o *serviceOptions) { o.remote = r }
}

// WithClock overrides time.Now for timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// NewService creates a new service instance
func NewService(store *storage.Store, cacheCfg config.CacheConfig, log zerolog.Logger, opts ...Option) *Service {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		store:   store,
		cache:   storage.NewPromptCache(cacheCfg.MaxEntries, cacheCfg.TTL, storage.WithClock(o.now)),
		listing: storage.NewDirectoryCache(cacheCfg.ListTTL, storage.WithClock(o.now)),
		log:     log.With().Str("component", "service").Logger(),
		now:     o.now,
	}
	s.resolver = resolver.New(s, log)
	if o.remote != nil {
		s.engine = cloudsync.New(syncStore{s}, o.remote, log, cloudsync.WithClock(o.now))
	}
	return s
}

// InitLibrary initializes a new prompt library
func (s *Service) InitLibrary() error {
	return s.store.Init()
}

// Root returns the library directory.
func (s *Service) Root() string {
	return s.store.Root()
}

// Sync returns the sync engine, or an error when no remote is configured.
func (s *Service) Sync() (*cloudsync.Engine, error) {
	if s.engine == nil {
		return nil, apperrors.NewAppError(apperrors.ErrCodeUnauthorized, "sync is not configured").
			WithDetails("set PROMPTHIVE_API_KEY and registry_url")
	}
	return s.engine, nil
}

// Resolve maps a query to a stored key.
func (s *Service) Resolve(query string) (storage.Key, error) {
	return s.resolver.Resolve(query)
}

// Get resolves query and returns the record, reading through the cache.
func (s *Service) Get(query string) (models.Record, error) {
	key, err := s.Resolve(query)
	if err != nil {
		return models.Record{}, err
	}
	return s.Read(key)
}

// Read returns the record at key, reading through the cache.
func (s *Service) Read(key storage.Key) (models.Record, error) {
	id := key.String()
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}
	rec, err := s.store.Read(key)
	if err != nil {
		return models.Record{}, err
	}
	s.cache.Put(id, rec)
	return rec, nil
}

// syncStore gives the sync engine uncached access to the store. Reads and
// listings always hit disk; writes go through the service so the record and
// listing caches are invalidated.
type syncStore struct {
	svc *Service
}

func (s syncStore) Exists(key storage.Key) bool { return s.svc.store.Exists(key) }

func (s syncStore) Read(key storage.Key) (models.Record, error) { return s.svc.store.Read(key) }

func (s syncStore) List() ([]storage.Key, error) { return s.svc.store.List() }

func (s syncStore) Write(key storage.Key, meta models.Metadata, body string) error {
	return s.svc.Write(key, meta, body)
}

// Exists reports whether key is stored.
func (s *Service) Exists(key storage.Key) bool {
	return s.store.Exists(key)
}

// List returns every key. Concurrent refreshes of an expired listing share
// one directory walk.
func (s *Service) List() ([]storage.Key, error) {
	if keys, ok := s.listing.Get(); ok {
		return keys, nil
	}
	v, err, shared := s.group.Do("list", func() (interface{}, error) {
		keys, err := s.store.List()
		if err != nil {
			return nil, err
		}
		s.listing.Put(keys)
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Msg("listing refresh shared")
	}
	return append([]storage.Key(nil), v.([]storage.Key)...), nil
}

// ListBank lists one bank.
func (s *Service) ListBank(bank string) ([]storage.Key, error) {
	return s.store.ListBank(bank)
}

// ListTeam lists one team.
func (s *Service) ListTeam(team string) ([]storage.Key, error) {
	return s.store.ListTeam(strings.TrimPrefix(team, "@"))
}

// ListBanks lists bank names.
func (s *Service) ListBanks() ([]string, error) {
	return s.store.ListBanks()
}

// ListTeams lists team names.
func (s *Service) ListTeams() ([]string, error) {
	return s.store.ListTeams()
}

// Entry is a listed record with its short code and metadata.
type Entry struct {
	Key       storage.Key
	ShortCode string
	Metadata  models.Metadata
}

// Entries lists every record with metadata and short codes, optionally
// restricted to records carrying tag.
func (s *Service) Entries(tag string) ([]Entry, error) {
	keys, err := s.List()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, c := range resolver.AssignShortCodes(keys) {
		meta, err := s.store.ReadMetadata(c.Key)
		if err != nil {
			s.log.Warn().Str("key", c.Key.String()).Err(err).Msg("skipping unreadable record")
			continue
		}
		if tag != "" && !meta.HasTag(tag) {
			continue
		}
		entries = append(entries, Entry{Key: c.Key, ShortCode: c.ShortCode, Metadata: meta})
	}
	return entries, nil
}

// Search fuzzy-matches query against key, description and tags.
func (s *Service) Search(query string) ([]Entry, error) {
	entries, err := s.Entries("")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return entries, nil
	}

	searchStrings := make([]string, len(entries))
	for i, e := range entries {
		searchStrings[i] = fmt.Sprintf("%s %s %s", e.Key, e.Metadata.Description, strings.Join(e.Metadata.Tags, " "))
	}

	var results []Entry
	for _, match := range fuzzy.Find(query, searchStrings) {
		results = append(results, entries[match.Index])
	}
	return results, nil
}

// Tags returns all unique tags, sorted.
func (s *Service) Tags() ([]string, error) {
	entries, err := s.Entries("")
	if err != nil {
		return nil, err
	}
	tagMap := make(map[string]bool)
	for _, e := range entries {
		for _, tag := range e.Metadata.Tags {
			tagMap[tag] = true
		}
	}
	tags := make([]string, 0, len(tagMap))
	for tag := range tagMap {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Create stores a new record under name. It fails if the key is taken.
// Missing id and timestamps are filled in.
func (s *Service) Create(name string, meta models.Metadata, body string) (storage.Key, error) {
	key, err := storage.ParseKey(name)
	if err != nil {
		return storage.Key{}, err
	}
	if s.store.Exists(key) {
		return storage.Key{}, apperrors.AlreadyExistsError(fmt.Sprintf("prompt '%s'", key))
	}

	if meta.ID == "" {
		meta.ID = key.String()
	}
	if meta.Description == "" {
		meta.Description = models.DefaultDescription
	}
	now := models.Timestamp(s.now())
	if meta.CreatedAt == "" {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	if err := s.Write(key, meta, body); err != nil {
		return storage.Key{}, err
	}
	s.log.Info().Str("key", key.String()).Msg("created")
	return key, nil
}

// Write stores a record as given and invalidates the caches that could
// hold it.
func (s *Service) Write(key storage.Key, meta models.Metadata, body string) error {
	existed := s.store.Exists(key)
	if err := s.store.Write(key, meta, body); err != nil {
		return err
	}
	s.cache.Invalidate(key.String())
	if !existed {
		s.listing.Invalidate()
	}
	return nil
}

// Update replaces the body and header of the record query resolves to,
// stamping updated_at.
func (s *Service) Update(query string, mutate func(meta *models.Metadata, body *string)) (storage.Key, error) {
	key, err := s.Resolve(query)
	if err != nil {
		return storage.Key{}, err
	}
	rec, err := s.store.Read(key)
	if err != nil {
		return storage.Key{}, err
	}
	meta, body := rec.Metadata.Clone(), rec.Body
	mutate(&meta, &body)
	meta.UpdatedAt = models.Timestamp(s.now())
	return key, s.Write(key, meta, body)
}

// Delete removes the record query resolves to.
func (s *Service) Delete(query string) (storage.Key, error) {
	key, err := s.Resolve(query)
	if err != nil {
		return storage.Key{}, err
	}
	if err := s.store.Delete(key); err != nil {
		return storage.Key{}, err
	}
	s.cache.Invalidate(key.String())
	s.listing.Invalidate()
	s.log.Info().Str("key", key.String()).Msg("deleted")
	return key, nil
}

// Rename moves the record query resolves to under a new name. It fails if
// the target exists.
func (s *Service) Rename(query, newName string) (storage.Key, storage.Key, error) {
	from, err := s.Resolve(query)
	if err != nil {
		return storage.Key{}, storage.Key{}, err
	}
	to, err := storage.ParseKey(newName)
	if err != nil {
		return storage.Key{}, storage.Key{}, err
	}
	if s.store.Exists(to) {
		return storage.Key{}, storage.Key{}, apperrors.AlreadyExistsError(fmt.Sprintf("prompt '%s'", to))
	}

	rec, err := s.store.Read(from)
	if err != nil {
		return storage.Key{}, storage.Key{}, err
	}
	meta := rec.Metadata.Clone()
	meta.UpdatedAt = models.Timestamp(s.now())
	if err := s.store.Write(to, meta, rec.Body); err != nil {
		return storage.Key{}, storage.Key{}, err
	}
	if err := s.store.Delete(from); err != nil {
		return storage.Key{}, storage.Key{}, fmt.Errorf("failed to remove '%s' after copying to '%s': %w", from, to, err)
	}

	s.cache.Invalidate(from.String())
	s.cache.Invalidate(to.String())
	s.listing.Invalidate()
	s.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("renamed")
	return from, to, nil
}

// RenameBank renames a bank.
func (s *Service) RenameBank(oldName, newName string) error {
	if err := s.store.RenameBank(oldName, newName); err != nil {
		return err
	}
	s.namespaceChanged()
	return nil
}

// DeleteBank removes an empty bank.
func (s *Service) DeleteBank(bank string) error {
	if err := s.store.DeleteBank(bank); err != nil {
		return err
	}
	s.namespaceChanged()
	return nil
}

// CreateTeam creates an empty team and returns its stored name.
func (s *Service) CreateTeam(team string) (string, error) {
	name, err := s.store.CreateTeam(team)
	if err != nil {
		return "", err
	}
	s.namespaceChanged()
	return name, nil
}

// DeleteTeam removes an empty team.
func (s *Service) DeleteTeam(team string) error {
	if err := s.store.DeleteTeam(strings.TrimPrefix(team, "@")); err != nil {
		return err
	}
	s.namespaceChanged()
	return nil
}

func (s *Service) namespaceChanged() {
	s.cache.Clear()
	s.listing.Invalidate()
}

// Snapshot records a version of the record query resolves to. An empty tag
// increments the current version.
func (s *Service) Snapshot(query, tag, message string) (storage.Key, storage.VersionInfo, error) {
	key, err := s.Resolve(query)
	if err != nil {
		return storage.Key{}, storage.VersionInfo{}, err
	}
	if tag == "" {
		meta, err := s.store.ReadMetadata(key)
		if err != nil {
			return storage.Key{}, storage.VersionInfo{}, err
		}
		tag = incrementVersion(meta.Version)
	}
	info, err := s.store.Snapshot(key, tag, message)
	if err != nil {
		return storage.Key{}, storage.VersionInfo{}, err
	}
	s.cache.Invalidate(key.String())
	s.log.Info().Str("key", key.String()).Str("version", info.Version).Msg("snapshot")
	return key, info, nil
}

// Versions lists the snapshots of the record query resolves to.
func (s *Service) Versions(query string) (storage.Key, []storage.VersionInfo, error) {
	key, err := s.Resolve(query)
	if err != nil {
		return storage.Key{}, nil, err
	}
	versions, err := s.store.Versions(key)
	return key, versions, err
}

// CacheStats reports record cache statistics.
func (s *Service) CacheStats() storage.CacheStats {
	return s.cache.Stats()
}

// incrementVersion bumps the patch of a semantic version, or a plain
// integer; anything else gets ".1" appended.
func incrementVersion(current string) string {
	if current == "" {
		return "1.0.0"
	}

	parts := strings.Split(current, ".")
	if len(parts) != 3 {
		if n, err := strconv.Atoi(current); err == nil {
			return strconv.Itoa(n + 1)
		}
		return current + ".1"
	}

	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return current + ".1"
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}
