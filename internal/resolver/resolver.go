// Package resolver maps user-typed, possibly partial queries to canonical
// storage keys.
//
// Resolution order:
//
//	@team/name   exact key in that team, else fuzzy within that team only
//	bank/rest    exact key, else fuzzy over the bank's names
//	name         exact local key, else exact short form, else fuzzy over
//	             the trailing segment of every key
//
// Fuzzy ties go to the first maximum in listing order. Only exact short-form
// collisions are reported as ambiguous.
package resolver

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/storage"
)

// Lister is the read side of the store the resolver needs.
type Lister interface {
	Exists(key storage.Key) bool
	List() ([]storage.Key, error)
	ListBank(bank string) ([]storage.Key, error)
	ListTeam(team string) ([]storage.Key, error)
}

// Resolver resolves queries against a Lister.
type Resolver struct {
	store Lister
	log   zerolog.Logger
}

// New creates a resolver
func New(store Lister, log zerolog.Logger) *Resolver {
	return &Resolver{
		store: store,
		log:   log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the single key query refers to. Errors carry
// ErrCodeNotFound or ErrCodeAmbiguous; ambiguous errors list the
// candidates with their short codes under the "candidates" context key.
func (r *Resolver) Resolve(query string) (storage.Key, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return storage.Key{}, apperrors.InvalidInputError("empty query")
	}

	var (
		key storage.Key
		how string
		err error
	)
	switch {
	case strings.HasPrefix(query, "@"):
		key, how, err = r.resolveTeam(query)
	case strings.Contains(query, "/"):
		key, how, err = r.resolveBank(query)
	default:
		key, how, err = r.resolveName(query)
	}
	if err != nil {
		return storage.Key{}, err
	}

	r.log.Debug().Str("query", query).Str("key", key.String()).Str("match", how).Msg("resolved")
	return key, nil
}

func (r *Resolver) resolveTeam(query string) (storage.Key, string, error) {
	team, item, ok := strings.Cut(strings.TrimPrefix(query, "@"), "/")
	if !ok || team == "" || item == "" {
		return storage.Key{}, "", apperrors.InvalidKeyError(query, "team queries take the form @team/name")
	}

	if key, err := storage.ParseKey(query); err == nil && r.store.Exists(key) {
		return key, "exact", nil
	}

	keys, err := r.store.ListTeam(team)
	if err != nil {
		return storage.Key{}, "", err
	}
	if best, ok := bestMatch(item, keys, func(k storage.Key) string { return k.Name }); ok {
		return best, "fuzzy", nil
	}
	return storage.Key{}, "", apperrors.NotFoundError(fmt.Sprintf("prompt '%s' in team '%s'", item, team)).
		WithContext("team", team)
}

func (r *Resolver) resolveBank(query string) (storage.Key, string, error) {
	bank, rest, _ := strings.Cut(strings.Trim(query, "/"), "/")

	if key, err := storage.ParseKey(query); err == nil && r.store.Exists(key) {
		return key, "exact", nil
	}

	keys, err := r.store.ListBank(bank)
	if err != nil {
		return storage.Key{}, "", err
	}
	if rest != "" {
		if best, ok := bestMatch(rest, keys, func(k storage.Key) string { return k.Name }); ok {
			return best, "fuzzy", nil
		}
	}
	return storage.Key{}, "", apperrors.NotFoundError(fmt.Sprintf("prompt '%s' in bank '%s'", rest, bank)).
		WithContext("bank", bank)
}

func (r *Resolver) resolveName(query string) (storage.Key, string, error) {
	if key, err := storage.ParseKey(query); err == nil && r.store.Exists(key) {
		return key, "exact", nil
	}

	keys, err := r.store.List()
	if err != nil {
		return storage.Key{}, "", err
	}

	candidates := AssignShortCodes(keys)
	var exact []Candidate
	for _, c := range candidates {
		if c.ShortCode == query || c.Key.BaseName() == query {
			exact = append(exact, c)
		}
	}
	switch len(exact) {
	case 0:
	case 1:
		return exact[0].Key, "short", nil
	default:
		names := make([]string, len(exact))
		for i, c := range exact {
			names[i] = c.String()
		}
		return storage.Key{}, "", apperrors.AmbiguousError(query, names)
	}

	if best, ok := bestMatch(query, keys, storage.Key.BaseName); ok {
		return best, "fuzzy", nil
	}
	return storage.Key{}, "", apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", query))
}

// bestMatch scores every key with fuzzy subsequence matching and returns the
// highest positive score. Equal scores keep the earliest key.
func bestMatch(pattern string, keys []storage.Key, field func(storage.Key) string) (storage.Key, bool) {
	if len(keys) == 0 {
		return storage.Key{}, false
	}

	data := make([]string, len(keys))
	for i, k := range keys {
		data[i] = field(k)
	}

	bestIdx, bestScore := -1, 0
	for _, m := range fuzzy.Find(pattern, data) {
		if m.Score <= 0 {
			continue
		}
		if m.Score > bestScore || (m.Score == bestScore && m.Index < bestIdx) {
			bestIdx, bestScore = m.Index, m.Score
		}
	}
	if bestIdx < 0 {
		return storage.Key{}, false
	}
	return keys[bestIdx], true
}
