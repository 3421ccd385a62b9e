// Package cloudsync reconciles the local store with a Remote Store.
//
// The engine keeps no state between calls: every operation classifies names
// afresh from the store and the remote. Remote calls run one at a time.
// Failures inside a batch are recorded per item and the batch continues;
// conflicts are never resolved automatically.
package cloudsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/rs/zerolog"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/metrics"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/remote"
	"github.com/dpshade/prompthive/internal/storage"
)

const previewRunes = 100

// Store is the part of the persistent store the engine uses.
type Store interface {
	Exists(key storage.Key) bool
	Read(key storage.Key) (models.Record, error)
	Write(key storage.Key, meta models.Metadata, body string) error
	List() ([]storage.Key, error)
}

// Engine runs sync operations between a Store and a Remote.
type Engine struct {
	store  Store
	remote remote.Remote
	log    zerolog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now for created_at and updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a sync engine
func New(store Store, rem remote.Remote, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		remote: rem,
		log:    log.With().Str("component", "sync").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) timestamp() string {
	return models.Timestamp(e.now())
}

// Push uploads the selected local records in one batch.
//
// The returned report is filled in even when an error is returned: items
// the server accepted stay accepted.
func (e *Engine) Push(ctx context.Context, sel Selection, force bool) (PushReport, error) {
	var report PushReport
	if err := sel.Validate(); err != nil {
		return report, err
	}

	keys, err := e.localSelection(sel)
	if err != nil {
		return report, err
	}
	if len(keys) == 0 {
		report.Success = true
		report.Message = "nothing to push"
		return report, nil
	}

	req := remote.PushRequest{Force: force}
	for _, key := range keys {
		rec, err := e.store.Read(key)
		if err != nil {
			return report, fmt.Errorf("failed to read prompt '%s': %w", key, err)
		}
		req.Prompts = append(req.Prompts, pushItem(key.String(), rec))
	}

	resp, err := e.remote.Push(ctx, req)
	if err != nil {
		return report, err
	}
	report.Success = resp.Success
	report.Message = resp.Message

	if resp.Results == nil {
		e.log.Warn().Bool("success", resp.Success).Msg("push response carried no per-item results")
		if !resp.Success {
			return report, apperrors.RemoteError("push", fmt.Errorf("%s", orDefault(resp.Message, "server reported failure")))
		}
		return report, nil
	}

	for _, r := range resp.Results {
		report.Items = append(report.Items, PushItemResult{Name: r.Name, Status: r.Status, Error: r.Error})
		switch r.Status {
		case remote.PushCreated:
			report.Created++
		case remote.PushUpdated:
			report.Updated++
		case remote.PushConflict:
			report.Conflicts++
		case remote.PushError:
			report.Errors++
		default:
			report.Unknown++
		}
		metrics.RecordSyncItem("push", r.Status.String())
	}
	if resp.Stats != nil {
		report.ServerErrors = resp.Stats.Errors
	}

	e.log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("conflicts", report.Conflicts).
		Int("errors", report.Errors).
		Bool("success", report.Success).
		Msg("push complete")

	if report.Errors > 0 && !resp.Success {
		return report, apperrors.RemoteError("push", fmt.Errorf("%d item(s) failed", report.Errors))
	}
	if report.ServerErrors > 0 {
		return report, apperrors.RemoteError("push", fmt.Errorf("server reported %d error(s)", report.ServerErrors))
	}
	return report, nil
}

// Pull downloads the selected remote prompts. With no explicit names the
// remote listing is fetched first. Existing local records are only
// overwritten with force; otherwise they are compared and skipped.
func (e *Engine) Pull(ctx context.Context, sel Selection, force bool) (PullReport, error) {
	var report PullReport
	if err := sel.Validate(); err != nil {
		return report, err
	}

	names := sel.Names
	if len(names) == 0 {
		remoteNames, err := e.remoteNames(ctx)
		if err != nil {
			return report, err
		}
		names = sel.filter(remoteNames)
	}

	for _, name := range names {
		item := e.pullOne(ctx, name, force)
		report.Items = append(report.Items, item)
		switch item.Outcome {
		case PullCreated:
			report.Pulled++
		case PullUpdated:
			report.Updated++
		case PullUpToDate:
			report.UpToDate++
		case PullConflict:
			report.Conflicts++
		case PullMissing:
			report.Missing++
		default:
			report.Errors++
		}
		metrics.RecordSyncItem("pull", item.Outcome.String())
	}

	e.log.Info().
		Int("pulled", report.Pulled).
		Int("updated", report.Updated).
		Int("up_to_date", report.UpToDate).
		Int("conflicts", report.Conflicts).
		Int("missing", report.Missing).
		Int("errors", report.Errors).
		Msg("pull complete")

	return report, nil
}

func (e *Engine) pullOne(ctx context.Context, name string, force bool) PullItemResult {
	result := PullItemResult{Name: name}

	key, err := keyFor(name)
	if err != nil {
		result.Outcome, result.Err = PullError, err
		return result
	}

	detail, err := e.remote.GetPrompt(ctx, name)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			e.log.Debug().Str("name", name).Msg("not found in cloud")
			result.Outcome = PullMissing
			return result
		}
		e.log.Debug().Str("name", name).Err(err).Msg("fetch failed")
		result.Outcome, result.Err = PullError, err
		return result
	}

	exists := e.store.Exists(key)
	if exists && !force {
		local, err := e.store.Read(key)
		if err != nil {
			result.Outcome, result.Err = PullError, err
			return result
		}
		if len(compare(local, detail)) > 0 {
			result.Outcome = PullConflict
		} else {
			result.Outcome = PullUpToDate
		}
		return result
	}

	meta := models.Metadata{
		ID:          name,
		Description: detail.Description,
		Tags:        nonEmpty(detail.Tags),
		CreatedAt:   e.timestamp(),
	}
	if err := e.store.Write(key, meta, detail.Content); err != nil {
		result.Outcome, result.Err = PullError, err
		return result
	}

	if exists {
		result.Outcome = PullUpdated
	} else {
		result.Outcome = PullCreated
	}
	return result
}

// Status classifies every local record with one remote lookup each, then
// classifies remote-only names from one listing as PendingPull. A failed
// listing is returned as an error alongside the local classifications.
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport

	keys, err := e.store.List()
	if err != nil {
		return report, err
	}

	local := make(map[string]bool, len(keys))
	for _, key := range keys {
		local[key.String()] = true
		item := e.classify(ctx, key)
		report.Items = append(report.Items, item)
		metrics.RecordSyncItem("status", item.State.String())
	}

	remoteNames, err := e.remoteNames(ctx)
	if err != nil {
		return report, err
	}
	for _, name := range remoteNames {
		if local[name] {
			continue
		}
		item := ItemStatus{Name: name, State: PendingPull}
		if _, err := keyFor(name); err != nil {
			item.State, item.Err = Error, err
		}
		report.Items = append(report.Items, item)
		metrics.RecordSyncItem("status", item.State.String())
	}

	e.log.Info().
		Int("synced", report.Count(Synced)).
		Int("pending_push", report.Count(PendingPush)).
		Int("pending_pull", report.Count(PendingPull)).
		Int("conflicts", report.Count(Conflict)).
		Int("errors", report.Count(Error)).
		Msg("status complete")

	return report, nil
}

// classify compares one local record with its remote copy.
func (e *Engine) classify(ctx context.Context, key storage.Key) ItemStatus {
	item := ItemStatus{Name: key.String()}

	detail, err := e.remote.GetPrompt(ctx, item.Name)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			item.State = PendingPush
			return item
		}
		e.log.Debug().Str("name", item.Name).Err(err).Msg("classification failed")
		item.State, item.Err = Error, err
		return item
	}

	local, err := e.store.Read(key)
	if err != nil {
		item.State, item.Err = Error, err
		return item
	}

	if item.Reasons = compare(local, detail); len(item.Reasons) > 0 {
		item.State = Conflict
	} else {
		item.State = Synced
	}
	return item
}

// Verify is a read-only status over the selected local records that reports
// a success rate instead of next steps.
func (e *Engine) Verify(ctx context.Context, sel Selection) (VerifyReport, error) {
	var report VerifyReport
	if err := sel.Validate(); err != nil {
		return report, err
	}

	keys, err := e.localSelection(sel)
	if err != nil {
		return report, err
	}

	for _, key := range keys {
		item := e.classify(ctx, key)
		report.Items = append(report.Items, item)
		switch item.State {
		case Synced:
			report.Verified++
		case PendingPush:
			report.Missing++
		case Conflict:
			report.OutOfSync++
		default:
			report.Errors++
		}
		metrics.RecordSyncItem("verify", item.State.String())
	}

	report.Total = len(keys)
	report.SuccessRate = 100
	if report.Total > 0 {
		report.SuccessRate = report.Verified * 100 / report.Total
	}
	return report, nil
}

// Resolve settles one conflicting record. The record must exist locally,
// exist remotely and actually differ.
func (e *Engine) Resolve(ctx context.Context, name string, strategy Strategy) (ResolveResult, error) {
	result := ResolveResult{Name: name, Strategy: strategy}

	key, err := keyFor(name)
	if err != nil {
		return result, err
	}
	if !e.store.Exists(key) {
		return result, apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", name))
	}
	local, err := e.store.Read(key)
	if err != nil {
		return result, err
	}

	detail, err := e.remote.GetPrompt(ctx, name)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			return result, apperrors.NotFoundError(fmt.Sprintf("prompt '%s' in cloud", name)).
				WithDetails("no conflict to resolve; push it instead")
		}
		return result, err
	}

	result.Reasons = compare(local, detail)
	if len(result.Reasons) == 0 {
		return result, apperrors.InvalidInputError(fmt.Sprintf("'%s' is already in sync", name)).
			WithDetails("no conflict to resolve")
	}

	switch strategy {
	case StrategyLocal:
		resp, err := e.remote.Push(ctx, remote.PushRequest{
			Prompts: []remote.PushItem{pushItem(name, local)},
			Force:   true,
		})
		if err != nil {
			return result, err
		}
		for _, r := range resp.Results {
			if r.Name == name {
				result.PushStatus = r.Status
			}
		}
		if result.PushStatus == remote.PushError || result.PushStatus == remote.PushConflict ||
			(result.PushStatus == remote.PushUnknown && !resp.Success) {
			return result, apperrors.RemoteError("push", fmt.Errorf("server answered %s for '%s'", result.PushStatus, name))
		}

	case StrategyCloud:
		meta := local.Metadata.Clone()
		meta.Description = detail.Description
		meta.Tags = nonEmpty(detail.Tags)
		meta.UpdatedAt = e.timestamp()
		if err := e.store.Write(key, meta, detail.Content); err != nil {
			return result, err
		}

	case StrategyManual:
		result.LocalPreview = models.Preview(local.Body, previewRunes)
		result.RemotePreview = models.Preview(detail.Content, previewRunes)
		result.Diff = unifiedDiff(name, local.Body, detail.Content)

	default:
		return result, apperrors.InvalidInputError(fmt.Sprintf("unknown strategy %d", strategy))
	}

	metrics.RecordSyncItem("resolve", strategy.String())
	e.log.Info().Str("name", name).Str("strategy", strategy.String()).Msg("resolved")
	return result, nil
}

// Bidirectional classifies everything, refuses to continue while any
// conflict exists, then pushes each pending-push item and pulls each
// pending-pull item one at a time.
func (e *Engine) Bidirectional(ctx context.Context) (BidirectionalReport, error) {
	var report BidirectionalReport

	status, err := e.Status(ctx)
	report.Status = status
	if err != nil {
		return report, err
	}

	if conflicts := status.Names(Conflict); len(conflicts) > 0 {
		report.Aborted = true
		e.log.Warn().Strs("conflicts", conflicts).Msg("bidirectional sync aborted")
		return report, apperrors.NewAppError(apperrors.ErrCodeConflict,
			fmt.Sprintf("%d conflict(s) must be resolved before syncing", len(conflicts))).
			WithContext("conflicts", conflicts)
	}

	for _, name := range status.Names(PendingPush) {
		pushed, err := e.Push(ctx, Selection{Names: []string{name}}, false)
		if err != nil || pushed.Created+pushed.Updated == 0 {
			report.PushFailed++
			e.log.Debug().Str("name", name).Err(err).Msg("push failed")
			metrics.RecordSyncItem("bidirectional", "push_failed")
			continue
		}
		report.Pushed++
		metrics.RecordSyncItem("bidirectional", "pushed")
	}

	for _, name := range status.Names(PendingPull) {
		pulled, err := e.Pull(ctx, Selection{Names: []string{name}}, false)
		if err != nil || pulled.Pulled+pulled.Updated == 0 {
			report.PullFailed++
			e.log.Debug().Str("name", name).Err(err).Msg("pull failed")
			metrics.RecordSyncItem("bidirectional", "pull_failed")
			continue
		}
		report.Pulled++
		metrics.RecordSyncItem("bidirectional", "pulled")
	}

	e.log.Info().
		Int("pushed", report.Pushed).
		Int("push_failed", report.PushFailed).
		Int("pulled", report.Pulled).
		Int("pull_failed", report.PullFailed).
		Msg("bidirectional sync complete")

	return report, nil
}

// localSelection returns the local keys a selection names. Explicit names
// must exist locally.
func (e *Engine) localSelection(sel Selection) ([]storage.Key, error) {
	if len(sel.Names) > 0 {
		keys := make([]storage.Key, 0, len(sel.Names))
		for _, name := range sel.Names {
			key, err := keyFor(name)
			if err != nil {
				return nil, err
			}
			if !e.store.Exists(key) {
				return nil, apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", name))
			}
			keys = append(keys, key)
		}
		return keys, nil
	}

	all, err := e.store.List()
	if err != nil {
		return nil, err
	}
	if sel.Pattern == "" {
		return all, nil
	}

	names := make([]string, len(all))
	byName := make(map[string]storage.Key, len(all))
	for i, k := range all {
		names[i] = k.String()
		byName[names[i]] = k
	}
	var keys []storage.Key
	for _, n := range sel.filter(names) {
		keys = append(keys, byName[n])
	}
	return keys, nil
}

func (e *Engine) remoteNames(ctx context.Context) ([]string, error) {
	prompts, err := e.remote.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(prompts))
	for _, p := range prompts {
		names = append(names, p.Name)
	}
	return names, nil
}

// keyFor maps a remote name to a local key. Names that do not survive
// sanitization unchanged are rejected rather than written elsewhere.
func keyFor(name string) (storage.Key, error) {
	key, err := storage.ParseKey(name)
	if err != nil {
		return storage.Key{}, err
	}
	if key.String() != name {
		return storage.Key{}, apperrors.InvalidKeyError(name, fmt.Sprintf("would be stored as '%s'", key))
	}
	return key, nil
}

// compare returns which fields differ after trimming surrounding whitespace.
func compare(local models.Record, detail remote.PromptDetail) []string {
	var reasons []string
	if strings.TrimSpace(local.Body) != strings.TrimSpace(detail.Content) {
		reasons = append(reasons, ReasonContent)
	}
	if strings.TrimSpace(local.Metadata.Description) != strings.TrimSpace(detail.Description) {
		reasons = append(reasons, ReasonDescription)
	}
	return reasons
}

func pushItem(name string, rec models.Record) remote.PushItem {
	tags := rec.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	return remote.PushItem{
		Name:        name,
		Content:     rec.Body,
		Description: rec.Metadata.Description,
		Tags:        tags,
	}
}

func unifiedDiff(name, local, cloud string) string {
	if !strings.HasSuffix(local, "\n") {
		local += "\n"
	}
	if !strings.HasSuffix(cloud, "\n") {
		cloud += "\n"
	}
	from, to := "local/"+name, "cloud/"+name
	edits := myers.ComputeEdits(span.URIFromPath(from), local, cloud)
	return fmt.Sprint(gotextdiff.ToUnified(from, to, local, edits))
}

func nonEmpty(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return append([]string(nil), tags...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
