package cloudsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/logger"
	"github.com/dpshade/prompthive/internal/mockregistry"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/remote"
	"github.com/dpshade/prompthive/internal/storage"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

type fixture struct {
	store  *storage.Store
	reg    *mockregistry.Server
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.New("/lib", storage.WithFs(afero.NewMemMapFs()))
	require.NoError(t, store.Init())

	reg := mockregistry.New("key", logger.Nop())
	srv := httptest.NewServer(reg.Router())
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, "key", 5*time.Second)
	engine := New(store, client, logger.Nop(), WithClock(func() time.Time { return fixedNow }))
	return &fixture{store: store, reg: reg, engine: engine}
}

func (f *fixture) local(t *testing.T, name string, meta models.Metadata, body string) storage.Key {
	t.Helper()
	key, err := storage.ParseKey(name)
	require.NoError(t, err)
	require.NoError(t, f.store.Write(key, meta, body))
	return key
}

func statusOf(t *testing.T, r StatusReport, name string) ItemStatus {
	t.Helper()
	for _, it := range r.Items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("no status for %q", name)
	return ItemStatus{}
}

func TestStatusTrailingWhitespaceIsSynced(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d1"}, "Hello")
	f.reg.Put(mockregistry.Prompt{Name: "foo", Content: "Hello ", Description: "d1"})

	report, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Synced, statusOf(t, report, "foo").State)
}

func TestStatusClassifiesEveryState(t *testing.T) {
	f := newFixture(t)
	f.local(t, "same", models.Metadata{ID: "same", Description: "d"}, "x")
	f.local(t, "body-diff", models.Metadata{ID: "body-diff", Description: "d"}, "A")
	f.local(t, "desc-diff", models.Metadata{ID: "desc-diff", Description: "mine"}, "x")
	f.local(t, "bank/local-only", models.Metadata{ID: "local-only", Description: "d"}, "x")
	f.reg.Put(mockregistry.Prompt{Name: "same", Content: "x", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "body-diff", Content: "B", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "desc-diff", Content: "x", Description: "theirs"})
	f.reg.Put(mockregistry.Prompt{Name: "bar", Content: "remote only", Description: "d"})

	report, err := f.engine.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Synced, statusOf(t, report, "same").State)
	assert.Equal(t, Conflict, statusOf(t, report, "body-diff").State)
	assert.Equal(t, []string{ReasonContent}, statusOf(t, report, "body-diff").Reasons)
	assert.Equal(t, []string{ReasonDescription}, statusOf(t, report, "desc-diff").Reasons)
	assert.Equal(t, PendingPush, statusOf(t, report, "bank/local-only").State)
	assert.Equal(t, PendingPull, statusOf(t, report, "bar").State)

	// one lookup per local record plus one listing
	assert.Equal(t, 4, f.reg.Requests("get"))
	assert.Equal(t, 1, f.reg.Requests("list"))
	assert.Len(t, report.NextSteps(), 3)
}

func TestStatusRemoteErrorIsPerItem(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d"}, "x")
	f.reg.Override("get", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	report, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	item := statusOf(t, report, "foo")
	assert.Equal(t, Error, item.State)
	assert.True(t, apperrors.Is(item.Err, apperrors.ErrCodeRemoteFailure))
}

func TestPendingPullThenPull(t *testing.T) {
	f := newFixture(t)
	f.reg.Put(mockregistry.Prompt{Name: "bar", Content: "Remote body", Description: "rd", Tags: []string{"x", "y"}})

	report, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PendingPull, statusOf(t, report, "bar").State)

	pulled, err := f.engine.Pull(context.Background(), Selection{Names: []string{"bar"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, pulled.Pulled)

	rec, err := f.store.Read(storage.LocalKey("bar"))
	require.NoError(t, err)
	assert.Equal(t, "Remote body", rec.Body)
	assert.Equal(t, "bar", rec.Metadata.ID)
	assert.Equal(t, "rd", rec.Metadata.Description)
	assert.Equal(t, []string{"x", "y"}, rec.Metadata.Tags)
	assert.Equal(t, "2025-03-04T05:06:07Z", rec.Metadata.CreatedAt)
}

func TestPullAllAndConflicts(t *testing.T) {
	f := newFixture(t)
	f.local(t, "same", models.Metadata{ID: "same", Description: "d"}, "x")
	f.local(t, "diff", models.Metadata{ID: "diff", Description: "d", Version: "v1"}, "local")
	f.reg.Put(mockregistry.Prompt{Name: "same", Content: "x\n", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "diff", Content: "remote", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "team/new", Content: "n", Description: "d"})

	report, err := f.engine.Pull(context.Background(), Selection{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pulled)
	assert.Equal(t, 1, report.UpToDate)
	assert.Equal(t, 1, report.Conflicts)

	rec, err := f.store.Read(storage.LocalKey("diff"))
	require.NoError(t, err)
	assert.Equal(t, "local", rec.Body, "conflicts are not written")

	report, err = f.engine.Pull(context.Background(), Selection{Names: []string{"diff"}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	rec, err = f.store.Read(storage.LocalKey("diff"))
	require.NoError(t, err)
	assert.Equal(t, "remote", rec.Body)
	assert.Empty(t, rec.Metadata.Version, "force discards local-only metadata")
}

func TestPullMissingIsNotAnError(t *testing.T) {
	f := newFixture(t)

	report, err := f.engine.Pull(context.Background(), Selection{Names: []string{"ghost"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 0, report.Errors)
	assert.False(t, f.store.Exists(storage.LocalKey("ghost")))
}

func TestPullPatternFiltersRemoteNames(t *testing.T) {
	f := newFixture(t)
	f.reg.Put(mockregistry.Prompt{Name: "essentials/a", Content: "a", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "essentials/deep/b", Content: "b", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "other", Content: "o", Description: "d"})

	report, err := f.engine.Pull(context.Background(), Selection{Pattern: "essentials/**"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pulled)
	assert.False(t, f.store.Exists(storage.LocalKey("other")))
}

func TestPush(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d", Tags: []string{"t"}}, "Hello")
	f.local(t, "@core/bar", models.Metadata{ID: "bar", Description: "d"}, "Bar")

	report, err := f.engine.Push(context.Background(), Selection{}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.True(t, report.Success)

	stored, ok := f.reg.Get("@core/bar")
	require.True(t, ok)
	assert.Equal(t, "Bar", stored.Content)
	stored, _ = f.reg.Get("foo")
	assert.Equal(t, []string{"t"}, stored.Tags)

	report, err = f.engine.Push(context.Background(), Selection{Names: []string{"foo"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
}

func TestPushUnknownLocalName(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Push(context.Background(), Selection{Names: []string{"nope"}}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, 0, f.reg.Requests("push"))
}

func TestPushServerErrorsFailWithReport(t *testing.T) {
	f := newFixture(t)
	f.local(t, "good", models.Metadata{ID: "good", Description: "d"}, "g")
	f.local(t, "bad", models.Metadata{ID: "bad", Description: "d"}, "b")
	f.reg.FailPush("bad", "database error")

	report, err := f.engine.Push(context.Background(), Selection{}, false)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeRemoteFailure))
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Errors)

	_, ok := f.reg.Get("good")
	assert.True(t, ok, "accepted items stay accepted")
}

func TestPushStatsErrorsFailEvenWhenItemsSucceed(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d"}, "x")
	f.reg.Override("push", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"results": []gin.H{{"name": "foo", "status": "created"}},
			"stats":   gin.H{"errors": 2},
		})
	})

	report, err := f.engine.Push(context.Background(), Selection{}, false)
	require.Error(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.ServerErrors)
}

func TestPushWithoutResults(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d"}, "x")

	f.reg.Override("push", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "quota exceeded"})
	})
	_, err := f.engine.Push(context.Background(), Selection{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	f.reg.Override("push", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	report, err := f.engine.Push(context.Background(), Selection{}, false)
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestResolveCloudPreservesLocalOnlyFields(t *testing.T) {
	f := newFixture(t)
	key := f.local(t, "foo", models.Metadata{
		ID:            "foo",
		Description:   "local desc",
		CreatedAt:     "2024-01-01T00:00:00Z",
		Version:       "v3",
		ContentHash:   "deadbeef",
		ParentVersion: "v2",
	}, "A")
	f.reg.Put(mockregistry.Prompt{Name: "foo", Content: "B", Description: "remote desc", Tags: []string{"r"}})

	_, err := f.engine.Resolve(context.Background(), "foo", StrategyCloud)
	require.NoError(t, err)

	rec, err := f.store.Read(key)
	require.NoError(t, err)
	assert.Equal(t, "B", rec.Body)
	assert.Equal(t, "remote desc", rec.Metadata.Description)
	assert.Equal(t, []string{"r"}, rec.Metadata.Tags)
	assert.Equal(t, "v3", rec.Metadata.Version)
	assert.Equal(t, "deadbeef", rec.Metadata.ContentHash)
	assert.Equal(t, "v2", rec.Metadata.ParentVersion)
	assert.Equal(t, "2024-01-01T00:00:00Z", rec.Metadata.CreatedAt)
	assert.Equal(t, "2025-03-04T05:06:07Z", rec.Metadata.UpdatedAt)

	report, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Synced, statusOf(t, report, "foo").State)
}

func TestResolveLocalForcePushes(t *testing.T) {
	f := newFixture(t)
	f.local(t, "foo", models.Metadata{ID: "foo", Description: "d"}, "A")
	f.reg.Put(mockregistry.Prompt{Name: "foo", Content: "B", Description: "d"})

	result, err := f.engine.Resolve(context.Background(), "foo", StrategyLocal)
	require.NoError(t, err)
	assert.Equal(t, remote.PushUpdated, result.PushStatus)

	stored, _ := f.reg.Get("foo")
	assert.Equal(t, "A", stored.Content)
}

func TestResolveManualDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	key := f.local(t, "foo", models.Metadata{ID: "foo", Description: "d"}, "line one\nlocal line")
	f.reg.Put(mockregistry.Prompt{Name: "foo", Content: "line one\ncloud line", Description: "d"})

	result, err := f.engine.Resolve(context.Background(), "foo", StrategyManual)
	require.NoError(t, err)
	assert.Equal(t, "line one local line", result.LocalPreview)
	assert.Equal(t, "line one cloud line", result.RemotePreview)
	assert.Contains(t, result.Diff, "-local line")
	assert.Contains(t, result.Diff, "+cloud line")

	rec, err := f.store.Read(key)
	require.NoError(t, err)
	assert.Equal(t, "line one\nlocal line", rec.Body)
	stored, _ := f.reg.Get("foo")
	assert.Equal(t, "line one\ncloud line", stored.Content)
	assert.Equal(t, 0, f.reg.Requests("push"))
}

func TestResolveFailures(t *testing.T) {
	f := newFixture(t)
	f.local(t, "insync", models.Metadata{ID: "insync", Description: "d"}, "x")
	f.local(t, "localonly", models.Metadata{ID: "localonly", Description: "d"}, "x")
	f.reg.Put(mockregistry.Prompt{Name: "insync", Content: "x", Description: "d"})

	tests := []struct {
		name string
		code apperrors.ErrorCode
	}{
		{"missing", apperrors.ErrCodeNotFound},
		{"localonly", apperrors.ErrCodeNotFound},
		{"insync", apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Resolve(context.Background(), tt.name, StrategyCloud)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestBidirectionalAbortsOnAnyConflict(t *testing.T) {
	f := newFixture(t)
	f.local(t, "conflicted", models.Metadata{ID: "conflicted", Description: "d"}, "A")
	f.local(t, "local-only", models.Metadata{ID: "local-only", Description: "d"}, "x")
	f.reg.Put(mockregistry.Prompt{Name: "conflicted", Content: "B", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "remote-only", Content: "r", Description: "d"})

	report, err := f.engine.Bidirectional(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeConflict))
	assert.True(t, report.Aborted)
	assert.Zero(t, report.Pushed+report.PushFailed+report.Pulled+report.PullFailed)

	assert.Equal(t, 0, f.reg.Requests("push"))
	_, ok := f.reg.Get("local-only")
	assert.False(t, ok)
	assert.False(t, f.store.Exists(storage.LocalKey("remote-only")))
}

func TestBidirectional(t *testing.T) {
	f := newFixture(t)
	f.local(t, "same", models.Metadata{ID: "same", Description: "d"}, "x")
	f.local(t, "up-a", models.Metadata{ID: "up-a", Description: "d"}, "a")
	f.local(t, "bank/up-b", models.Metadata{ID: "up-b", Description: "d"}, "b")
	f.local(t, "fails", models.Metadata{ID: "fails", Description: "d"}, "f")
	f.reg.Put(mockregistry.Prompt{Name: "same", Content: "x", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "down", Content: "dn", Description: "d"})
	f.reg.FailPush("fails", "rejected")

	report, err := f.engine.Bidirectional(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Aborted)
	assert.Equal(t, 2, report.Pushed)
	assert.Equal(t, 1, report.PushFailed)
	assert.Equal(t, 1, report.Pulled)
	assert.Equal(t, 0, report.PullFailed)

	// each pending item is pushed on its own
	assert.Equal(t, 3, f.reg.Requests("push"))
	assert.True(t, f.store.Exists(storage.LocalKey("down")))
	_, ok := f.reg.Get("bank/up-b")
	assert.True(t, ok)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.local(t, "a", models.Metadata{ID: "a", Description: "d"}, "x")
	f.local(t, "b", models.Metadata{ID: "b", Description: "d"}, "x")
	f.local(t, "c", models.Metadata{ID: "c", Description: "d"}, "x")
	f.local(t, "d", models.Metadata{ID: "d", Description: "d"}, "x")
	f.reg.Put(mockregistry.Prompt{Name: "a", Content: "x", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "b", Content: "x", Description: "d"})
	f.reg.Put(mockregistry.Prompt{Name: "c", Content: "changed", Description: "d"})

	report, err := f.engine.Verify(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Verified)
	assert.Equal(t, 1, report.OutOfSync)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 50, report.SuccessRate)

	report, err = f.engine.Verify(context.Background(), Selection{Pattern: "nothing-*"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 100, report.SuccessRate)
}

func TestSelectionValidate(t *testing.T) {
	assert.NoError(t, Selection{Pattern: "bank/**"}.Validate())
	assert.Error(t, Selection{Pattern: "bank/[unclosed"}.Validate())
	assert.True(t, Selection{}.All())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Cloud")
	require.NoError(t, err)
	assert.Equal(t, StrategyCloud, s)

	_, err = ParseStrategy("merge")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}
