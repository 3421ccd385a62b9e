package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/logger"
	"github.com/dpshade/prompthive/internal/mockregistry"
	"github.com/dpshade/prompthive/internal/remote"
)

const testKey = "secret"

func newRegistry(t *testing.T) (*mockregistry.Server, *remote.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := mockregistry.New(testKey, logger.Nop())
	srv := httptest.NewServer(reg.Router())
	t.Cleanup(srv.Close)

	return reg, remote.NewClient(srv.URL, testKey, 5*time.Second)
}

func TestListAndGet(t *testing.T) {
	reg, client := newRegistry(t)
	reg.Put(mockregistry.Prompt{Name: "foo", Content: "Hello", Description: "d1", Tags: []string{"a"}})
	reg.Put(mockregistry.Prompt{Name: "bank/bar", Content: "Bar", Description: "d2"})
	ctx := context.Background()

	list, err := client.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bank/bar", list[0].Name)
	assert.Equal(t, "foo", list[1].Name)

	detail, err := client.GetPrompt(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "Hello", detail.Content)
	assert.Equal(t, "d1", detail.Description)
	assert.Equal(t, []string{"a"}, detail.Tags)

	detail, err = client.GetPrompt(ctx, "bank/bar")
	require.NoError(t, err)
	assert.Equal(t, "Bar", detail.Content)
}

func TestGetMissingIsNotFound(t *testing.T) {
	_, client := newRegistry(t)

	_, err := client.GetPrompt(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestBadAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := mockregistry.New(testKey, logger.Nop())
	srv := httptest.NewServer(reg.Router())
	defer srv.Close()

	client := remote.NewClient(srv.URL, "wrong", time.Second)
	_, err := client.ListPrompts(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnauthorized))
}

func TestPushDecodesStatuses(t *testing.T) {
	reg, client := newRegistry(t)
	reg.Put(mockregistry.Prompt{Name: "same", Content: "x", Description: "d"})
	reg.Put(mockregistry.Prompt{Name: "diff", Content: "old", Description: "d"})
	reg.FailPush("broken", "database error")

	resp, err := client.Push(context.Background(), remote.PushRequest{
		Prompts: []remote.PushItem{
			{Name: "new", Content: "n", Description: "d"},
			{Name: "same", Content: "x ", Description: "d"},
			{Name: "diff", Content: "new", Description: "d"},
			{Name: "broken", Content: "b", Description: "d"},
		},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, remote.PushCreated, resp.Results[0].Status)
	assert.Equal(t, remote.PushUpdated, resp.Results[1].Status)
	assert.Equal(t, remote.PushConflict, resp.Results[2].Status)
	assert.Equal(t, remote.PushError, resp.Results[3].Status)
	assert.Equal(t, "database error", resp.Results[3].Error)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Errors)

	stored, ok := reg.Get("diff")
	require.True(t, ok)
	assert.Equal(t, "old", stored.Content, "conflicting item is not written")
}

func TestNon2xxIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := remote.NewClient(srv.URL, testKey, time.Second)
	_, err := client.Push(context.Background(), remote.PushRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeRemoteFailure))
	assert.Contains(t, apperrors.GetAppError(err).Details, "upstream down")
}

func TestMalformedJSONIsParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prompts": "not-a-list"}`))
	}))
	defer srv.Close()

	client := remote.NewClient(srv.URL, testKey, time.Second)
	_, err := client.ListPrompts(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeParseFailure))
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"prompts": []}`))
	}))
	defer srv.Close()

	client := remote.NewClient(srv.URL, testKey, time.Second, remote.WithUserAgent("prompthive/test"))
	_, err := client.ListPrompts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testKey, got.Get(remote.HeaderAPIKey))
	assert.Len(t, got.Get(remote.HeaderRequestID), 36)
	assert.Equal(t, "prompthive/test", got.Get("User-Agent"))
}

func TestTransportErrorIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := remote.NewClient(url, testKey, time.Second)
	_, err := client.GetPrompt(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeRemoteFailure))
	assert.False(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}
