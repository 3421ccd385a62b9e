package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/metrics"
)

// Header names used on every request.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"

	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

// Client talks to a Remote Store over HTTP.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	log       zerolog.Logger
}

var _ Remote = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client; its timeout is kept.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the registry at baseURL
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "prompthive",
		http:      &http.Client{Timeout: timeout},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "remote").Logger()
	return c
}

// ListPrompts fetches the remote listing.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptSummary, error) {
	body, _, err := c.do(ctx, "list", http.MethodGet, "/api/prompts", nil)
	if err != nil {
		return nil, err
	}

	if err := validate(listSchema, body); err != nil {
		return nil, apperrors.ParseError("prompt listing", err)
	}
	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.ParseError("prompt listing", err)
	}
	return resp.Prompts, nil
}

// GetPrompt fetches one prompt by name.
func (c *Client) GetPrompt(ctx context.Context, name string) (PromptDetail, error) {
	body, status, err := c.do(ctx, "get", http.MethodGet, "/api/prompts/"+url.PathEscape(name), nil)
	if err != nil {
		if status == http.StatusNotFound {
			return PromptDetail{}, apperrors.NotFoundError(fmt.Sprintf("remote prompt '%s'", name))
		}
		return PromptDetail{}, err
	}

	var detail PromptDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return PromptDetail{}, apperrors.ParseError(fmt.Sprintf("remote prompt '%s'", name), err)
	}
	if detail.Name == "" {
		detail.Name = name
	}
	return detail, nil
}

// Push uploads a batch of prompts.
func (c *Client) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return PushResponse{}, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encode push request")
	}

	body, _, err := c.do(ctx, "push", http.MethodPost, "/api/sync/push", payload)
	if err != nil {
		return PushResponse{}, err
	}

	if err := validate(pushSchema, body); err != nil {
		return PushResponse{}, apperrors.ParseError("push response", err)
	}
	var resp PushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PushResponse{}, apperrors.ParseError("push response", err)
	}
	return resp, nil
}

// do performs one request. Non-2xx replies return a REMOTE_FAILURE error
// along with the status code.
func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, apperrors.RemoteError(op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(op, "transport", time.Since(start).Seconds())
		c.log.Debug().Str("op", op).Str("request_id", requestID).Err(err).Msg("remote request failed")
		return nil, 0, apperrors.RemoteError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	metrics.RecordRemoteRequest(op, strconv.Itoa(resp.StatusCode), elapsed.Seconds())
	c.log.Debug().
		Str("op", op).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("remote request")
	if err != nil {
		return nil, resp.StatusCode, apperrors.RemoteError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		code := apperrors.ErrCodeRemoteFailure
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = apperrors.ErrCodeUnauthorized
		}
		return nil, resp.StatusCode, apperrors.NewAppError(code, fmt.Sprintf("%s failed with status %d", op, resp.StatusCode)).
			WithDetails(strings.TrimSpace(string(snippet))).
			WithContext("status", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}
