// Package remote defines the Remote Store contract and an HTTP client for it.
//
// Endpoints:
//
//	GET  /api/prompts          -> ListResponse
//	GET  /api/prompts/{name}   -> PromptDetail, 404 when absent
//	POST /api/sync/push        PushRequest -> PushResponse
package remote

import (
	"context"
	"encoding/json"
	"strings"
)

// Remote is the Remote Store as the sync engine sees it.
type Remote interface {
	// ListPrompts returns every prompt the remote holds.
	ListPrompts(ctx context.Context) ([]PromptSummary, error)
	// GetPrompt returns one prompt. A missing prompt is an error with
	// code NOT_FOUND.
	GetPrompt(ctx context.Context, name string) (PromptDetail, error)
	// Push uploads a batch. Any 2xx response is returned for the caller to
	// interpret; other statuses are REMOTE_FAILURE errors.
	Push(ctx context.Context, req PushRequest) (PushResponse, error)
}

// PromptSummary is one entry of the remote listing.
type PromptSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// ListResponse is the body of GET /api/prompts.
type ListResponse struct {
	Prompts []PromptSummary `json:"prompts"`
}

// PromptDetail is the body of GET /api/prompts/{name}.
type PromptDetail struct {
	Name        string   `json:"name,omitempty"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// PushItem is one prompt in a push batch.
type PushItem struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// PushRequest is the body of POST /api/sync/push.
type PushRequest struct {
	Prompts []PushItem `json:"prompts"`
	Force   bool       `json:"force"`
}

// PushStatus is the per-item outcome of a push, decoded once at the wire.
type PushStatus int

const (
	PushUnknown PushStatus = iota
	PushCreated
	PushUpdated
	PushConflict
	PushError
)

var pushStatusNames = map[PushStatus]string{
	PushUnknown:  "unknown",
	PushCreated:  "created",
	PushUpdated:  "updated",
	PushConflict: "conflict",
	PushError:    "error",
}

func (s PushStatus) String() string {
	if name, ok := pushStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParsePushStatus maps a wire string to a PushStatus; unrecognized values are PushUnknown.
func ParsePushStatus(s string) PushStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created":
		return PushCreated
	case "updated":
		return PushUpdated
	case "conflict":
		return PushConflict
	case "error":
		return PushError
	default:
		return PushUnknown
	}
}

// MarshalJSON implements json.Marshaler
func (s PushStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *PushStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParsePushStatus(raw)
	return nil
}

// PushResult is the server's verdict on one pushed item.
type PushResult struct {
	Name   string     `json:"name"`
	Status PushStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// PushStats is the server's aggregate summary of a push.
type PushStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// PushResponse is the body of a 2xx reply to POST /api/sync/push.
// Results is nil when the server sent no results array.
type PushResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Results []PushResult `json:"results,omitempty"`
	Stats   *PushStats   `json:"stats,omitempty"`
}
