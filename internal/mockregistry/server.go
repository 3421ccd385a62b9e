// Package mockregistry is an in-memory Remote Store served over HTTP.
//
// It implements the same three endpoints as the hosted registry and is used
// by tests and by cmd/mock-registry for local development.
package mockregistry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/metrics"
	"github.com/dpshade/prompthive/internal/models"
	"github.com/dpshade/prompthive/internal/remote"
	"github.com/dpshade/prompthive/internal/storage"
)

// Prompt is a prompt as the registry stores it.
type Prompt struct {
	Name        string
	Content     string
	Description string
	Tags        []string
	UpdatedAt   string
}

// Server holds registry state and serves it through gin.
type Server struct {
	mu        sync.RWMutex
	prompts   map[string]Prompt
	failures  map[string]string
	requests  map[string]int
	apiKey    string
	log       zerolog.Logger
	errors    *apperrors.HTTPErrorHandler
	now       func() time.Time
	overrides map[string]func(c *gin.Context)
}

// New creates a registry. An empty apiKey disables authentication.
func New(apiKey string, log zerolog.Logger) *Server {
	log = log.With().Str("component", "mockregistry").Logger()
	return &Server{
		prompts:   make(map[string]Prompt),
		failures:  make(map[string]string),
		requests:  make(map[string]int),
		apiKey:    apiKey,
		log:       log,
		errors:    apperrors.NewHTTPErrorHandler(true, log),
		now:       time.Now,
		overrides: make(map[string]func(c *gin.Context)),
	}
}

// Put stores or replaces a prompt.
func (s *Server) Put(p Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt == "" {
		p.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	}
	p.Tags = append([]string(nil), p.Tags...)
	s.prompts[p.Name] = p
}

// Get returns a stored prompt.
func (s *Server) Get(name string) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	return p, ok
}

// Names returns the stored prompt names, sorted.
func (s *Server) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.prompts))
	for n := range s.prompts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SeedSource is a store whose records can be preloaded into the registry.
type SeedSource interface {
	List() ([]storage.Key, error)
	Read(key storage.Key) (models.Record, error)
}

// Seed copies every record of src into the registry under its key string.
func (s *Server) Seed(src SeedSource) (int, error) {
	keys, err := src.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list seed records: %w", err)
	}
	for _, key := range keys {
		rec, err := src.Read(key)
		if err != nil {
			return 0, fmt.Errorf("failed to read seed record '%s': %w", key, err)
		}
		s.Put(Prompt{
			Name:        key.String(),
			Content:     rec.Body,
			Description: rec.Metadata.Description,
			Tags:        rec.Metadata.Tags,
			UpdatedAt:   rec.Metadata.UpdatedAt,
		})
	}
	s.log.Info().Int("count", len(keys)).Msg("seeded")
	return len(keys), nil
}

// FailPush makes every push of name report an item error with msg.
func (s *Server) FailPush(name, msg string) {
	s.mu.Lock()
	s.failures[name] = msg
	s.mu.Unlock()
}

// Override replaces the handler of one operation ("list", "get" or "push").
func (s *Server) Override(op string, h func(c *gin.Context)) {
	s.mu.Lock()
	s.overrides[op] = h
	s.mu.Unlock()
}

// Requests returns how many requests an operation has served.
func (s *Server) Requests(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[op]
}

// Router builds the gin engine serving the registry.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "PromptHive Mock Registry")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "prompthive-mock-registry", "prompts": len(s.Names())})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", s.auth())
	api.GET("/prompts", s.handle("list", s.listPrompts))
	api.GET("/prompts/*name", s.handle("get", s.getPrompt))
	api.POST("/sync/push", s.handle("push", s.push))

	return r
}

func (s *Server) handle(op string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.requests[op]++
		override := s.overrides[op]
		s.mu.Unlock()

		if override != nil {
			override(c)
			return
		}
		h(c)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(remote.HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set(remote.HeaderRequestID, reqID)

		c.Next()

		s.log.Debug().
			Str("rid", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey != "" && c.GetHeader(remote.HeaderAPIKey) != s.apiKey {
			s.abort(c, apperrors.NewAppError(apperrors.ErrCodeUnauthorized, "invalid or missing API key"))
			return
		}
		c.Next()
	}
}

func (s *Server) abort(c *gin.Context, err error) {
	s.errors.HandleError(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), s.errors.Body(err))
}

func (s *Server) listPrompts(c *gin.Context) {
	s.mu.RLock()
	out := make([]remote.PromptSummary, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, remote.PromptSummary{
			Name:        p.Name,
			Description: p.Description,
			Tags:        p.Tags,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, remote.ListResponse{Prompts: out})
}

func (s *Server) getPrompt(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	p, ok := s.Get(name)
	if !ok {
		s.abort(c, apperrors.NotFoundError(fmt.Sprintf("prompt '%s'", name)))
		return
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, remote.PromptDetail{
		Name:        p.Name,
		Content:     p.Content,
		Description: p.Description,
		Tags:        tags,
		UpdatedAt:   p.UpdatedAt,
	})
}

func (s *Server) push(c *gin.Context) {
	var req remote.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, apperrors.InvalidInputError("invalid push request").WithDetails(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := remote.PushResponse{Results: make([]remote.PushResult, 0, len(req.Prompts))}
	stats := remote.PushStats{}
	for _, item := range req.Prompts {
		result := remote.PushResult{Name: item.Name}

		if msg, fail := s.failures[item.Name]; fail {
			result.Status = remote.PushError
			result.Error = msg
			stats.Errors++
			resp.Results = append(resp.Results, result)
			continue
		}

		existing, exists := s.prompts[item.Name]
		switch {
		case !exists:
			result.Status = remote.PushCreated
			stats.Created++
		case !req.Force && differs(existing, item):
			result.Status = remote.PushConflict
			stats.Conflicts++
			resp.Results = append(resp.Results, result)
			continue
		default:
			result.Status = remote.PushUpdated
			stats.Updated++
		}

		s.prompts[item.Name] = Prompt{
			Name:        item.Name,
			Content:     item.Content,
			Description: item.Description,
			Tags:        append([]string(nil), item.Tags...),
			UpdatedAt:   s.now().UTC().Format(time.RFC3339),
		}
		resp.Results = append(resp.Results, result)
	}

	resp.Stats = &stats
	resp.Success = stats.Errors == 0
	resp.Message = fmt.Sprintf("%d created, %d updated, %d conflicts, %d errors",
		stats.Created, stats.Updated, stats.Conflicts, stats.Errors)
	c.JSON(http.StatusOK, resp)
}

func differs(p Prompt, item remote.PushItem) bool {
	return strings.TrimSpace(p.Content) != strings.TrimSpace(item.Content) ||
		strings.TrimSpace(p.Description) != strings.TrimSpace(item.Description)
}
