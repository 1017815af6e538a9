package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/andrewpaige1/sysviz-api/graph"
	"github.com/andrewpaige1/sysviz-api/models"
)

var (
	ErrNotFound     = errors.New("persistence: design not found")
	ErrForbidden    = errors.New("persistence: not allowed")
	ErrUnauthorized = errors.New("persistence: missing or invalid token")
)

type CreateRequest struct {
	Name        string         `json:"name,omitempty"`
	WorkspaceID string         `json:"workspaceId,omitempty"`
	TeamID      *uint          `json:"teamId,omitempty"`
	Data        graph.Document `json:"data"`
}

type UpdateRequest struct {
	Name string         `json:"name,omitempty"`
	Data graph.Document `json:"data"`
}

// Gateway moves graph snapshots to and from durable storage.
type Gateway interface {
	Create(ctx context.Context, req CreateRequest) (*models.Design, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*models.Design, error)
	Load(ctx context.Context, id string) (*models.Design, error)
	ToggleSharing(ctx context.Context, id string, isPublic bool) (*models.Design, error)
}

// HTTPGateway talks to the designs REST API. Calls go through a circuit
// breaker so a struggling server is not hammered by every autosave.
// Rejections (401, 403, 404) do not count as failures.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type HTTPOption func(*HTTPGateway)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) { g.client = c }
}

func WithBreakerSettings(st gobreaker.Settings) HTTPOption {
	return func(g *HTTPGateway) { g.breaker = gobreaker.NewCircuitBreaker(st) }
}

func NewHTTPGateway(baseURL, token string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  http.DefaultClient,
		breaker: gobreaker.NewCircuitBreaker(DefaultBreakerSettings("design-api")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultBreakerSettings opens after five consecutive server or network
// failures and probes again after 30 seconds.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrForbidden) ||
				errors.Is(err, ErrUnauthorized)
		},
	}
}

func (g *HTTPGateway) Create(ctx context.Context, req CreateRequest) (*models.Design, error) {
	return g.do(ctx, http.MethodPost, "/api/designs", req)
}

func (g *HTTPGateway) Update(ctx context.Context, id string, req UpdateRequest) (*models.Design, error) {
	return g.do(ctx, http.MethodPut, "/api/designs/"+url.PathEscape(id), req)
}

func (g *HTTPGateway) Load(ctx context.Context, id string) (*models.Design, error) {
	return g.do(ctx, http.MethodGet, "/api/designs/"+url.PathEscape(id), nil)
}

func (g *HTTPGateway) ToggleSharing(ctx context.Context, id string, isPublic bool) (*models.Design, error) {
	body := map[string]bool{"isPublic": isPublic}
	return g.do(ctx, http.MethodPost, "/api/designs/"+url.PathEscape(id)+"/share", body)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body any) (*models.Design, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Design), nil
}

func (g *HTTPGateway) roundTrip(ctx context.Context, method, path string, body any) (*models.Design, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("persistence: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("persistence: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("persistence: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, statusError(method, path, resp)
	}

	var design models.Design
	if err := json.NewDecoder(resp.Body).Decode(&design); err != nil {
		return nil, fmt.Errorf("persistence: decode response: %w", err)
	}
	return &design, nil
}

func statusError(method, path string, resp *http.Response) error {
	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	}

	var body struct {
		Message string `json:"message"`
	}
	json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	if sentinel != nil {
		if body.Message != "" {
			return fmt.Errorf("%w: %s", sentinel, body.Message)
		}
		return sentinel
	}
	return fmt.Errorf("persistence: %s %s: status %d: %s", method, path, resp.StatusCode, body.Message)
}
