// Package remote provides an HTTP backend for a hosted letters server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

// Paths served by a letters server.
const (
	PathUser = "/auth/v1/user"
	PathRest = "/rest/v1/"
)

// Store is a backend.Backend that talks to a letters server over HTTP.
type Store struct {
	baseURL    string
	httpClient *http.Client
}

var _ backend.Backend = (*Store)(nil)

// Config holds configuration for creating a remote store.
type Config struct {
	URL           string
	Token         string
	AllowInsecure bool
	Timeout       time.Duration
}

// New creates a new remote store. Requests carry Token as a bearer token.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	// Enforce HTTPS unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf("HTTPS required for remote connections\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://letters.example.com\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("remote URL must include a host (e.g., https://letters.example.com)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Store{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: newHTTPClient(cfg.Token, timeout, nil),
	}, nil
}

// newHTTPClient wraps base (http.DefaultTransport when nil) so every request
// carries the bearer token.
func newHTTPClient(token string, timeout time.Duration, base http.RoundTripper) *http.Client {
	transport := base
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Close is a no-op for HTTP client.
func (s *Store) Close() error {
	return nil
}

// doRequest performs an HTTP request and decodes a JSON response into out.
// Non-2xx responses are converted to classified backend errors.
func (s *Store) doRequest(ctx context.Context, method, path string, params url.Values, body, out any) error {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &backend.Error{Kind: backend.KindTransient, Message: "network request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &backend.Error{Kind: backend.KindTransient,
			Message: fmt.Sprintf("decode %s %s response", method, path), Err: err}
	}
	return nil
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// handleErrorResponse reads an error response and returns a classified error.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	msg := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &backend.Error{
		Kind:    kindForStatus(resp.StatusCode),
		Code:    apiErr.Code,
		Message: fmt.Sprintf("API error (%d): %s", resp.StatusCode, msg),
	}
}

func kindForStatus(status int) backend.Kind {
	switch status {
	case http.StatusUnauthorized:
		return backend.KindUnauthenticated
	case http.StatusForbidden:
		return backend.KindForbidden
	case http.StatusNotFound:
		return backend.KindNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return backend.KindValidation
	default:
		return backend.KindTransient
	}
}

// UserResponse is the body of GET /auth/v1/user.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// DeleteResponse is the body of a successful DELETE.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// CurrentIdentity returns the user the token authenticates, or nil when the
// server rejects the token.
func (s *Store) CurrentIdentity(ctx context.Context) (*query.Identity, error) {
	var ur UserResponse
	err := s.doRequest(ctx, http.MethodGet, PathUser, nil, nil, &ur)
	if backend.KindOf(err) == backend.KindUnauthenticated {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &query.Identity{ID: ur.ID, Email: ur.Email}, nil
}

// Select fetches the rows of q.Table matching q.
func (s *Store) Select(ctx context.Context, q query.Select) ([]backend.Row, error) {
	params, err := query.EncodeSelect(q)
	if err != nil {
		return nil, backend.Errorf(backend.KindValidation, "invalid query: %v", err)
	}
	var rows []backend.Row
	if err := s.doRequest(ctx, http.MethodGet, PathRest+q.Table, params, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update applies patch to the rows matching where and returns the first.
func (s *Store) Update(ctx context.Context, table string, where query.Predicate, patch backend.Patch) (backend.Row, error) {
	params, err := filterParams(where)
	if err != nil {
		return nil, err
	}
	var row backend.Row
	if err := s.doRequest(ctx, http.MethodPatch, PathRest+table, params, patch, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// Insert creates a row and returns it as stored.
func (s *Store) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	var created backend.Row
	if err := s.doRequest(ctx, http.MethodPost, PathRest+table, nil, row, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Delete removes the rows matching where.
func (s *Store) Delete(ctx context.Context, table string, where query.Predicate) (int64, error) {
	params, err := filterParams(where)
	if err != nil {
		return 0, err
	}
	var dr DeleteResponse
	if err := s.doRequest(ctx, http.MethodDelete, PathRest+table, params, nil, &dr); err != nil {
		return 0, err
	}
	return dr.Deleted, nil
}

func filterParams(where query.Predicate) (url.Values, error) {
	params := url.Values{}
	if err := query.EncodeFilter(params, where); err != nil {
		return nil, backend.Errorf(backend.KindValidation, "invalid filter: %v", err)
	}
	return params, nil
}
