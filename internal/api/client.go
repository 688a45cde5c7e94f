// Package api is the authenticated HTTP client for the storefront backend.
// A 401 triggers at most one token refresh at a time; requests that fail
// while it runs are queued and replayed once it settles.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"storefront-go/internal/metrics"
	"storefront-go/internal/session"
)

const (
	// RefreshPath is the token refresh endpoint.
	RefreshPath = "/api/users/token/refresh/"
	// DefaultLoginPath is where the client navigates when the session ends.
	DefaultLoginPath = "/login"

	headerRequestID = "X-Request-ID"
)

// CredentialStore is the session as seen by the client.
type CredentialStore interface {
	oauth2.TokenSource
	SetAccessToken(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// RefreshFunc exchanges a refresh token for a new access token. The returned
// refresh token is empty when the server does not rotate it.
type RefreshFunc func(ctx context.Context, refresh string) (access, newRefresh string, err error)

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous requests carry no credentials and a 401 is returned as is.
	Anonymous bool

	retried bool
	id      string
}

// Client issues requests against the storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialStore
	navigator  Navigator
	loginPath  string
	refreshFn  RefreshFunc
	refresh    Coordinator
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNavigator sets where the login redirect is sent.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRefreshFunc replaces the built-in refresh call.
func WithRefreshFunc(fn RefreshFunc) Option {
	return func(c *Client) { c.refreshFn = fn }
}

// WithLoginPath overrides the redirect target.
func WithLoginPath(path string) Option {
	return func(c *Client) { c.loginPath = path }
}

// New creates a client for baseURL.
func New(baseURL string, creds CredentialStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if creds == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		navigator:  noopNavigator{},
		loginPath:  DefaultLoginPath,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refreshFn == nil {
		c.refreshFn = c.RefreshToken
	}
	c.logger = c.logger.With().Str("component", "api").Logger()
	return c, nil
}

// Coordinator exposes the refresh state, mainly for diagnostics.
func (c *Client) Coordinator() *Coordinator {
	return &c.refresh
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

// Do sends req and decodes a successful JSON response into out, which may be
// nil. A 401 is recovered through the refresh protocol at most once.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	r := *req
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}

	var body []byte
	if r.Body != nil {
		var err error
		if body, err = json.Marshal(r.Body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.do(ctx, &r, body, out)
}

func (c *Client) do(ctx context.Context, r *Request, body []byte, out any) error {
	var tok *oauth2.Token
	if !r.Anonymous {
		tok = c.currentToken()
	}
	sentWith := ""
	if tok != nil {
		sentWith = tok.AccessToken
	}

	status, payload, err := c.send(ctx, r, body, tok)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if r.retried || r.Anonymous || c.credentialsPending() {
			return newAPIError(r.Method, r.Path, status, payload)
		}
		return c.recoverUnauthorized(ctx, r, body, sentWith, out)
	}
	if status < 200 || status > 299 {
		return newAPIError(r.Method, r.Path, status, payload)
	}
	return decode(payload, out)
}

func (c *Client) send(ctx context.Context, r *Request, body []byte, tok *oauth2.Token) (int, []byte, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, r.id)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok != nil {
		tok.SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "error").Inc()
		return 0, nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "error").Inc()
		return 0, nil, fmt.Errorf("%s %s: failed to read response: %w", r.Method, r.Path, err)
	}
	metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Str("request_id", r.id).
		Int("status", resp.StatusCode).
		Bool("retried", r.retried).
		Bool("authenticated", tok != nil).
		Dur("elapsed", time.Since(start)).
		Msg("API request")

	return resp.StatusCode, payload, nil
}

// recoverUnauthorized handles the first 401 of a request.
func (c *Client) recoverUnauthorized(ctx context.Context, r *Request, body []byte, sentWith string, out any) error {
	replay := func(reason string) error {
		metrics.ReplaysTotal.WithLabelValues(reason).Inc()
		r.retried = true
		return c.do(ctx, r, body, out)
	}

	// Someone refreshed while this request was on the wire.
	if c.staleToken(sentWith) {
		return replay("stale_token")
	}

	leader, w := c.refresh.AcquireOrAwait()
	if !leader {
		_, err := w.Wait(ctx)
		defer w.Release()
		if err != nil {
			return err
		}
		return replay("queued")
	}

	if c.staleToken(sentWith) {
		c.refresh.Settle(c.currentAccessToken(), nil)
		return replay("stale_token")
	}

	access, err := c.refreshSession(ctx)
	if err != nil {
		c.terminate(ctx)
		c.refresh.Settle("", err)
		return err
	}

	c.refresh.Settle(access, nil)
	return replay("leader")
}

// refreshSession runs the refresh call and stores the result. It is detached
// from the caller's cancellation so an abandoned request cannot log the user out.
func (c *Client) refreshSession(ctx context.Context) (string, error) {
	ctx = context.WithoutCancel(ctx)

	tok := c.currentToken()
	if tok == nil || tok.RefreshToken == "" {
		metrics.RefreshesTotal.WithLabelValues("no_refresh_token").Inc()
		c.logger.Warn().Msg("Access token rejected and no refresh token stored")
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
	}

	access, refresh, err := c.refreshFn(ctx, tok.RefreshToken)
	if err == nil {
		err = c.creds.SetAccessToken(ctx, access, refresh)
	}
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("failure").Inc()
		c.logger.Warn().Err(err).Msg("Token refresh failed")
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	metrics.RefreshesTotal.WithLabelValues("success").Inc()
	c.logger.Debug().Bool("rotated", refresh != "").Msg("Access token refreshed")
	return access, nil
}

// terminate ends the session and sends the user to the login page.
func (c *Client) terminate(ctx context.Context) {
	if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear session")
	}
	c.navigator.Navigate(c.loginPath)
}

func (c *Client) staleToken(sentWith string) bool {
	current := c.currentAccessToken()
	return current != "" && current != sentWith
}

func (c *Client) currentToken() *oauth2.Token {
	tok, err := c.creds.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return nil
	}
	return tok
}

// credentialsPending reports whether the session has not been hydrated yet.
// Its stored credentials are unknown, so a 401 must not end it.
func (c *Client) credentialsPending() bool {
	_, err := c.creds.Token()
	return errors.Is(err, session.ErrNotInitialized)
}

func (c *Client) currentAccessToken() string {
	if tok := c.currentToken(); tok != nil {
		return tok.AccessToken
	}
	return ""
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RefreshToken calls the refresh endpoint directly, bypassing the 401
// handling in Do.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, string, error) {
	body, err := json.Marshal(refreshRequest{Refresh: refresh})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	r := &Request{Method: http.MethodPost, Path: RefreshPath, Anonymous: true, id: uuid.NewString()}
	status, payload, err := c.send(ctx, r, body, nil)
	if err != nil {
		return "", "", err
	}
	if status < 200 || status > 299 {
		return "", "", newAPIError(r.Method, r.Path, status, payload)
	}

	var resp refreshResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if resp.Access == "" {
		return "", "", fmt.Errorf("refresh response has no access token")
	}
	return resp.Access, resp.Refresh, nil
}

func decode(payload []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
