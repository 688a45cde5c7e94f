package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"storefront-go/internal/metrics"
	"storefront-go/internal/session"
)

type fakeCreds struct {
	mu      sync.Mutex
	access  string
	refresh string
	clears  int
}

func (f *fakeCreds) Token() (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.access == "" {
		return nil, errors.New("no credentials")
	}
	return &oauth2.Token{AccessToken: f.access, RefreshToken: f.refresh, TokenType: "Bearer"}, nil
}

func (f *fakeCreds) SetAccessToken(ctx context.Context, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = access
	if refresh != "" {
		f.refresh = refresh
	}
	return nil
}

func (f *fakeCreds) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.access = ""
	f.refresh = ""
	return nil
}

func (f *fakeCreds) snapshot() (string, string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh, f.clears
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// backend accepts requests to /api/items/ carrying the current valid token
// and serves the refresh endpoint.
type backend struct {
	server *httptest.Server

	mu            sync.Mutex
	validToken    string
	issueToken    string
	rotateRefresh string
	refreshFails  bool
	refreshHook   func()
	itemsHook     func(r *http.Request)
	rejectedIDs   []string
	acceptedIDs   []string

	refreshCalls atomic.Int32
	rejected     atomic.Int32
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
}

func newBackend(t *testing.T, validToken string) *backend {
	t.Helper()
	b := &backend{validToken: validToken, issueToken: validToken}

	mux := http.NewServeMux()
	mux.HandleFunc(RefreshPath, b.handleRefresh)
	mux.HandleFunc("/api/items/", b.handleItems)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if r.Header.Get("Authorization") != "" {
		http.Error(w, "refresh must be sent without credentials", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	hook, fails, issue, rotate := b.refreshHook, b.refreshFails, b.issueToken, b.rotateRefresh
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	if fails {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		http.Error(w, `{"refresh":["This field is required."]}`, http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(refreshResponse{Access: issue, Refresh: rotate})
}

func (b *backend) handleItems(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	hook, valid := b.itemsHook, b.validToken
	b.mu.Unlock()
	if hook != nil {
		hook(r)
	}

	id := r.Header.Get(headerRequestID)
	if r.Header.Get("Authorization") != "Bearer "+valid {
		b.rejected.Add(1)
		b.mu.Lock()
		b.rejectedIDs = append(b.rejectedIDs, id)
		b.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
		return
	}

	current := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.maxInFlight.Load()
		if current <= peak || b.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	b.mu.Lock()
	b.acceptedIDs = append(b.acceptedIDs, id)
	b.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "echo": string(body)})
}

func (b *backend) set(fn func(b *backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

type itemResponse struct {
	OK   bool   `json:"ok"`
	Echo string `json:"echo"`
}

func newTestClient(t *testing.T, b *backend, creds CredentialStore, nav Navigator) *Client {
	t.Helper()
	client, err := New(b.server.URL, creds,
		WithHTTPClient(b.server.Client()),
		WithNavigator(nav),
		WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return client
}

// waitForPending blocks until n requests are queued behind the refresh.
func waitForPending(c *Client, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for c.Coordinator().Pending() < n && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("ftp://example.com", &fakeCreds{})
	assert.Error(t, err)

	_, err = New("http://example.com", nil)
	assert.Error(t, err)

	c, err := New("http://example.com/", &fakeCreds{})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", c.baseURL)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	b := newBackend(t, "good")
	creds := &fakeCreds{access: "good", refresh: "r"}
	client := newTestClient(t, b, creds, &recordingNavigator{})

	var out itemResponse
	require.NoError(t, client.Get(context.Background(), "/api/items/", url.Values{"page": {"2"}}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(0), b.refreshCalls.Load())
}

func TestClient_ConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	const n = 5
	b := newBackend(t, "fresh")
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}
	nav := &recordingNavigator{}
	client := newTestClient(t, b, creds, nav)

	// Hold the refresh until every other request is queued behind it
	b.set(func(b *backend) { b.refreshHook = func() { waitForPending(client, n-1) } })

	successBefore := testutil.ToFloat64(metrics.RefreshesTotal.WithLabelValues("success"))

	var wg sync.WaitGroup
	errs := make([]error, n)
	outs := make([]itemResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Get(context.Background(), "/api/items/", nil, &outs[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "request %d", i)
		assert.True(t, outs[i].OK)
	}

	assert.Equal(t, int32(1), b.refreshCalls.Load(), "exactly one refresh")
	assert.Equal(t, int32(n), b.rejected.Load())
	assert.Equal(t, int32(1), b.maxInFlight.Load(), "replays run one after another")

	access, refresh, clears := creds.snapshot()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "refresh-1", refresh)
	assert.Zero(t, clears)
	assert.Empty(t, nav.visited())

	// Every replay keeps its request ID
	b.mu.Lock()
	assert.ElementsMatch(t, b.rejectedIDs, b.acceptedIDs)
	b.mu.Unlock()

	assert.False(t, client.Coordinator().InFlight())
	assert.Equal(t, successBefore+1, testutil.ToFloat64(metrics.RefreshesTotal.WithLabelValues("success")))
}

func TestClient_QueuedRequestsReplayInArrivalOrder(t *testing.T) {
	const n = 6
	b := newBackend(t, "fresh")
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}
	client := newTestClient(t, b, creds, &recordingNavigator{})

	var (
		mu       sync.Mutex
		replayed []string
	)
	b.set(func(b *backend) {
		b.refreshHook = func() { waitForPending(client, n-1) }
		b.itemsHook = func(r *http.Request) {
			if r.Header.Get("Authorization") == "Bearer fresh" {
				mu.Lock()
				replayed = append(replayed, r.URL.Path)
				mu.Unlock()
			}
		}
	})

	var wg sync.WaitGroup
	get := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Get(context.Background(), fmt.Sprintf("/api/items/%d", i), nil, nil))
		}()
	}

	// request 0 leads the refresh, the rest queue one at a time
	get(0)
	require.Eventually(t, client.Coordinator().InFlight, 2*time.Second, time.Millisecond)
	for i := 1; i < n; i++ {
		get(i)
		want := i
		require.Eventually(t, func() bool { return client.Coordinator().Pending() == want }, 2*time.Second, time.Millisecond)
	}
	wg.Wait()

	expected := make([]string, 0, n)
	for i := 1; i < n; i++ {
		expected = append(expected, fmt.Sprintf("/api/items/%d", i))
	}
	expected = append(expected, "/api/items/0")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, expected, replayed)
	assert.Equal(t, int32(1), b.refreshCalls.Load())
}

func TestClient_UnauthorizedBeforeHydrationKeepsStoredSession(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, "fresh")

	persister := session.NewMemoryPersister()
	require.NoError(t, persister.Save(ctx, map[string][]byte{
		session.KeyAccessToken:  []byte("stored-access"),
		session.KeyRefreshToken: []byte("stored-refresh"),
		session.KeyUser:         []byte(`{"id":3,"username":"carol"}`),
	}))
	store := session.NewStore(persister, zerolog.Nop())
	nav := &recordingNavigator{}
	client := newTestClient(t, b, store, nav)

	err := client.Get(ctx, "/api/items/", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	assert.Zero(t, b.refreshCalls.Load())
	assert.Empty(t, nav.visited())
	assert.Equal(t, session.StateUninitialized, store.State())

	values, err := persister.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, values, 3)

	require.NoError(t, store.Initialize(ctx))
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "stored-access", store.Credentials().AccessToken)
}

func TestClient_RefreshFailureRejectsAll(t *testing.T) {
	const n = 4
	b := newBackend(t, "fresh")
	b.set(func(b *backend) { b.refreshFails = true })
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}
	nav := &recordingNavigator{}
	client := newTestClient(t, b, creds, nav)
	b.set(func(b *backend) { b.refreshHook = func() { waitForPending(client, n-1) } })

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Get(context.Background(), "/api/items/", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}
	assert.Equal(t, int32(1), b.refreshCalls.Load())

	access, refresh, clears := creds.snapshot()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Equal(t, 1, clears, "credentials cleared exactly once")
	assert.Equal(t, []string{DefaultLoginPath}, nav.visited())
	assert.False(t, client.Coordinator().InFlight())
	assert.Zero(t, client.Coordinator().Pending())
}

func TestClient_RetriedRequestNotRetriedAgain(t *testing.T) {
	b := newBackend(t, "never-issued")
	b.set(func(b *backend) { b.issueToken = "fresh" })
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}
	nav := &recordingNavigator{}
	client := newTestClient(t, b, creds, nav)

	err := client.Get(context.Background(), "/api/items/", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, int32(2), b.rejected.Load(), "original attempt plus one replay")

	_, _, clears := creds.snapshot()
	assert.Zero(t, clears)
	assert.Empty(t, nav.visited())
}

func TestClient_NoRefreshToken(t *testing.T) {
	b := newBackend(t, "fresh")
	creds := &fakeCreds{access: "expired"}
	nav := &recordingNavigator{}
	client := newTestClient(t, b, creds, nav)

	err := client.Get(context.Background(), "/api/items/", nil, nil)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	assert.Zero(t, b.refreshCalls.Load())
	_, _, clears := creds.snapshot()
	assert.Equal(t, 1, clears)
	assert.Equal(t, []string{"/login"}, nav.visited())
}

func TestClient_StaleTokenReplaysWithoutRefresh(t *testing.T) {
	b := newBackend(t, "fresh")
	creds := &fakeCreds{access: "old", refresh: "refresh-1"}
	client := newTestClient(t, b, creds, &recordingNavigator{})

	// Another caller refreshed while this request was on the wire
	var once sync.Once
	b.set(func(b *backend) {
		b.itemsHook = func(*http.Request) {
			once.Do(func() { _ = creds.SetAccessToken(context.Background(), "fresh", "") })
		}
	})

	var out itemResponse
	require.NoError(t, client.Get(context.Background(), "/api/items/", nil, &out))
	assert.True(t, out.OK)
	assert.Zero(t, b.refreshCalls.Load())
	assert.Equal(t, int32(1), b.rejected.Load())
}

func TestClient_ReplaysRequestBody(t *testing.T) {
	b := newBackend(t, "fresh")
	b.set(func(b *backend) { b.rotateRefresh = "refresh-2" })
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}
	client := newTestClient(t, b, creds, &recordingNavigator{})

	var out itemResponse
	err := client.Post(context.Background(), "/api/items/", map[string]int{"quantity": 3}, &out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"quantity":3}`, out.Echo)

	_, refresh, _ := creds.snapshot()
	assert.Equal(t, "refresh-2", refresh, "rotated refresh token is stored")
}

func TestClient_UnauthenticatedRequest(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := New(server.URL, &fakeCreds{})
	require.NoError(t, err)

	var out []string
	require.NoError(t, client.Get(context.Background(), "/api/catalog/products/", nil, &out))
	assert.Equal(t, "", gotAuth.Load())
}

func TestClient_ErrorResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing/":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		case "/invalid/":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"quantity":["Ensure this value is greater than or equal to 1."],"variant_id":"Invalid."}`))
		case "/broken/":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("upstream exploded"))
		case "/garbage/":
			_, _ = w.Write([]byte("not json"))
		}
	}))
	defer server.Close()

	client, err := New(server.URL, &fakeCreds{access: "a", refresh: "r"})
	require.NoError(t, err)
	ctx := context.Background()

	err = client.Get(ctx, "/missing/", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not found.", apiErr.Detail)

	err = client.Post(ctx, "/invalid/", map[string]int{"quantity": 0}, nil)
	assert.ErrorIs(t, err, ErrValidation)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, map[string][]string{
		"quantity":   {"Ensure this value is greater than or equal to 1."},
		"variant_id": {"Invalid."},
	}, apiErr.FieldErrors())

	err = client.Get(ctx, "/broken/", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Detail)
	assert.True(t, strings.Contains(err.Error(), "500"))

	var out map[string]any
	err = client.Get(ctx, "/garbage/", nil, &out)
	assert.ErrorContains(t, err, "failed to decode response")
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	creds := &fakeCreds{access: "a", refresh: "r"}
	client, err := New(baseURL, creds)
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/items/", nil, nil)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))

	_, _, clears := creds.snapshot()
	assert.Zero(t, clears)
}

func TestClient_CustomRefreshFunc(t *testing.T) {
	b := newBackend(t, "custom")
	creds := &fakeCreds{access: "expired", refresh: "refresh-1"}

	var calls atomic.Int32
	client, err := New(b.server.URL, creds,
		WithRefreshFunc(func(ctx context.Context, refresh string) (string, string, error) {
			calls.Add(1)
			assert.Equal(t, "refresh-1", refresh)
			return "custom", "", nil
		}),
		WithLoginPath("/signin"),
	)
	require.NoError(t, err)

	require.NoError(t, client.Get(context.Background(), "/api/items/", nil, nil))
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, b.refreshCalls.Load())
}

func TestClient_RefreshToken(t *testing.T) {
	b := newBackend(t, "fresh")
	client := newTestClient(t, b, &fakeCreds{}, &recordingNavigator{})

	access, refresh, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", access)
	assert.Empty(t, refresh)

	b.set(func(b *backend) { b.refreshFails = true })
	_, _, err = client.RefreshToken(context.Background(), "refresh-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_AnonymousRequest(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	}))
	defer server.Close()

	creds := &fakeCreds{access: "a", refresh: "r"}
	nav := &recordingNavigator{}
	client, err := New(server.URL, creds, WithNavigator(nav))
	require.NoError(t, err)

	err = client.Do(context.Background(), &Request{
		Method:    http.MethodPost,
		Path:      "/api/users/login/",
		Body:      map[string]string{"email": "a@example.com", "password": "wrong"},
		Anonymous: true,
	}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "", gotAuth.Load())

	_, _, clears := creds.snapshot()
	assert.Zero(t, clears)
	assert.Empty(t, nav.visited())
}
