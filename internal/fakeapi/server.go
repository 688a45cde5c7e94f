// Package fakeapi is an in-memory storefront backend for tests. It serves the
// same endpoints and error bodies as the real API and issues signed JWTs.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	generation int
	now        func() time.Time
	pageSize   int

	rotateRefresh  bool
	refreshFails   bool
	searchFallback bool
	refreshHook    func()

	nextID      int64
	accounts    map[int64]*account
	blacklist   map[string]bool
	categories  []*category
	products    []*product
	carts       map[int64]*fakeCart
	addresses   map[int64][]*address
	orders      map[int64][]*order

	refreshCalls atomic.Int32
	rejected     atomic.Int32
}

// Option configures the server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithPageSize sets the product list page size.
func WithPageSize(n int) Option {
	return func(s *Server) { s.pageSize = n }
}

// WithRotateRefresh makes the refresh endpoint issue a new refresh token and
// blacklist the old one.
func WithRotateRefresh() Option {
	return func(s *Server) { s.rotateRefresh = true }
}

// New starts a server seeded with a small catalog.
func New(opts ...Option) *Server {
	s := &Server{
		secret:     []byte("fakeapi-signing-key"),
		accessTTL:  5 * time.Minute,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
		pageSize:   20,
		accounts:   make(map[int64]*account),
		blacklist:  make(map[string]bool),
		carts:      make(map[int64]*fakeCart),
		addresses:  make(map[int64][]*address),
		orders:     make(map[int64][]*order),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seedCatalog()
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users/register/{$}", s.handleRegister)
	mux.HandleFunc("POST /api/users/login/{$}", s.handleLogin)
	mux.HandleFunc("POST /api/users/token/refresh/{$}", s.handleRefresh)
	mux.HandleFunc("POST /api/users/logout/{$}", s.authenticated(s.handleLogout))
	mux.HandleFunc("GET /api/users/profile/{$}", s.authenticated(s.handleProfile))
	mux.HandleFunc("PATCH /api/users/profile/{$}", s.authenticated(s.handleUpdateProfile))
	mux.HandleFunc("POST /api/users/change-password/{$}", s.authenticated(s.handleChangePassword))
	mux.HandleFunc("GET /api/users/addresses/{$}", s.authenticated(s.handleListAddresses))
	mux.HandleFunc("POST /api/users/addresses/{$}", s.authenticated(s.handleCreateAddress))
	mux.HandleFunc("PATCH /api/users/addresses/{id}/{$}", s.authenticated(s.handleUpdateAddress))
	mux.HandleFunc("DELETE /api/users/addresses/{id}/{$}", s.authenticated(s.handleDeleteAddress))

	mux.HandleFunc("GET /api/catalog/categories/{$}", s.handleCategories)
	mux.HandleFunc("GET /api/catalog/categories/{slug}/{$}", s.handleCategory)
	mux.HandleFunc("GET /api/catalog/products/{$}", s.handleProducts)
	mux.HandleFunc("GET /api/catalog/products/{slug}/{$}", s.handleProduct)
	mux.HandleFunc("GET /api/catalog/search/{$}", s.handleSearch)

	mux.HandleFunc("GET /api/orders/cart/{$}", s.authenticated(s.handleCart))
	mux.HandleFunc("POST /api/orders/cart/items/{$}", s.authenticated(s.handleAddCartItem))
	mux.HandleFunc("PATCH /api/orders/cart/items/{id}/{$}", s.authenticated(s.handleUpdateCartItem))
	mux.HandleFunc("DELETE /api/orders/cart/items/{id}/{$}", s.authenticated(s.handleDeleteCartItem))
	mux.HandleFunc("POST /api/orders/orders/create/{$}", s.authenticated(s.handleCreateOrder))
	mux.HandleFunc("GET /api/orders/orders/{$}", s.authenticated(s.handleOrders))
	mux.HandleFunc("GET /api/orders/orders/{number}/{$}", s.authenticated(s.handleOrder))

	return mux
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// SetRefreshFailure makes the refresh endpoint reject every token.
func (s *Server) SetRefreshFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFails = fail
}

// SetSearchFallback makes search answer as if the search index were down.
func (s *Server) SetSearchFallback(fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchFallback = fallback
}

// OnRefresh runs fn at the start of every refresh call, outside the server lock.
func (s *Server) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshHook = fn
}

// RefreshCalls returns how many times the refresh endpoint was called.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// Rejected returns how many requests were refused with 401.
func (s *Server) Rejected() int {
	return int(s.rejected.Load())
}

func (s *Server) newIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, fields)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("JSON parse error - %v", err))
		return false
	}
	return true
}

// money formats cents as a decimal string.
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
