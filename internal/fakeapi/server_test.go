package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_LoginAndProfile(t *testing.T) {
	s := New()
	defer s.Close()
	s.AddUser("alice", "alice@example.com", "s3cret-pass")

	resp, body := doJSON(t, s, http.MethodPost, "/api/users/login/", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = doJSON(t, s, http.MethodPost, "/api/users/login/", "", map[string]string{
		"email": "alice@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := body["access"].(string)
	require.NotEmpty(t, body["refresh"])

	// The access token is a JWT with an expiry
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(access, claims)
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp.Time, 5*time.Second)

	resp, body = doJSON(t, s, http.MethodGet, "/api/users/profile/", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	resp, _ = doJSON(t, s, http.MethodGet, "/api/users/profile/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, s.Rejected())
}

func TestServer_ExpireAndRefresh(t *testing.T) {
	s := New(WithRotateRefresh())
	defer s.Close()
	id := s.AddUser("bob", "bob@example.com", "pw")
	access, refresh := s.IssueTokens(id)

	s.ExpireAccessTokens()
	resp, body := doJSON(t, s, http.MethodGet, "/api/users/profile/", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_not_valid", body["code"])

	resp, body = doJSON(t, s, http.MethodPost, "/api/users/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newAccess := body["access"].(string)
	rotated := body["refresh"].(string)
	assert.NotEqual(t, refresh, rotated)
	assert.Equal(t, 1, s.RefreshCalls())

	resp, _ = doJSON(t, s, http.MethodGet, "/api/users/profile/", newAccess, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The rotated-out refresh token is blacklisted
	resp, _ = doJSON(t, s, http.MethodPost, "/api/users/token/refresh/", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s.SetRefreshFailure(true)
	resp, _ = doJSON(t, s, http.MethodPost, "/api/users/token/refresh/", "", map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An access token is not accepted as a refresh token
	s.SetRefreshFailure(false)
	resp, _ = doJSON(t, s, http.MethodPost, "/api/users/token/refresh/", "", map[string]string{"refresh": newAccess})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_CheckoutTotals(t *testing.T) {
	s := New()
	defer s.Close()
	id := s.AddUser("carol", "carol@example.com", "pw")
	access, _ := s.IssueTokens(id)

	resp, product := doJSON(t, s, http.MethodGet, "/api/catalog/products/classic-tee/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	variants := product["variants"].([]any)
	large := variants[1].(map[string]any)
	assert.Equal(t, "21.99", large["effective_price"])

	resp, _ = doJSON(t, s, http.MethodPost, "/api/orders/cart/items/", access, map[string]any{
		"product_id": product["id"], "variant_id": large["id"], "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, s.CartQuantity(id))

	resp, body := doJSON(t, s, http.MethodPost, "/api/orders/cart/items/", access, map[string]any{
		"product_id": product["id"], "variant_id": large["id"], "quantity": 5,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Insufficient stock", body["error"])

	resp, addr := doJSON(t, s, http.MethodPost, "/api/users/addresses/", access, map[string]any{
		"address_type": "shipping", "full_name": "Carol", "phone": "555", "address_line1": "1 Main St",
		"city": "Springfield", "state": "IL", "postal_code": "62701", "country": "US",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, order := doJSON(t, s, http.MethodPost, "/api/orders/orders/create/", access, map[string]any{
		"shipping_address_id": addr["id"], "billing_address_id": addr["id"], "payment_method": "upi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "43.98", order["subtotal"])
	assert.Equal(t, "5.00", order["shipping_cost"])
	assert.Equal(t, "7.92", order["tax"])
	assert.Equal(t, "56.90", order["total"])
	assert.Equal(t, "upi", order["payment_method"])
	assert.Equal(t, 0, s.CartQuantity(id))

	resp, body = doJSON(t, s, http.MethodPost, "/api/orders/orders/create/", access, map[string]any{
		"shipping_address_id": addr["id"], "billing_address_id": addr["id"], "payment_method": "upi",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cart is empty", body["error"])
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", money(0))
	assert.Equal(t, "19.99", money(1999))
	assert.Equal(t, "-0.05", money(-5))
}
