package api

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-go/internal/fakeapi"
	"storefront-go/internal/session"
)

func newProactiveClient(t *testing.T, ttl time.Duration) (*Client, *session.Store, *fakeapi.Server, *recordingNavigator) {
	t.Helper()
	srv := fakeapi.New(fakeapi.WithAccessTTL(ttl))
	t.Cleanup(srv.Close)

	store := session.NewStore(session.NewMemoryPersister(), zerolog.Nop())
	require.NoError(t, store.Initialize(context.Background()))

	id := srv.AddUser("bob", "bob@example.com", "password123")
	access, refresh := srv.IssueTokens(id)
	require.NoError(t, store.Establish(context.Background(),
		session.User{ID: id, Username: "bob", Email: "bob@example.com"},
		session.Credentials{AccessToken: access, RefreshToken: refresh}))

	nav := &recordingNavigator{}
	client, err := New(srv.URL, store, WithHTTPClient(srv.Client()), WithNavigator(nav))
	require.NoError(t, err)
	return client, store, srv, nav
}

func TestRefreshIfExpiring_FreshToken(t *testing.T) {
	client, store, srv, _ := newProactiveClient(t, 10*time.Minute)
	before := store.Credentials().AccessToken

	refreshed, err := client.RefreshIfExpiring(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, srv.RefreshCalls())
	assert.Equal(t, before, store.Credentials().AccessToken)
}

func TestRefreshIfExpiring_ExpiringToken(t *testing.T) {
	client, store, srv, nav := newProactiveClient(t, 30*time.Second)
	before := store.Credentials().AccessToken

	refreshed, err := client.RefreshIfExpiring(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, srv.RefreshCalls())
	assert.NotEqual(t, before, store.Credentials().AccessToken)
	assert.True(t, store.IsAuthenticated())
	assert.Empty(t, nav.visited())
	assert.False(t, client.Coordinator().InFlight())
}

func TestRefreshIfExpiring_Anonymous(t *testing.T) {
	client, store, srv, _ := newProactiveClient(t, 30*time.Second)
	require.NoError(t, store.Clear(context.Background()))

	refreshed, err := client.RefreshIfExpiring(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, srv.RefreshCalls())
}

func TestRefreshIfExpiring_ConcurrentCallersShareOneRefresh(t *testing.T) {
	client, _, srv, _ := newProactiveClient(t, 30*time.Second)
	const n = 5
	srv.OnRefresh(func() { waitForPending(client, n-1) })

	var (
		wg        sync.WaitGroup
		performed atomic.Int32
		errs      = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refreshed, err := client.RefreshIfExpiring(context.Background(), time.Minute)
			if refreshed {
				performed.Add(1)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), performed.Load())
	assert.Equal(t, 1, srv.RefreshCalls())
	assert.Equal(t, 0, client.Coordinator().Pending())
}

func TestRefreshIfExpiring_FailureEndsSession(t *testing.T) {
	client, store, srv, nav := newProactiveClient(t, 30*time.Second)
	srv.SetRefreshFailure(true)

	refreshed, err := client.RefreshIfExpiring(context.Background(), time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, refreshed)
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, []string{DefaultLoginPath}, nav.visited())
	assert.False(t, client.Coordinator().InFlight())
}
