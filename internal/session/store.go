// Package session holds the authenticated identity of the client: the
// credential pair, the user profile and whether hydration has completed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"storefront-go/internal/notify"
)

var (
	ErrNotInitialized     = errors.New("session not initialized")
	ErrNoCredentials      = errors.New("no credentials")
	ErrNotAuthenticated   = errors.New("session not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the single source of truth for who is logged in. All mutations go
// through the store and are persisted before they become visible.
type Store struct {
	mu        sync.RWMutex
	persister Persister
	logger    zerolog.Logger
	state     State
	user      *User
	creds     Credentials
	updates   notify.Broadcaster[Snapshot]
}

// NewStore creates an uninitialized store. Call Initialize before reading it.
func NewStore(persister Persister, logger zerolog.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

var _ oauth2.TokenSource = (*Store)(nil)

// Initialize hydrates the store from the persister. The session becomes
// authenticated only when an access token and a decodable user are both
// stored; anything else leaves it anonymous. Calling it again is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return nil
	}

	values, err := s.persister.Load(ctx)
	if err != nil {
		s.state = StateAnonymous
		s.publishLocked()
		return fmt.Errorf("failed to load session: %w", err)
	}

	access := string(values[KeyAccessToken])
	rawUser := values[KeyUser]
	if access == "" || len(rawUser) == 0 {
		s.state = StateAnonymous
		s.publishLocked()
		s.logger.Debug().Msg("No stored session")
		return nil
	}

	var user User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		s.state = StateAnonymous
		s.publishLocked()
		s.logger.Warn().Err(err).Msg("Discarding undecodable stored user")
		return nil
	}

	s.user = &user
	s.creds = Credentials{
		AccessToken:  access,
		RefreshToken: string(values[KeyRefreshToken]),
	}
	s.state = StateAuthenticated
	s.publishLocked()
	s.logger.Debug().Str("username", user.Username).Msg("Session restored")
	return nil
}

// Establish persists a fresh login and marks the session authenticated.
func (s *Store) Establish(ctx context.Context, user User, creds Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("%w: access and refresh tokens are required", ErrInvalidCredentials)
	}

	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.persister.Save(ctx, map[string][]byte{
		KeyAccessToken:  []byte(creds.AccessToken),
		KeyRefreshToken: []byte(creds.RefreshToken),
		KeyUser:         rawUser,
	})
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.user = &user
	s.creds = creds
	s.state = StateAuthenticated
	s.publishLocked()
	s.logger.Info().Str("username", user.Username).Msg("Session established")
	return nil
}

// Clear logs the session out. Memory is cleared even when removing the
// durable keys fails; the persistence error is still returned. Before
// Initialize the stored session is left untouched and ErrNotInitialized is
// returned.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return ErrNotInitialized
	}

	wasAuthenticated := s.state == StateAuthenticated
	s.user = nil
	s.creds = Credentials{}
	s.state = StateAnonymous
	s.publishLocked()

	if err := s.persister.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	if wasAuthenticated {
		s.logger.Info().Msg("Session cleared")
	}
	return nil
}

// Patch replaces the stored user profile and leaves the credentials alone.
func (s *Store) Patch(ctx context.Context, user User) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if err := s.persister.Save(ctx, map[string][]byte{KeyUser: rawUser}); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	s.user = &user
	s.publishLocked()
	return nil
}

// SetAccessToken stores a refreshed access token. An empty refresh keeps the
// current refresh token. It fails if the session was cleared meanwhile, so a
// late refresh cannot resurrect a logged-out session.
func (s *Store) SetAccessToken(ctx context.Context, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("%w: access token is required", ErrInvalidCredentials)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return ErrNotAuthenticated
	}

	values := map[string][]byte{KeyAccessToken: []byte(access)}
	if refresh != "" {
		values[KeyRefreshToken] = []byte(refresh)
	}
	if err := s.persister.Save(ctx, values); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}

	s.creds.AccessToken = access
	if refresh != "" {
		s.creds.RefreshToken = refresh
	}
	s.publishLocked()
	return nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns a copy of the logged-in user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Credentials returns the current token pair.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// IsAuthenticated reports whether a user is logged in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == StateUninitialized {
		return nil, ErrNotInitialized
	}
	if s.creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return s.creds.OAuth2Token(), nil
}

// Subscribe returns a channel that receives a snapshot after every mutation.
// Slow subscribers only see the latest snapshot.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	return s.updates.Subscribe()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Credentials: s.creds}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) publishLocked() {
	s.updates.Publish(s.snapshotLocked())
}
