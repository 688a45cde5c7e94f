package app

import (
	"context"
	"fmt"
	"time"

	"storefront-go/internal/cart"
	"storefront-go/internal/session"
	"storefront-go/internal/storage"
	"storefront-go/internal/users"
	"storefront-go/internal/worker"
)

//
// Authentication flows
//

// SignIn logs in with email and password, loads the profile and stores the
// session. The cart counter is reloaded afterwards.
func (a *Application) SignIn(ctx context.Context, email, password string) (*session.User, error) {
	pair, err := a.Users.Login(ctx, users.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	// The profile endpoint needs the new token, so the session is stored
	// first with a provisional user and patched once the profile arrives.
	creds := session.Credentials{AccessToken: pair.Access, RefreshToken: pair.Refresh}
	if err := a.Session.Establish(ctx, session.User{Email: email}, creds); err != nil {
		return nil, err
	}

	user, err := a.Users.Profile(ctx)
	if err != nil {
		if clearErr := a.Session.Clear(ctx); clearErr != nil {
			a.Logger.Error().Err(clearErr).Msg("Failed to clear session after profile error")
		}
		return nil, err
	}
	if err := a.Session.Patch(ctx, *user); err != nil {
		return nil, err
	}

	if _, err := a.Orders.ReloadCount(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load cart count")
	}

	a.Logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Signed in")
	return user, nil
}

// SignOut blacklists the refresh token on the server when possible, then
// clears the local session and the cart counter. Server errors are logged.
func (a *Application) SignOut(ctx context.Context) error {
	snap := a.Session.Snapshot()
	if snap.IsAuthenticated() && snap.Credentials.RefreshToken != "" {
		if err := a.Users.Logout(ctx, snap.Credentials.RefreshToken); err != nil {
			a.Logger.Warn().Err(err).Msg("Server logout failed")
		}
	}

	a.Counter.Reset()
	if err := a.Session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	a.Logger.Info().Msg("Signed out")
	return nil
}

//
// Account flows
//

// Overview is the signed-in landing data.
type Overview struct {
	User      *session.User   `json:"user"`
	Cart      *cart.Cart      `json:"cart"`
	Addresses []users.Address `json:"addresses"`
}

// Overview loads the profile, the cart and the saved addresses concurrently.
// The cart counter is set from the fetched cart.
func (a *Application) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	err := a.WithSession(ctx, func(ctx context.Context) error {
		return a.WorkerPool.Run(ctx,
			worker.Named("overview_profile", worker.TaskFunc(func(ctx context.Context) error {
				user, err := a.Users.Profile(ctx)
				out.User = user
				return err
			})),
			worker.Named("overview_cart", worker.TaskFunc(func(ctx context.Context) error {
				c, err := a.Orders.Cart(ctx)
				out.Cart = c
				return err
			})),
			worker.Named("overview_addresses", worker.TaskFunc(func(ctx context.Context) error {
				addrs, err := a.Users.Addresses(ctx)
				out.Addresses = addrs
				return err
			})),
		)
	})
	if err != nil {
		return nil, err
	}

	a.Counter.Set(cart.Count(*out.Cart))
	return &out, nil
}

//
// Diagnostics
//

// Status describes the local client state. It makes no API calls.
type Status struct {
	State         string                   `json:"state"`
	User          *session.User            `json:"user,omitempty"`
	AccessExpiry  *time.Time               `json:"access_expiry,omitempty"`
	StorageDriver string                   `json:"storage_driver"`
	Encrypted     bool                     `json:"encrypted"`
	Schema        *storage.MigrationStatus `json:"schema,omitempty"`
	Pool          worker.PoolStats         `json:"pool"`
}

// Status collects the session state, the storage schema version and the
// worker pool counters.
func (a *Application) Status(ctx context.Context) (*Status, error) {
	snap := a.Session.Snapshot()
	st := &Status{
		State:         snap.State.String(),
		User:          snap.User,
		StorageDriver: a.Config.Storage.Driver,
		Encrypted:     a.Config.Storage.EncryptionKey != "",
		Pool:          a.WorkerPool.Stats(),
	}
	if exp := snap.Credentials.AccessExpiry(); !exp.IsZero() {
		st.AccessExpiry = &exp
	}

	schema, ok, err := storage.SchemaStatus(ctx, a.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if ok {
		st.Schema = &schema
	}
	return st, nil
}
