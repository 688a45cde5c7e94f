package app

import (
	"context"
	"errors"

	"storefront-go/internal/session"
)

// ErrLoginRequired is returned by guarded operations when nobody is logged in.
var ErrLoginRequired = errors.New("login required")

// contextKey is a custom type to use as a key for context values.
type contextKey string

// userContextKey is the key for storing the logged-in user in a context.
const userContextKey = contextKey("user")

// RequireSession returns the logged-in user. An anonymous session is sent
// to the login path and gets ErrLoginRequired; a session that has not been
// hydrated yet gets session.ErrNotInitialized.
func (a *Application) RequireSession() (*session.User, error) {
	snap := a.Session.Snapshot()
	switch snap.State {
	case session.StateUninitialized:
		return nil, session.ErrNotInitialized
	case session.StateAuthenticated:
		if snap.User != nil {
			return snap.User, nil
		}
	}
	a.Redirects.Navigate(a.Config.LoginPath)
	return nil, ErrLoginRequired
}

// WithSession runs fn with the logged-in user in its context, or returns
// the RequireSession error without calling it.
func (a *Application) WithSession(ctx context.Context, fn func(ctx context.Context) error) error {
	user, err := a.RequireSession()
	if err != nil {
		return err
	}
	return fn(withUser(ctx, user))
}

// withUser adds the user to ctx.
func withUser(ctx context.Context, user *session.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user stored by WithSession.
func UserFromContext(ctx context.Context) (*session.User, bool) {
	user, ok := ctx.Value(userContextKey).(*session.User)
	return user, ok
}
