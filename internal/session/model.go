package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Durable keys written by the store.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// User is the authenticated account profile.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	IsStaff   bool   `json:"is_staff"`
}

// Credentials is the access/refresh token pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// AccessExpiry decodes the exp claim of the access token without verifying
// its signature. It returns the zero time when the token is not a JWT or has
// no exp claim.
func (c Credentials) AccessExpiry() time.Time {
	if c.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// OAuth2Token converts the pair into a bearer token.
func (c Credentials) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.AccessExpiry(),
	}
}

// State is the lifecycle state of the session.
type State int

const (
	StateUninitialized State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State       State
	User        *User
	Credentials Credentials
}

// IsAuthenticated reports whether the snapshot holds a logged-in user.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}
