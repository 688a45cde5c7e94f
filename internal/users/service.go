// Package users wraps the account endpoints: login, registration, profile
// and saved addresses.
package users

import (
	"context"
	"fmt"
	"net/http"

	"storefront-go/internal/api"
	"storefront-go/internal/session"
)

// Service calls the account endpoints.
type Service struct {
	client *api.Client
}

// NewService creates a users service.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Login exchanges credentials for a token pair. It never goes through the
// refresh path: a 401 here means the credentials are wrong.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if err := api.ValidateRequest(req); err != nil {
		return nil, err
	}

	var pair TokenPair
	err := s.client.Do(ctx, &api.Request{
		Method:    http.MethodPost,
		Path:      "/api/users/login/",
		Body:      req,
		Anonymous: true,
	}, &pair)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, fmt.Errorf("login failed: incomplete token pair in response")
	}
	return &pair, nil
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*session.User, error) {
	if err := api.ValidateRequest(req); err != nil {
		return nil, err
	}

	var user session.User
	err := s.client.Do(ctx, &api.Request{
		Method:    http.MethodPost,
		Path:      "/api/users/register/",
		Body:      req,
		Anonymous: true,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return &user, nil
}

// Logout blacklists the refresh token on the server.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return fmt.Errorf("%w: refresh token is required", api.ErrInvalidInput)
	}
	if err := s.client.Post(ctx, "/api/users/logout/", logoutRequest{Refresh: refresh}, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// Profile returns the logged-in user.
func (s *Service) Profile(ctx context.Context) (*session.User, error) {
	var user session.User
	if err := s.client.Get(ctx, "/api/users/profile/", nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &user, nil
}

// UpdateProfile patches the logged-in user.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*session.User, error) {
	if err := api.ValidateRequest(update); err != nil {
		return nil, err
	}
	var user session.User
	if err := s.client.Patch(ctx, "/api/users/profile/", update, &user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &user, nil
}

// ChangePassword sets a new password.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := changePasswordRequest{
		OldPassword:  oldPassword,
		NewPassword:  newPassword,
		NewPassword2: newPassword,
	}
	if err := api.ValidateRequest(req); err != nil {
		return err
	}
	if err := s.client.Post(ctx, "/api/users/change-password/", req, nil); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token without going
// through the 401 handling.
func (s *Service) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	if refresh == "" {
		return nil, fmt.Errorf("%w: refresh token is required", api.ErrInvalidInput)
	}
	access, rotated, err := s.client.RefreshToken(ctx, refresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: rotated}, nil
}

// Addresses lists saved addresses.
func (s *Service) Addresses(ctx context.Context) ([]Address, error) {
	var page api.Page[Address]
	if err := s.client.Get(ctx, "/api/users/addresses/", nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return page.Results, nil
}

// CreateAddress saves a new address.
func (s *Service) CreateAddress(ctx context.Context, in AddressInput) (*Address, error) {
	if err := api.ValidateRequest(in); err != nil {
		return nil, err
	}
	var addr Address
	if err := s.client.Post(ctx, "/api/users/addresses/", in, &addr); err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return &addr, nil
}

// UpdateAddress patches an address.
func (s *Service) UpdateAddress(ctx context.Context, id int64, update AddressUpdate) (*Address, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: address id must be positive", api.ErrInvalidInput)
	}
	if err := api.ValidateRequest(update); err != nil {
		return nil, err
	}
	var addr Address
	if err := s.client.Patch(ctx, fmt.Sprintf("/api/users/addresses/%d/", id), update, &addr); err != nil {
		return nil, fmt.Errorf("failed to update address %d: %w", id, err)
	}
	return &addr, nil
}

// DeleteAddress removes an address.
func (s *Service) DeleteAddress(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: address id must be positive", api.ErrInvalidInput)
	}
	if err := s.client.Delete(ctx, fmt.Sprintf("/api/users/addresses/%d/", id), nil); err != nil {
		return fmt.Errorf("failed to delete address %d: %w", id, err)
	}
	return nil
}
