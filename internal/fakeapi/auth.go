package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type userJSON struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Phone       string  `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
	IsStaff     bool    `json:"is_staff"`
}

type account struct {
	user     userJSON
	password string
}

type tokenClaims struct {
	TokenType  string `json:"token_type"`
	UserID     int64  `json:"user_id"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

var errTokenInvalid = errors.New("token is invalid or expired")

// AddUser creates an account and returns its id.
func (s *Server) AddUser(username, email, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(userJSON{Username: username, Email: email, FirstName: username}, password)
}

func (s *Server) addUserLocked(u userJSON, password string) int64 {
	u.ID = s.newIDLocked()
	s.accounts[u.ID] = &account{user: u, password: password}
	return u.ID
}

// IssueTokens returns a fresh access/refresh pair for userID, as login would.
func (s *Server) IssueTokens(userID int64) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(userID, tokenTypeAccess, s.accessTTL), s.mintLocked(userID, tokenTypeRefresh, s.refreshTTL)
}

func (s *Server) mintLocked(userID int64, tokenType string, ttl time.Duration) string {
	now := s.now()
	claims := tokenClaims{
		TokenType:  tokenType,
		UserID:     userID,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: signing token: %v", err))
	}
	return signed
}

func (s *Server) parseLocked(raw, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	if claims.TokenType != tokenType {
		return nil, errTokenInvalid
	}
	if tokenType == tokenTypeAccess && claims.Generation != s.generation {
		return nil, errTokenInvalid
	}
	if tokenType == tokenTypeRefresh && s.blacklist[claims.ID] {
		return nil, errTokenInvalid
	}
	if _, ok := s.accounts[claims.UserID]; !ok {
		return nil, errTokenInvalid
	}
	return claims, nil
}

type authedHandler func(w http.ResponseWriter, r *http.Request, acct *account)

// authenticated rejects requests without a valid access token.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			s.rejected.Add(1)
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		s.mu.Lock()
		claims, err := s.parseLocked(raw, tokenTypeAccess)
		var acct *account
		if err == nil {
			acct = s.accounts[claims.UserID]
		}
		s.mu.Unlock()

		if err != nil {
			s.rejected.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r, acct)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Password2 string `json:"password2"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	fields := map[string][]string{}
	for name, value := range map[string]string{
		"username": req.Username, "email": req.Email, "password": req.Password,
		"password2": req.Password2, "first_name": req.FirstName, "last_name": req.LastName,
	} {
		if value == "" {
			fields[name] = []string{"This field is required."}
		}
	}
	if req.Password != req.Password2 {
		fields["password"] = []string{"Password fields didn't match."}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if strings.EqualFold(acct.user.Username, req.Username) {
			fields["username"] = []string{"A user with that username already exists."}
		}
		if strings.EqualFold(acct.user.Email, req.Email) {
			fields["email"] = []string{"user with this email already exists."}
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	id := s.addUserLocked(userJSON{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, req.Password)
	writeJSON(w, http.StatusCreated, s.accounts[id].user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if strings.EqualFold(acct.user.Email, req.Email) && acct.password == req.Password {
			writeJSON(w, http.StatusOK, map[string]string{
				"access":  s.mintLocked(acct.user.ID, tokenTypeAccess, s.accessTTL),
				"refresh": s.mintLocked(acct.user.ID, tokenTypeRefresh, s.refreshTTL),
			})
			return
		}
	}
	writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.mu.Lock()
	hook := s.refreshHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeFieldErrors(w, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	claims, err := s.parseLocked(req.Refresh, tokenTypeRefresh)
	if err != nil || s.refreshFails {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	resp := map[string]string{"access": s.mintLocked(claims.UserID, tokenTypeAccess, s.accessTTL)}
	if s.rotateRefresh {
		s.blacklist[claims.ID] = true
		resp["refresh"] = s.mintLocked(claims.UserID, tokenTypeRefresh, s.refreshTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	claims, err := s.parseLocked(req.Refresh, tokenTypeRefresh)
	if err != nil || claims.UserID != acct.user.ID {
		writeError(w, http.StatusBadRequest, "Invalid token")
		return
	}
	s.blacklist[claims.ID] = true
	writeDetail(w, http.StatusOK, "Successfully logged out.")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		Phone       *string `json:"phone"`
		DateOfBirth *string `json:"date_of_birth"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.FirstName != nil {
		acct.user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		acct.user.LastName = *req.LastName
	}
	if req.Phone != nil {
		acct.user.Phone = *req.Phone
	}
	if req.DateOfBirth != nil {
		if _, err := time.Parse(time.DateOnly, *req.DateOfBirth); err != nil {
			writeFieldErrors(w, map[string][]string{"date_of_birth": {"Date has wrong format."}})
			return
		}
		dob := *req.DateOfBirth
		acct.user.DateOfBirth = &dob
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		OldPassword  string `json:"old_password"`
		NewPassword  string `json:"new_password"`
		NewPassword2 string `json:"new_password2"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.OldPassword != acct.password {
		writeFieldErrors(w, map[string][]string{"old_password": {"Wrong password."}})
		return
	}
	if req.NewPassword != req.NewPassword2 {
		writeFieldErrors(w, map[string][]string{"new_password": {"Password fields didn't match."}})
		return
	}
	acct.password = req.NewPassword
	writeDetail(w, http.StatusOK, "Password updated successfully")
}
