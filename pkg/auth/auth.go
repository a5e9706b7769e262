package auth

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/pkg/apiclient"
)

// DefaultMeEndpoint returns the current user.
const DefaultMeEndpoint = "/auth/me"

// ErrUnauthorized is returned when authentication is required but not present.
var ErrUnauthorized = stderrors.New("unauthorized: authentication required")

// ErrForbidden is returned when authentication is present but insufficient.
var ErrForbidden = stderrors.New("forbidden: insufficient permissions")

// User is the signed-in account as reported by the API.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Plan    string `json:"plan"`
	IsAdmin bool   `json:"isAdmin"`
}

// Admin reports whether the user has the admin flag or role.
func (u User) Admin() bool {
	return u.IsAdmin || u.Role == "admin"
}

// Session holds the current user. It is safe for concurrent use.
type Session struct {
	api      *apiclient.Client
	endpoint string
	logger   *slog.Logger

	mu     sync.RWMutex
	user   User
	loaded bool
}

// NewSession creates an empty session backed by api. The current user
// is read from the endpoint configured as "me".
func NewSession(api *apiclient.Client) *Session {
	endpoint := DefaultMeEndpoint
	if api != nil {
		if path, err := api.EndpointFor(config.EndpointMe, nil); err == nil {
			endpoint = path
		}
	}
	return &Session{
		api:      api,
		endpoint: endpoint,
		logger:   slog.Default().With("component", "auth"),
	}
}

// Load fetches the current user. Without a stored token it returns
// ErrUnauthorized without calling the API; a 401 from the API clears the
// session and also returns ErrUnauthorized.
func (s *Session) Load(ctx context.Context) (User, error) {
	if s.api == nil || !s.api.Authenticated(ctx) {
		s.Clear()
		return User{}, ErrUnauthorized
	}

	payload, err := s.api.Get(ctx, s.endpoint, apiclient.NoCache())
	if err != nil {
		var herr *apiclient.HTTPError
		if errors.Is(err, errors.CategoryHTTP) || (stderrors.As(err, &herr) && herr.Status == http.StatusUnauthorized) {
			s.Clear()
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}

	// Some deployments wrap the user as {"user": {...}}.
	if m, ok := payload.(map[string]any); ok {
		if inner, ok := m["user"].(map[string]any); ok {
			payload = inner
		}
	}
	user, err := apiclient.Decode[User](payload)
	if err != nil {
		return User{}, err
	}
	s.Set(user)
	s.logger.Info("session loaded", "user", user.ID, "admin", user.Admin())
	return user, nil
}

// Set stores the authenticated user.
func (s *Session) Set(user User) {
	s.mu.Lock()
	s.user = user
	s.loaded = true
	s.mu.Unlock()
}

// Clear forgets the user.
func (s *Session) Clear() {
	s.mu.Lock()
	s.user = User{}
	s.loaded = false
	s.mu.Unlock()
}

// User returns the current user, if one is loaded.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.loaded
}

// Authenticated reports whether a token is stored and a user is loaded.
func (s *Session) Authenticated(ctx context.Context) bool {
	if _, ok := s.User(); !ok {
		return false
	}
	return s.api == nil || s.api.Authenticated(ctx)
}

// IsAdmin reports whether the loaded user is an admin.
func (s *Session) IsAdmin() bool {
	u, ok := s.User()
	return ok && u.Admin()
}

// Require returns the loaded user or ErrUnauthorized.
func (s *Session) Require(ctx context.Context) (User, error) {
	if !s.Authenticated(ctx) {
		return User{}, ErrUnauthorized
	}
	u, _ := s.User()
	return u, nil
}

// Logout clears the API credentials and the session.
func (s *Session) Logout(ctx context.Context, endpoint string) error {
	s.Clear()
	if s.api == nil {
		return nil
	}
	return s.api.Logout(ctx, endpoint)
}

// StatusCode returns the HTTP status code for an auth error.
func StatusCode(err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case stderrors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	default:
		return 0, false
	}
}

// IsAuthError returns true if err is an authentication or authorization error.
func IsAuthError(err error) bool {
	return stderrors.Is(err, ErrUnauthorized) || stderrors.Is(err, ErrForbidden)
}
