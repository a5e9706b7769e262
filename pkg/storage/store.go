// Package storage persists the small amount of client state the dashboard
// keeps between sessions: the auth token pair and a cached token-usage
// snapshot.
//
// Backends implement Store. Memory is process-local, File keeps one JSON
// document, SQLite keeps a kv table and S3 keeps one object per key.
package storage

import (
	"context"
	stderrors "errors"
	"strings"
)

// Fixed keys.
const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenUsage   = "token_usage"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = stderrors.New("storage: key not found")

// Store is a small key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Tokens is the persisted credential pair.
type Tokens struct {
	Access  string
	Refresh string
}

// LoadTokens reads the credential pair. Missing keys yield empty fields.
func LoadTokens(ctx context.Context, s Store) (Tokens, error) {
	var t Tokens
	for key, dst := range map[string]*string{KeyAuthToken: &t.Access, KeyRefreshToken: &t.Refresh} {
		v, err := s.Get(ctx, key)
		if stderrors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Tokens{}, err
		}
		*dst = strings.TrimSpace(string(v))
	}
	return t, nil
}

// SaveTokens writes the credential pair. An empty refresh token leaves
// the stored one untouched.
func SaveTokens(ctx context.Context, s Store, t Tokens) error {
	if err := s.Set(ctx, KeyAuthToken, []byte(t.Access)); err != nil {
		return err
	}
	if t.Refresh == "" {
		return nil
	}
	return s.Set(ctx, KeyRefreshToken, []byte(t.Refresh))
}

// ClearTokens removes both tokens.
func ClearTokens(ctx context.Context, s Store) error {
	return stderrors.Join(
		s.Delete(ctx, KeyAuthToken),
		s.Delete(ctx, KeyRefreshToken),
	)
}
