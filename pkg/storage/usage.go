package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// UsageSnapshot is the cached token-usage summary shown on the tokens
// page while the API is unreachable.
type UsageSnapshot struct {
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit"`
	Plan        string    `json:"plan,omitempty"`
	RenewalDate time.Time `json:"renewalDate"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Remaining returns the unused allowance, never negative.
func (u UsageSnapshot) Remaining() int64 {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}

// Stale reports whether the renewal date has passed at now.
func (u UsageSnapshot) Stale(now time.Time) bool {
	return !now.Before(u.RenewalDate)
}

// SaveUsage stores a snapshot under KeyTokenUsage.
func SaveUsage(ctx context.Context, s Store, u UsageSnapshot) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyTokenUsage, raw)
}

// LoadUsage returns the cached snapshot and whether it is stale at now.
// ok is false when nothing is cached or the cached value is unreadable.
func LoadUsage(ctx context.Context, s Store, now time.Time) (u UsageSnapshot, stale, ok bool, err error) {
	raw, err := s.Get(ctx, KeyTokenUsage)
	if stderrors.Is(err, ErrNotFound) {
		return UsageSnapshot{}, false, false, nil
	}
	if err != nil {
		return UsageSnapshot{}, false, false, err
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return UsageSnapshot{}, false, false, fmt.Errorf("decode %s: %w", KeyTokenUsage, err)
	}
	return u, u.Stale(now), true, nil
}
