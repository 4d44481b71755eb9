// Package resource implements the ephemeral token store behind the plain
// HTTP fetch surface. A token is an unguessable pointer to a byte-stream
// locator, valid until its TTL elapses or the consumer reports delivery
// complete, whichever comes first.
package resource

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the token was never registered, already
	// completed, or already reaped.
	ErrNotFound = errors.New("resource not found")
	// ErrExpired means the token existed but its TTL has elapsed.
	ErrExpired = errors.New("resource expired")
)

type entry struct {
	locator   string
	createdAt time.Time
	expiresAt time.Time
}

// Store maps opaque tokens to resource locators with an expiry.
//
// Redemption is two-phase: Redeem returns the locator but leaves the entry
// in place so the token stays valid while bytes stream; Complete removes it
// once delivery finishes (however it finishes). Expired entries are removed
// lazily on lookup and by the periodic sweep.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time // clock override for tests
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  logger.With("component", "resource"),
	}
}

// Register mints a token for locator, redeemable for ttl.
func (s *Store) Register(locator string, ttl time.Duration) string {
	token := uuid.New().String()

	s.mu.Lock()
	now := s.now()
	s.entries[token] = entry{
		locator:   locator,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	s.mu.Unlock()

	s.logger.Debug("registered", "token", token, "ttl", ttl)
	return token
}

// Redeem resolves a token to its locator. The entry survives redemption;
// only Complete (or expiry) retires it. Expiry wins only when observed
// strictly after the deadline, so a redeem racing the deadline instant may
// still succeed.
func (s *Store) Redeem(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, token)
		return "", ErrExpired
	}
	return e.locator, nil
}

// Complete retires a token after delivery. Idempotent; safe to call
// whether the stream ended normally or with an I/O error.
func (s *Store) Complete(token string) {
	s.mu.Lock()
	_, ok := s.entries[token]
	delete(s.entries, token)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("completed", "token", token)
	}
}

// Len reports the number of live entries (including not-yet-reaped
// expired ones).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops every entry past its deadline.
func (s *Store) sweep() {
	s.mu.Lock()
	now := s.now()
	var reaped int
	for token, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, token)
			reaped++
		}
	}
	s.mu.Unlock()

	if reaped > 0 {
		s.logger.Debug("swept expired resources", "count", reaped)
	}
}

// RunSweeper runs the expiry sweep every interval until ctx is cancelled.
// Call it in a goroutine.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
