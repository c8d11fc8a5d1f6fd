// Package credstore implements durable and session-scoped storage for the
// access/refresh token pair. The durable location survives restarts (SQLite
// via GORM); the session location lives only as long as the process. A
// layered store reads the durable location first and falls back to the
// session one, so callers never need to know which location holds a live
// pair. The store performs no network I/O.
package credstore

import (
	"context"
	"sync"

	"github.com/howlhq/go-howl-client/internal/domain"
)

// Fixed, well-known names for the two stored credentials.
const (
	AccessTokenKey  = "howl_access_token"
	RefreshTokenKey = "howl_refresh_token"
)

// Location is a single physical credential location.
type Location interface {
	// Get returns the value stored under name, and whether it was present.
	Get(ctx context.Context, name string) (string, bool, error)

	// Set stores value under name, replacing any previous value.
	Set(ctx context.Context, name, value string) error

	// Delete removes the named entries. Missing entries are not an error.
	Delete(ctx context.Context, names ...string) error
}

// Store is the credential store consulted by the session client and the
// auth controller.
type Store interface {
	// Read returns the stored pair, with ok=false when neither location
	// holds a complete pair.
	Read(ctx context.Context) (pair domain.TokenPair, ok bool, err error)

	// Write replaces the stored pair in the durable location when durable
	// is true, otherwise in the session location. Writing to one location
	// does not clear the other; use Clear before switching modes.
	Write(ctx context.Context, pair domain.TokenPair, durable bool) error

	// Clear removes the pair from both locations.
	Clear(ctx context.Context) error

	// Mode reports which location currently holds the refresh token: true
	// for durable. The refresh cycle uses it to write the renewed pair
	// back where the consumed pair came from, so a session-only login
	// never leaks into durable storage. Defaults to durable when neither
	// location holds a refresh token.
	Mode(ctx context.Context) (durable bool, err error)
}

// SessionLocation is an in-memory Location scoped to the process lifetime.
type SessionLocation struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionLocation returns an empty in-memory location.
func NewSessionLocation() *SessionLocation {
	return &SessionLocation{values: make(map[string]string)}
}

// Get implements Location.
func (s *SessionLocation) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok && v != "", nil
}

// Set implements Location.
func (s *SessionLocation) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// Delete implements Location.
func (s *SessionLocation) Delete(_ context.Context, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		delete(s.values, n)
	}
	return nil
}

// Layered reads tokens from a durable location first, falling back to a
// session-scoped one, mirroring remember-me semantics: a "remembered"
// login writes durably, a plain login writes to the session location only.
type Layered struct {
	durable Location
	session Location
}

// NewLayered combines a durable and a session location into one Store.
func NewLayered(durable, session Location) *Layered {
	return &Layered{durable: durable, session: session}
}

// Read implements Store. Each token falls back independently, so a pair
// split across locations is still considered complete.
func (l *Layered) Read(ctx context.Context) (domain.TokenPair, bool, error) {
	access, err := l.get(ctx, AccessTokenKey)
	if err != nil {
		return domain.TokenPair{}, false, err
	}
	refresh, err := l.get(ctx, RefreshTokenKey)
	if err != nil {
		return domain.TokenPair{}, false, err
	}
	pair := domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	return pair, pair.Complete(), nil
}

// Write implements Store.
func (l *Layered) Write(ctx context.Context, pair domain.TokenPair, durable bool) error {
	loc := l.session
	if durable {
		loc = l.durable
	}
	if err := loc.Set(ctx, AccessTokenKey, pair.AccessToken); err != nil {
		return err
	}
	return loc.Set(ctx, RefreshTokenKey, pair.RefreshToken)
}

// Clear implements Store. Both locations are wiped so a stale pair cannot
// resurface after a later partial write.
func (l *Layered) Clear(ctx context.Context) error {
	if err := l.durable.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return err
	}
	return l.session.Delete(ctx, AccessTokenKey, RefreshTokenKey)
}

// Mode implements Store.
func (l *Layered) Mode(ctx context.Context) (bool, error) {
	if _, ok, err := l.durable.Get(ctx, RefreshTokenKey); err != nil || ok {
		return true, err
	}
	if _, ok, err := l.session.Get(ctx, RefreshTokenKey); err != nil {
		return true, err
	} else if ok {
		return false, nil
	}
	return true, nil
}

func (l *Layered) get(ctx context.Context, name string) (string, error) {
	if v, ok, err := l.durable.Get(ctx, name); err != nil || ok {
		return v, err
	}
	v, _, err := l.session.Get(ctx, name)
	return v, err
}
