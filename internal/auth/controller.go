// Package auth owns the client's identity state: a small state machine
// that starts pending and resolves to authenticated or anonymous, with
// explicit transitions for login, register, logout, and the
// redirect-carried credential exchange.
//
// Profile mutations never merge optimistically: every mutation replaces
// the in-memory profile with the server's authoritative response.
// Correctness matters more than latency here, in contrast with chat.
package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// ErrInvalidCredentials is returned by Login and Register when the
// backend rejects the submitted credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Status is the session state derived from stored credentials and the
// profile fetch. It is never persisted.
type Status int

const (
	// StatusPending is the initial state before bootstrap resolves.
	StatusPending Status = iota
	// StatusAuthenticated means a profile was fetched with a live token.
	StatusAuthenticated
	// StatusAnonymous means no live credentials exist.
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "pending"
	}
}

// credentialAPI is the slice of the REST surface issuing token pairs.
type credentialAPI interface {
	Login(ctx context.Context, email, password string) (domain.TokenPair, error)
	Register(ctx context.Context, email, password, displayName string) (domain.TokenPair, error)
}

// profileAPI is the slice of the REST surface owning the user profile.
type profileAPI interface {
	GetProfile(ctx context.Context) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.UserProfile, error)
	CompleteOnboarding(ctx context.Context, data domain.OnboardingData) (domain.UserProfile, error)
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (domain.UserProfile, error)
}

// Controller drives the identity state machine. All methods are safe for
// concurrent use; state transitions happen only on success, so a failed
// operation leaves prior state untouched.
type Controller struct {
	sess   *session.Client
	creds  credstore.Store
	auth   credentialAPI
	users  profileAPI
	logger zerolog.Logger

	mu      sync.Mutex
	status  Status
	profile *domain.UserProfile
}

// NewController wires the controller to its collaborators. The initial
// status is pending until Bootstrap runs.
func NewController(sess *session.Client, creds credstore.Store, authAPI credentialAPI, users profileAPI) *Controller {
	return &Controller{
		sess:   sess,
		creds:  creds,
		auth:   authAPI,
		users:  users,
		status: StatusPending,
		logger: log.With().Str("component", "auth").Logger(),
	}
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Profile returns a copy of the current profile and whether one is set.
func (c *Controller) Profile() (domain.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return domain.UserProfile{}, false
	}
	return *c.profile, true
}

// IsAuthenticated reports whether the session resolved to authenticated.
func (c *Controller) IsAuthenticated() bool { return c.Status() == StatusAuthenticated }

// NeedsOnboarding reports whether the authenticated user still has to
// complete first-run onboarding; the UI routes there instead of the home
// feed while this holds.
func (c *Controller) NeedsOnboarding() bool {
	p, ok := c.Profile()
	return ok && !p.OnboardingCompleted
}

// Bootstrap resolves the initial pending state: with a stored token it
// fetches the profile, clearing credentials when that fails; without one
// it settles on anonymous immediately.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if _, ok, err := c.creds.Read(ctx); err != nil || !ok {
		c.setAnonymous()
		return err
	}
	profile, err := c.users.GetProfile(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("stored credentials rejected, starting anonymous")
		if clearErr := c.creds.Clear(ctx); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("clearing stale credentials")
		}
		c.setAnonymous()
		return nil
	}
	c.setAuthenticated(profile)
	return nil
}

// Login exchanges credentials for a token pair, persists it (durably when
// remember is set), and fetches the profile. State is unchanged on
// failure.
func (c *Controller) Login(ctx context.Context, email, password string, remember bool) error {
	pair, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return mapCredentialError(err)
	}
	return c.adopt(ctx, pair, remember)
}

// Register creates an account; the created account is immediately
// authenticated, so the flow matches Login from the token pair onward.
func (c *Controller) Register(ctx context.Context, email, password, displayName string, remember bool) error {
	pair, err := c.auth.Register(ctx, email, password, displayName)
	if err != nil {
		return mapCredentialError(err)
	}
	return c.adopt(ctx, pair, remember)
}

// Logout clears both credential locations and transitions to anonymous.
// It is unconditional: no network call is made and no failure blocks it.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.creds.Clear(ctx); err != nil {
		c.logger.Error().Err(err).Msg("clearing credentials on logout")
	}
	c.sess.Reset()
	c.setAnonymous()
}

// CompleteOnboarding submits onboarding data and replaces the profile
// with the server's response.
func (c *Controller) CompleteOnboarding(ctx context.Context, data domain.OnboardingData) error {
	profile, err := c.users.CompleteOnboarding(ctx, data)
	if err != nil {
		return err
	}
	c.setAuthenticated(profile)
	return nil
}

// UpdateProfile applies a partial update and replaces the profile with
// the server's response.
func (c *Controller) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) error {
	profile, err := c.users.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	c.setAuthenticated(profile)
	return nil
}

// UploadAvatar uploads a new avatar and replaces the profile with the
// server's response.
func (c *Controller) UploadAvatar(ctx context.Context, filename string, r io.Reader) error {
	profile, err := c.users.UploadAvatar(ctx, filename, r)
	if err != nil {
		return err
	}
	c.setAuthenticated(profile)
	return nil
}

// RefreshUser re-fetches the profile, keeping the previous one on error.
func (c *Controller) RefreshUser(ctx context.Context) {
	profile, err := c.users.GetProfile(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("profile refresh failed")
		return
	}
	c.setAuthenticated(profile)
}

// ExchangeRedirect inspects an inbound address for externally-issued
// credentials (e.g. an OAuth callback carrying access_token and
// refresh_token query parameters). When both are present it persists
// them durably, authenticates, and returns the address with the token
// parameters stripped. Otherwise the address is returned unchanged.
func (c *Controller) ExchangeRedirect(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	q := u.Query()
	access, refresh := q.Get("access_token"), q.Get("refresh_token")
	if access == "" || refresh == "" {
		return rawURL, nil
	}

	q.Del("access_token")
	q.Del("refresh_token")
	u.RawQuery = q.Encode()

	pair := domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	if err := c.adopt(ctx, pair, true); err != nil {
		return u.String(), err
	}
	return u.String(), nil
}

// HandleSessionExpired flips the state machine to anonymous. It is wired
// into the session client's expiry callback so a failed refresh is
// reflected in identity state before the UI redirects.
func (c *Controller) HandleSessionExpired() {
	c.logger.Info().Msg("session expired")
	c.setAnonymous()
}

// adopt persists a freshly-issued pair and completes the login
// transition by fetching the profile.
func (c *Controller) adopt(ctx context.Context, pair domain.TokenPair, remember bool) error {
	// Clear first so the pair lives in exactly one location.
	if err := c.creds.Clear(ctx); err != nil {
		return err
	}
	if err := c.creds.Write(ctx, pair, remember); err != nil {
		return err
	}
	c.sess.Reset()

	profile, err := c.users.GetProfile(ctx)
	if err != nil {
		return err
	}
	c.setAuthenticated(profile)
	return nil
}

func (c *Controller) setAuthenticated(profile domain.UserProfile) {
	c.mu.Lock()
	c.status = StatusAuthenticated
	c.profile = &profile
	c.mu.Unlock()
}

func (c *Controller) setAnonymous() {
	c.mu.Lock()
	c.status = StatusAnonymous
	c.profile = nil
	c.mu.Unlock()
}

// mapCredentialError converts a backend rejection of submitted
// credentials into ErrInvalidCredentials; transport failures pass
// through untouched.
func mapCredentialError(err error) error {
	if session.IsStatus(err, http.StatusUnauthorized) ||
		session.IsStatus(err, http.StatusBadRequest) ||
		session.IsStatus(err, http.StatusUnprocessableEntity) {
		return ErrInvalidCredentials
	}
	return err
}
