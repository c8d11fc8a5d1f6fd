package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/sysutil"
)

// refreshPath is the token-renewal endpoint, always called without a
// bearer credential.
const refreshPath = "/api/auth/refresh"

// Config carries the collaborators and tunables for a Client.
type Config struct {
	// BaseURL is the REST base URL without a trailing slash.
	BaseURL string
	// Creds is the credential store consulted on every request.
	Creds credstore.Store
	// HTTPClient overrides the transport; defaults to http.DefaultClient-like.
	HTTPClient *http.Client
	// RequestTimeout bounds each individual request attempt (default 15s).
	RequestTimeout time.Duration
	// RefreshTimeout bounds the refresh cycle (default 10s).
	RefreshTimeout time.Duration
	// OnSessionExpired is invoked once when a refresh fails and the
	// credentials have been cleared; the UI layer navigates to the
	// unauthenticated entry point here. May be nil.
	OnSessionExpired func()
}

// Client performs authenticated requests against the backend and
// transparently recovers from access-token expiry.
//
// Concurrency: any number of goroutines may call Do/JSON concurrently.
// Requests that observe a 401 while a refresh is already in flight await
// that same refresh rather than starting their own, so a burst of expired
// requests consumes the (single-use) refresh token exactly once.
type Client struct {
	baseURL          string
	httpc            *http.Client
	creds            credstore.Store
	requestTimeout   time.Duration
	refreshTimeout   time.Duration
	onSessionExpired func()
	logger           zerolog.Logger
	tracer           trace.Tracer

	mu       sync.Mutex
	inflight *refreshOp // shared pending refresh, nil when idle
	expired  bool       // set when a refresh failed; reset on new login
}

// refreshOp is the shared handle all waiters of one refresh cycle block on.
type refreshOp struct {
	done chan struct{}
	err  error
}

// New constructs a Client with defaults applied.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:          cfg.BaseURL,
		httpc:            cfg.HTTPClient,
		creds:            cfg.Creds,
		requestTimeout:   cfg.RequestTimeout,
		refreshTimeout:   cfg.RefreshTimeout,
		onSessionExpired: cfg.OnSessionExpired,
		logger:           log.With().Str("component", "session").Logger(),
		tracer:           otel.Tracer("github.com/howlhq/go-howl-client/internal/session"),
	}
}

// BaseURL returns the configured REST base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Reset clears the expired marker after a new login has stored fresh
// credentials. Without it, every request keeps failing with
// ErrSessionExpired.
func (c *Client) Reset() {
	c.mu.Lock()
	c.expired = false
	c.mu.Unlock()
}

// Expired reports whether the client is in the terminal expired state.
func (c *Client) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// OnSessionExpired registers the expiry callback after construction.
// The identity layer is built on top of this client, so it cannot pass
// the callback through Config; call this during wiring, before the
// client is shared across goroutines.
func (c *Client) OnSessionExpired(fn func()) {
	c.onSessionExpired = fn
}

// JSON performs an authenticated request with an optional JSON body and
// decodes the JSON response into out (skipped when out is nil).
func (c *Client) JSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = b
		contentType = "application/json"
	}
	raw, err := c.Do(ctx, method, path, contentType, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Err: err}
	}
	return nil
}

// Get is shorthand for JSON(ctx, GET, path, nil, out).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.JSON(ctx, http.MethodGet, path, nil, out)
}

// Post is shorthand for JSON(ctx, POST, path, body, out).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, http.MethodPost, path, body, out)
}

// Put is shorthand for JSON(ctx, PUT, path, body, out).
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, http.MethodPut, path, body, out)
}

// Delete is shorthand for JSON(ctx, DELETE, path, nil, out).
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.JSON(ctx, http.MethodDelete, path, nil, out)
}

// Multipart posts a pre-encoded multipart form (contentType carries the
// boundary) and decodes the JSON response into out. Content-type
// negotiation beyond that is left to the transport.
func (c *Client) Multipart(ctx context.Context, path, contentType string, form []byte, out any) error {
	raw, err := c.Do(ctx, http.MethodPost, path, contentType, form)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Err: err}
	}
	return nil
}

// Do performs one authenticated request. On a 401 it runs (or joins) a
// single refresh cycle and retries the original request exactly once;
// the retry's outcome is propagated as-is. All other non-2xx statuses
// map to *APIError, transport failures to *NetworkError.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body []byte) (json.RawMessage, error) {
	if c.Expired() {
		return nil, ErrSessionExpired
	}

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	defer span.End()

	status, raw, usedToken, err := c.attempt(ctx, method, path, contentType, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// A 401 without a stored refresh token is not an expired session,
	// just a rejected request (e.g. bad login on a public endpoint); it
	// falls through to the APIError mapping below.
	if status == http.StatusUnauthorized && c.hasRefreshToken(ctx) {
		if err := c.awaitRefresh(ctx, usedToken); err != nil {
			span.RecordError(err)
			return nil, err
		}
		status, raw, _, err = c.attempt(ctx, method, path, contentType, body)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status, Message: errorDetail(raw)}
		span.RecordError(apiErr)
		return nil, apiErr
	}
	return raw, nil
}

// attempt issues the request once with the current access token attached,
// returning the token it used so the caller can tell whether a later 401
// was observed against an already-replaced token.
func (c *Client) attempt(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, string, error) {
	rctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, "", fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	pair, ok, err := c.creds.Read(ctx)
	if err != nil {
		return 0, nil, "", fmt.Errorf("read credentials: %w", err)
	}
	// An absent token means an unauthenticated request, which is fine for
	// public endpoints; the backend decides.
	if ok {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	start := time.Now()
	httpInflight.Inc()
	resp, err := c.httpc.Do(req)
	httpInflight.Dec()
	if err != nil {
		observeRequest(method, 0, start)
		return 0, nil, "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observeRequest(method, resp.StatusCode, start)
		return 0, nil, "", &NetworkError{Err: err}
	}
	observeRequest(method, resp.StatusCode, start)

	c.logger.Debug().
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	return resp.StatusCode, raw, pair.AccessToken, nil
}

func (c *Client) hasRefreshToken(ctx context.Context) bool {
	pair, _, err := c.creds.Read(ctx)
	return err == nil && pair.RefreshToken != ""
}

// awaitRefresh coalesces concurrent refresh attempts: the first caller
// runs the cycle, everyone else blocks on the same pending handle and
// shares its outcome. usedToken is the access token the 401 was observed
// against; when the stored token has already moved past it, a completed
// refresh covered this request too and no new cycle is started.
func (c *Client) awaitRefresh(ctx context.Context, usedToken string) error {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return ErrSessionExpired
	}
	if op := c.inflight; op != nil {
		c.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return &NetworkError{Err: ctx.Err()}
		}
	}
	// The lock is held across this read so a finishing refresh cannot
	// slip between the check and the inflight claim.
	if pair, ok, err := c.creds.Read(ctx); err == nil && ok && pair.AccessToken != usedToken {
		c.mu.Unlock()
		return nil
	}
	op := &refreshOp{done: make(chan struct{})}
	c.inflight = op
	c.mu.Unlock()

	op.err = c.refresh()

	c.mu.Lock()
	c.inflight = nil
	if op.err != nil {
		c.expired = true
	}
	c.mu.Unlock()
	close(op.done)

	if op.err != nil && c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return op.err
}

// refresh runs one token-renewal cycle. On any failure the stored
// credentials are cleared and ErrSessionExpired is returned; the renewed
// pair otherwise replaces the stored one atomically, in the same location
// the consumed pair came from.
//
// The cycle runs on its own deadline, detached from the triggering
// request's context: its outcome is shared by every coalesced waiter.
func (c *Client) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	fail := func(cause error) error {
		if clearErr := c.creds.Clear(ctx); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("clearing credentials after failed refresh")
		}
		tokenRefreshes.WithLabelValues("failure").Inc()
		c.logger.Warn().Err(cause).Msg("token refresh failed, session terminated")
		return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
	}

	pair, ok, err := c.creds.Read(ctx)
	if err != nil {
		return fail(err)
	}
	if !ok || pair.RefreshToken == "" {
		return fail(ErrMissingRefreshToken)
	}
	durable, err := c.creds.Mode(ctx)
	if err != nil {
		return fail(err)
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": pair.RefreshToken})
	if err != nil {
		return fail(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(&APIError{Status: resp.StatusCode, Message: errorDetail(raw)})
	}

	var renewed domain.TokenPair
	if err := json.Unmarshal(raw, &renewed); err != nil {
		return fail(&ProtocolError{Err: err})
	}
	if !renewed.Complete() {
		return fail(&ProtocolError{Err: fmt.Errorf("refresh response missing tokens")})
	}

	if err := c.creds.Write(ctx, renewed, durable); err != nil {
		return fail(err)
	}
	tokenRefreshes.WithLabelValues("success").Inc()
	c.logger.Debug().
		Str("access_token", sysutil.MaskToken(renewed.AccessToken)).
		Bool("durable", durable).
		Msg("token pair renewed")
	return nil
}

// errorDetail extracts the backend's "detail" error field from a response
// body, returning "" when the body is not a well-formed error object.
func errorDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Detail
}
