package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/domain"
)

func newTestStore(t *testing.T, pair domain.TokenPair, durable bool) credstore.Store {
	t.Helper()
	store := credstore.NewLayered(credstore.NewSessionLocation(), credstore.NewSessionLocation())
	if pair != (domain.TokenPair{}) {
		if err := store.Write(context.Background(), pair, durable); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}

func newTestClient(t *testing.T, srv *httptest.Server, store credstore.Store) *Client {
	t.Helper()
	return New(Config{
		BaseURL:        srv.URL,
		Creds:          store,
		HTTPClient:     srv.Client(),
		RequestTimeout: 5 * time.Second,
		RefreshTimeout: 5 * time.Second,
	})
}

func TestDo_AttachesBearerAndDecodes(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"hello": "world"})
	}))
	defer srv.Close()

	store := newTestStore(t, domain.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, true)
	c := newTestClient(t, srv, store)

	var out map[string]string
	if err := c.Get(context.Background(), "/api/x", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer acc" {
		t.Fatalf("Authorization = %q; want Bearer acc", gotAuth)
	}
	if out["hello"] != "world" {
		t.Fatalf("decoded %v", out)
	}
}

func TestDo_NoTokenMeansUnauthenticatedRequest(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{}, true))
	if err := c.Get(context.Background(), "/api/public", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization = %q; want none", gotAuth)
	}
}

func TestDo_APIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"already joined"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{AccessToken: "a", RefreshToken: "r"}, true))
	err := c.Post(context.Background(), "/api/trips/t1/join", nil, nil)

	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v; want *APIError", err)
	}
	if ae.Status != http.StatusConflict || ae.Message != "already joined" {
		t.Fatalf("APIError = %+v", ae)
	}
	if !IsStatus(err, http.StatusConflict) {
		t.Fatalf("IsStatus(409) = false")
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{}, true))
	err := c.Get(context.Background(), "/api/x", nil)

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v; want *NetworkError", err)
	}
}

func TestJSON_ProtocolErrorOnMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{}, true))
	var out map[string]any
	err := c.Get(context.Background(), "/api/x", &out)

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v; want *ProtocolError", err)
	}
}

// refreshBackend is a test backend whose protected endpoint rejects the
// old access token until a refresh has been performed.
type refreshBackend struct {
	mu           sync.Mutex
	refreshCalls int32
	refreshFail  bool
	oldAccess    string
	newAccess    string
	newRefresh   string
}

func (b *refreshBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		if b.refreshFail {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"refresh token expired"}`))
			return
		}
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.TokenPair{
			AccessToken:  b.newAccess,
			RefreshToken: b.newRefresh,
		})
	})
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+b.newAccess {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	return mux
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	backend := &refreshBackend{oldAccess: "old", newAccess: "new", newRefresh: "ref2"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := newTestStore(t, domain.TokenPair{AccessToken: "old", RefreshToken: "ref1"}, true)
	c := newTestClient(t, srv, store)

	var out map[string]bool
	if err := c.Get(context.Background(), "/api/protected", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !out["ok"] {
		t.Fatalf("decoded %v", out)
	}
	if n := atomic.LoadInt32(&backend.refreshCalls); n != 1 {
		t.Fatalf("refresh calls = %d; want 1", n)
	}
	pair, ok, _ := store.Read(context.Background())
	if !ok || pair.AccessToken != "new" || pair.RefreshToken != "ref2" {
		t.Fatalf("stored pair after refresh = %+v, ok=%v", pair, ok)
	}
}

func TestDo_ConcurrentExpiredRequestsCoalesceRefresh(t *testing.T) {
	backend := &refreshBackend{oldAccess: "old", newAccess: "new", newRefresh: "ref2"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := newTestStore(t, domain.TokenPair{AccessToken: "old", RefreshToken: "ref1"}, true)
	c := newTestClient(t, srv, store)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "/api/protected", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	// Concurrent requests may not all race into the 401 window at once;
	// the property is that refreshes never exceed one per expiry.
	if got := atomic.LoadInt32(&backend.refreshCalls); got != 1 {
		t.Fatalf("refresh calls = %d; want exactly 1", got)
	}
}

func TestDo_RefreshFailureTerminatesSession(t *testing.T) {
	backend := &refreshBackend{refreshFail: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	expiredCalls := 0
	store := newTestStore(t, domain.TokenPair{AccessToken: "old", RefreshToken: "ref1"}, true)
	c := New(Config{
		BaseURL:          srv.URL,
		Creds:            store,
		HTTPClient:       srv.Client(),
		OnSessionExpired: func() { expiredCalls++ },
	})

	err := c.Get(context.Background(), "/api/protected", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v; want ErrSessionExpired", err)
	}
	if expiredCalls != 1 {
		t.Fatalf("OnSessionExpired calls = %d; want 1", expiredCalls)
	}
	if _, ok, _ := store.Read(context.Background()); ok {
		t.Fatalf("credentials not cleared after failed refresh")
	}

	// Subsequent requests fail immediately, without touching the backend.
	before := atomic.LoadInt32(&backend.refreshCalls)
	if err := c.Get(context.Background(), "/api/protected", nil); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("second err = %v; want ErrSessionExpired", err)
	}
	if after := atomic.LoadInt32(&backend.refreshCalls); after != before {
		t.Fatalf("refresh attempted again after session expiry")
	}

	// A new login resets the client.
	_ = store.Write(context.Background(), domain.TokenPair{AccessToken: "new", RefreshToken: "ref2"}, true)
	c.Reset()
	backend.refreshFail = false
	backend.newAccess = "new"
	if err := c.Get(context.Background(), "/api/protected", nil); err != nil {
		t.Fatalf("after Reset: %v", err)
	}
}

func TestDo_401WithoutRefreshTokenIsPlainAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{}, true))
	err := c.Post(context.Background(), "/api/auth/login", map[string]string{"email": "a@b.com"}, nil)

	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("err = %v; want APIError 401", err)
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Fatalf("failed login must not terminate the session")
	}
	if c.Expired() {
		t.Fatalf("client marked expired by a public-endpoint 401")
	}
}

func TestDo_RetryFailureIsPropagatedWithoutSecondRefresh(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		_ = json.NewEncoder(w).Encode(domain.TokenPair{AccessToken: "new", RefreshToken: "ref2"})
	})
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		// Reject even the renewed token: the retry's 401 must surface as-is.
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, newTestStore(t, domain.TokenPair{AccessToken: "old", RefreshToken: "ref1"}, true))
	err := c.Get(context.Background(), "/api/protected", nil)

	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("err = %v; want APIError 401", err)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("refresh calls = %d; want 1", n)
	}
}

func TestRefresh_WritesBackToSessionLocation(t *testing.T) {
	backend := &refreshBackend{oldAccess: "old", newAccess: "new", newRefresh: "ref2"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	// Seed the session location only (a login without remember-me).
	store := newTestStore(t, domain.TokenPair{AccessToken: "old", RefreshToken: "ref1"}, false)
	c := newTestClient(t, srv, store)

	if err := c.Get(context.Background(), "/api/protected", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	durable, err := store.Mode(context.Background())
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if durable {
		t.Fatalf("renewed pair leaked into the durable location")
	}
}

func TestErrorDetail(t *testing.T) {
	if got := errorDetail([]byte(`{"detail":"boom"}`)); got != "boom" {
		t.Errorf("errorDetail = %q", got)
	}
	if got := errorDetail([]byte(`not json`)); got != "" {
		t.Errorf("errorDetail on junk = %q", got)
	}
	if got := errorDetail(nil); got != "" {
		t.Errorf("errorDetail(nil) = %q", got)
	}
}
