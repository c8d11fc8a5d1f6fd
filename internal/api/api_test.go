package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// capture records the last request seen by the test backend.
type capture struct {
	method string
	path   string
	query  string
	body   []byte
	ctype  string
}

func newTestAPI(t *testing.T, status int, respond any) (*Client, *capture) {
	t.Helper()
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.method = r.Method
		cap.path = r.URL.Path
		cap.query = r.URL.RawQuery
		cap.ctype = r.Header.Get("Content-Type")
		cap.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		if respond != nil {
			_ = json.NewEncoder(w).Encode(respond)
		}
	}))
	t.Cleanup(srv.Close)

	store := credstore.NewLayered(credstore.NewSessionLocation(), credstore.NewSessionLocation())
	s := session.New(session.Config{BaseURL: srv.URL, Creds: store, HTTPClient: srv.Client()})
	return New(s), cap
}

func TestAuthService_LoginShape(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, domain.TokenPair{AccessToken: "a", RefreshToken: "r"})

	pair, err := c.Auth.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cap.method != http.MethodPost || cap.path != "/api/auth/login" {
		t.Fatalf("request = %s %s", cap.method, cap.path)
	}
	var body map[string]string
	if err := json.Unmarshal(cap.body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["email"] != "a@b.com" || body["password"] != "secret1" {
		t.Fatalf("body = %v", body)
	}
	if !pair.Complete() {
		t.Fatalf("pair = %+v", pair)
	}
}

func TestTripsService_ListQuery(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, []domain.TripListItem{{ID: "t1"}})

	items, err := c.Trips.List(context.Background(), TripListParams{Search: "bali beach", Skip: 20, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if cap.path != "/api/trips" {
		t.Fatalf("path = %s", cap.path)
	}
	for _, want := range []string{"search=bali+beach", "skip=20", "limit=10"} {
		if !strings.Contains(cap.query, want) {
			t.Fatalf("query %q missing %q", cap.query, want)
		}
	}
	if len(items) != 1 || items[0].ID != "t1" {
		t.Fatalf("items = %+v", items)
	}
}

func TestTripsService_JoinRequestPaths(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, nil)

	if err := c.Trips.ApproveRequest(context.Background(), "trip1", "req9"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if cap.path != "/api/trips/trip1/requests/req9/approve" || cap.method != http.MethodPost {
		t.Fatalf("request = %s %s", cap.method, cap.path)
	}
}

func TestMessagesService_HistoryPathAndDefaults(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, domain.MessageList{Total: 2})

	list, err := c.Messages.History(context.Background(), "trip1", 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if cap.path != "/api/messages/trips/trip1" {
		t.Fatalf("path = %s", cap.path)
	}
	if cap.query != "skip=0&limit=50" {
		t.Fatalf("query = %s", cap.query)
	}
	if list.Total != 2 {
		t.Fatalf("list = %+v", list)
	}
}

func TestMessagesService_SendMarksConfirmed(t *testing.T) {
	c, _ := newTestAPI(t, http.StatusOK, domain.ChatMessage{ID: "msg_42", Content: "hi"})

	msg, err := c.Messages.Send(context.Background(), "trip1", "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Origin != domain.OriginConfirmed || msg.ID != "msg_42" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestUsersService_UploadAvatarIsMultipart(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, domain.UserProfile{ID: "u1"})

	p, err := c.Users.UploadAvatar(context.Background(), "me.png", strings.NewReader("pngbytes"))
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if p.ID != "u1" {
		t.Fatalf("profile = %+v", p)
	}
	mediatype, params, err := mime.ParseMediaType(cap.ctype)
	if err != nil || mediatype != "multipart/form-data" || params["boundary"] == "" {
		t.Fatalf("content type = %q (%v)", cap.ctype, err)
	}
	if !strings.Contains(string(cap.body), `name="file"; filename="me.png"`) {
		t.Fatalf("multipart body missing file part: %s", cap.body)
	}
}

func TestCalendarService_EventsOmitsZeroParams(t *testing.T) {
	c, cap := newTestAPI(t, http.StatusOK, []domain.CalendarEvent{})

	if _, err := c.Calendar.Events(context.Background(), 0, 0); err != nil {
		t.Fatalf("Events: %v", err)
	}
	if cap.query != "" {
		t.Fatalf("query = %q; want empty", cap.query)
	}
	if _, err := c.Calendar.Events(context.Background(), 9, 2026); err != nil {
		t.Fatalf("Events: %v", err)
	}
	if !strings.Contains(cap.query, "month=9") || !strings.Contains(cap.query, "year=2026") {
		t.Fatalf("query = %q", cap.query)
	}
}
