// Package api provides typed wrappers over the backend's REST surface.
// Each service maps one endpoint group; all of them share one session
// client, so bearer attachment and token renewal are uniform.
package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/howlhq/go-howl-client/internal/session"
)

// Client bundles the per-endpoint-group services.
type Client struct {
	Auth     *AuthService
	Users    *UsersService
	Trips    *TripsService
	Groups   *GroupsService
	Messages *MessagesService
	Calendar *CalendarService
	Uploads  *UploadsService
}

// New builds the full REST surface on top of a session client.
func New(s *session.Client) *Client {
	return &Client{
		Auth:     &AuthService{s: s},
		Users:    &UsersService{s: s},
		Trips:    &TripsService{s: s},
		Groups:   &GroupsService{s: s},
		Messages: &MessagesService{s: s},
		Calendar: &CalendarService{s: s},
		Uploads:  &UploadsService{s: s},
	}
}

// encodeFileForm builds a single-file multipart form under the "file"
// field, returning the body and its content type (with boundary).
func encodeFileForm(filename string, r io.Reader) (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", nil, err
	}
	if err := w.Close(); err != nil {
		return "", nil, err
	}
	return w.FormDataContentType(), buf.Bytes(), nil
}

// query renders non-zero params as a query-string suffix ("" when empty).
func query(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		if val != "" {
			v.Set(k, val)
		}
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
