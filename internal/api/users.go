package api

import (
	"context"
	"io"
	"net/url"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// UsersService wraps the profile endpoints. Every mutation returns the
// server's authoritative profile, which callers store wholesale.
type UsersService struct {
	s *session.Client
}

// GetProfile fetches the authenticated user's profile.
func (u *UsersService) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := u.s.Get(ctx, "/api/users/me", &p)
	return p, err
}

// UpdateProfile applies a partial profile update and returns the full
// updated profile.
func (u *UsersService) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := u.s.Put(ctx, "/api/users/me", upd, &p)
	return p, err
}

// CompleteOnboarding submits the first-run onboarding data.
func (u *UsersService) CompleteOnboarding(ctx context.Context, data domain.OnboardingData) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := u.s.Post(ctx, "/api/users/me/onboarding", data, &p)
	return p, err
}

// UploadAvatar uploads an avatar image as multipart form data.
func (u *UsersService) UploadAvatar(ctx context.Context, filename string, r io.Reader) (domain.UserProfile, error) {
	var p domain.UserProfile
	contentType, form, err := encodeFileForm(filename, r)
	if err != nil {
		return p, err
	}
	err = u.s.Multipart(ctx, "/api/users/me/avatar", contentType, form, &p)
	return p, err
}

// MyTrips returns the user's trips bucketed by status. The status filter
// is optional.
func (u *UsersService) MyTrips(ctx context.Context, status string) (domain.TripJournal, error) {
	var j domain.TripJournal
	path := "/api/users/me/trips"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	err := u.s.Get(ctx, path, &j)
	return j, err
}
