package api

import (
	"context"
	"net/url"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// TripsService wraps trip browsing, lifecycle, and membership endpoints.
type TripsService struct {
	s *session.Client
}

// TripListParams filters and pages the trip list.
type TripListParams struct {
	Search string
	Skip   int
	Limit  int
}

// List returns trips matching the given filters.
func (t *TripsService) List(ctx context.Context, params TripListParams) ([]domain.TripListItem, error) {
	var items []domain.TripListItem
	q := query(map[string]string{
		"search": params.Search,
		"skip":   itoa(params.Skip),
		"limit":  itoa(params.Limit),
	})
	err := t.s.Get(ctx, "/api/trips"+q, &items)
	return items, err
}

// Get fetches one trip by id.
func (t *TripsService) Get(ctx context.Context, id string) (domain.TripDetail, error) {
	var d domain.TripDetail
	err := t.s.Get(ctx, "/api/trips/"+url.PathEscape(id), &d)
	return d, err
}

// Create creates a trip owned by the current user.
func (t *TripsService) Create(ctx context.Context, data domain.TripCreate) (domain.TripDetail, error) {
	var d domain.TripDetail
	err := t.s.Post(ctx, "/api/trips", data, &d)
	return d, err
}

// Update modifies a trip the current user leads.
func (t *TripsService) Update(ctx context.Context, id string, data domain.TripCreate) (domain.TripDetail, error) {
	var d domain.TripDetail
	err := t.s.Put(ctx, "/api/trips/"+url.PathEscape(id), data, &d)
	return d, err
}

// Delete removes a trip the current user leads.
func (t *TripsService) Delete(ctx context.Context, id string) error {
	return t.s.Delete(ctx, "/api/trips/"+url.PathEscape(id), nil)
}

// Join requests (or gains) membership of a trip.
func (t *TripsService) Join(ctx context.Context, id string) (domain.JoinResult, error) {
	var res domain.JoinResult
	err := t.s.Post(ctx, "/api/trips/"+url.PathEscape(id)+"/join", nil, &res)
	return res, err
}

// JoinRequests lists pending join requests for a trip the user leads.
func (t *TripsService) JoinRequests(ctx context.Context, id string) ([]domain.JoinRequest, error) {
	var reqs []domain.JoinRequest
	err := t.s.Get(ctx, "/api/trips/"+url.PathEscape(id)+"/requests", &reqs)
	return reqs, err
}

// ApproveRequest accepts a pending join request.
func (t *TripsService) ApproveRequest(ctx context.Context, tripID, requestID string) error {
	return t.s.Post(ctx, "/api/trips/"+url.PathEscape(tripID)+"/requests/"+url.PathEscape(requestID)+"/approve", nil, nil)
}

// RejectRequest declines a pending join request.
func (t *TripsService) RejectRequest(ctx context.Context, tripID, requestID string) error {
	return t.s.Post(ctx, "/api/trips/"+url.PathEscape(tripID)+"/requests/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

// Members lists a trip's participants.
func (t *TripsService) Members(ctx context.Context, id string) ([]domain.Member, error) {
	var members []domain.Member
	err := t.s.Get(ctx, "/api/trips/"+url.PathEscape(id)+"/members", &members)
	return members, err
}

// SearchSimilar finds trips to a comparable destination.
func (t *TripsService) SearchSimilar(ctx context.Context, destination string) ([]domain.SimilarTrip, error) {
	var trips []domain.SimilarTrip
	err := t.s.Get(ctx, "/api/trips/search/similar?destination="+url.QueryEscape(destination), &trips)
	return trips, err
}
