package api

import (
	"context"
	"net/url"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// GroupsService wraps the chat-group listing endpoints.
type GroupsService struct {
	s *session.Client
}

// List returns the groups the user belongs to.
func (g *GroupsService) List(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	err := g.s.Get(ctx, "/api/groups", &groups)
	return groups, err
}

// Get fetches one group's details.
func (g *GroupsService) Get(ctx context.Context, id string) (domain.GroupDetails, error) {
	var d domain.GroupDetails
	err := g.s.Get(ctx, "/api/groups/"+url.PathEscape(id), &d)
	return d, err
}
