package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// MessagesService wraps chat history reads and the HTTP send path. The
// HTTP send is also the fallback used when a realtime channel is not
// open, so messages are never silently dropped.
type MessagesService struct {
	s *session.Client
}

// History returns a page of a trip's message history, oldest first.
func (m *MessagesService) History(ctx context.Context, tripID string, skip, limit int) (domain.MessageList, error) {
	var list domain.MessageList
	if limit <= 0 {
		limit = 50
	}
	path := fmt.Sprintf("/api/messages/trips/%s?skip=%d&limit=%d", url.PathEscape(tripID), skip, limit)
	err := m.s.Get(ctx, path, &list)
	return list, err
}

// Send posts a message over HTTP and returns the confirmed message.
func (m *MessagesService) Send(ctx context.Context, tripID, content string) (domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := m.s.Post(ctx, "/api/messages/trips/"+url.PathEscape(tripID),
		map[string]string{"content": content}, &msg)
	if err == nil {
		msg.Origin = domain.OriginConfirmed
	}
	return msg, err
}
