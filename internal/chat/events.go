// Package chat implements the realtime side of trip group chat: a
// websocket channel scoped to one trip, a reconciler that merges
// optimistic local sends with confirmed server echoes into a single
// timeline, and a room that owns reconnection and the HTTP send
// fallback.
package chat

import "github.com/howlhq/go-howl-client/internal/domain"

// EventType discriminates inbound websocket frames.
type EventType string

const (
	EventMessage    EventType = "message"
	EventUserJoined EventType = "user_joined"
	EventUserLeft   EventType = "user_left"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop_typing"
	EventOnline     EventType = "online_users"
)

// OnlineUser is one entry of an online_users roster frame.
type OnlineUser struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar,omitempty"`
}

// Event is a decoded inbound frame. Message frames carry the chat
// message fields inline; presence and typing frames carry user_id and
// user_name; roster frames carry users.
type Event struct {
	Type EventType `json:"type"`

	// Message fields (type == "message").
	ID           string `json:"id,omitempty"`
	TripID       string `json:"trip_id,omitempty"`
	SenderID     string `json:"sender_id,omitempty"`
	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
	Content      string `json:"content,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	ClientID     string `json:"client_id,omitempty"`

	// Presence and typing fields.
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// Roster field (type == "online_users").
	Users []OnlineUser `json:"users,omitempty"`
}

// Message converts a message event into the domain representation.
func (e Event) Message() domain.ChatMessage {
	return domain.ChatMessage{
		ID:           e.ID,
		TripID:       e.TripID,
		SenderID:     e.SenderID,
		SenderName:   e.SenderName,
		SenderAvatar: e.SenderAvatar,
		Content:      e.Content,
		CreatedAt:    e.CreatedAt,
		ClientID:     e.ClientID,
		Origin:       domain.OriginConfirmed,
	}
}
