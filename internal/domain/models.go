// Package domain defines the data types exchanged with the Howl backend:
// token pairs, user profiles, trips, groups, chat messages, and calendar
// entries. JSON field names follow the backend's wire contract.
package domain

import "time"

// TokenPair is an access/refresh credential pair as issued by the
// authentication endpoints. It is owned by the credential store, replaced
// wholesale on login or refresh, and destroyed on logout.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both halves of the pair are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Credential is a single stored credential value in the durable location.
// Rows are keyed by a fixed, well-known name per token kind.
type Credential struct {
	Name      string    `json:"name"  gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"-"     gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// UserProfile is the authenticated user's profile as returned by the
// profile endpoints. It is replaced wholesale on every mutation so the
// caller's view never holds a partial merge.
type UserProfile struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	DisplayName         string   `json:"display_name,omitempty"`
	AvatarURL           string   `json:"avatar_url,omitempty"`
	Location            string   `json:"location,omitempty"`
	Bio                 string   `json:"bio,omitempty"`
	AgeRange            string   `json:"age_range,omitempty"`
	Personality         string   `json:"personality,omitempty"`
	Interests           []string `json:"interests"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
	CreatedAt           string   `json:"created_at"`
}

// OnboardingData is the payload for completing first-run onboarding.
type OnboardingData struct {
	DisplayName string   `json:"display_name"`
	AgeRange    string   `json:"age_range"`
	Location    string   `json:"location"`
	Personality string   `json:"personality"`
	Interests   []string `json:"interests"`
}

// ProfileUpdate carries the mutable profile fields for a profile update.
// Nil pointers are omitted so the backend only touches provided fields.
type ProfileUpdate struct {
	DisplayName *string  `json:"display_name,omitempty"`
	AvatarURL   *string  `json:"avatar_url,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Bio         *string  `json:"bio,omitempty"`
	AgeRange    *string  `json:"age_range,omitempty"`
	Personality *string  `json:"personality,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// MessageOrigin distinguishes locally-created optimistic entries from
// server-confirmed ones.
type MessageOrigin string

const (
	// OriginOptimistic marks a message rendered before server confirmation.
	OriginOptimistic MessageOrigin = "optimistic"
	// OriginConfirmed marks a message carrying a server-assigned id.
	OriginConfirmed MessageOrigin = "confirmed"
)

// ChatMessage is one entry in a trip chat timeline.
//
// Until the server assigns an ID, a locally-originated message is
// identified by its ClientID (generated at send time). CreatedAt is kept
// as the server's raw timestamp string; the backend emits ISO-8601
// without a zone offset, which does not round-trip through time.Time.
type ChatMessage struct {
	ID           string        `json:"id"`
	TripID       string        `json:"trip_id,omitempty"`
	SenderID     string        `json:"sender_id"`
	SenderName   string        `json:"sender_name,omitempty"`
	SenderAvatar string        `json:"sender_avatar,omitempty"`
	Content      string        `json:"content"`
	CreatedAt    string        `json:"created_at"`
	IsMe         bool          `json:"is_me,omitempty"`
	ClientID     string        `json:"client_id,omitempty"`
	Origin       MessageOrigin `json:"-"`
}

// Confirmed reports whether the message carries a server-assigned id.
func (m ChatMessage) Confirmed() bool { return m.ID != "" }

// MessageList is a page of chat history plus the total count.
type MessageList struct {
	Messages []ChatMessage `json:"messages"`
	Total    int           `json:"total"`
}

// TripListItem is the compact trip representation used in list views.
type TripListItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Duration    string   `json:"duration,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags"`
	MemberCount int      `json:"member_count"`
	MaxMembers  int      `json:"max_members"`
	IsMember    bool     `json:"is_member"`
}

// TripRestrictions describes who may join a trip.
type TripRestrictions struct {
	AgeLimit string `json:"ageLimit"`
	Gender   string `json:"gender"`
	Vibe     string `json:"vibe,omitempty"`
	JoinType string `json:"joinType"`
}

// TripLeader identifies the trip organizer in a detail view.
type TripLeader struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// TripDetail is the full trip representation.
type TripDetail struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	Duration     string           `json:"duration,omitempty"`
	Dates        string           `json:"dates,omitempty"`
	MaxMembers   int              `json:"max_members"`
	ImageURL     string           `json:"image_url,omitempty"`
	Description  string           `json:"description,omitempty"`
	Tags         []string         `json:"tags"`
	Plans        []TripPlan       `json:"plans"`
	Members      []Member         `json:"members"`
	Leader       *TripLeader      `json:"leader,omitempty"`
	Restrictions TripRestrictions `json:"restrictions"`
	MemberCount  int              `json:"member_count"`
	IsMember     bool             `json:"is_member"`
	IsLeader     bool             `json:"is_leader"`
	CreatedAt    string           `json:"created_at"`
}

// TripPlan is one itinerary block inside a trip.
type TripPlan struct {
	ID       string `json:"id"`
	DayRange string `json:"day_range"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Order    int    `json:"order"`
}

// TripPlanInput is the itinerary block shape accepted on create/update.
type TripPlanInput struct {
	DayRange string `json:"day_range"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
}

// TripCreate is the payload for creating or updating a trip.
type TripCreate struct {
	Title       string          `json:"title"`
	Location    string          `json:"location"`
	Duration    string          `json:"duration,omitempty"`
	Dates       string          `json:"dates,omitempty"`
	MaxMembers  int             `json:"max_members,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
	AgeLimit    string          `json:"age_limit,omitempty"`
	Gender      string          `json:"gender,omitempty"`
	Vibe        string          `json:"vibe,omitempty"`
	JoinType    string          `json:"join_type,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Plans       []TripPlanInput `json:"plans,omitempty"`
}

// Member is a trip participant.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        string `json:"role"`
}

// JoinRequest is a pending request to join a trip.
type JoinRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name,omitempty"`
	UserAvatar string `json:"user_avatar,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// JoinResult is the backend's response to a join attempt.
type JoinResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SimilarTrip is a suggestion row from the similar-destination search.
type SimilarTrip struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	Date         string `json:"date,omitempty"`
	GroupSize    string `json:"groupSize"`
	Restrictions string `json:"restrictions"`
	Image        string `json:"image,omitempty"`
}

// Group is a chat group summary in the groups list.
type Group struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Members     string `json:"members"`
	LastMessage string `json:"lastMessage"`
	Time        string `json:"time"`
	Unread      int    `json:"unread"`
	Image       string `json:"image"`
}

// GroupDetails is the expanded group record.
type GroupDetails struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	MemberCount int    `json:"member_count"`
	Image       string `json:"image,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CalendarEvent is a dated trip entry for the calendar view.
type CalendarEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Dates    string `json:"dates,omitempty"`
	Color    string `json:"color"`
	Vibe     string `json:"vibe,omitempty"`
}

// CalendarTrip maps a trip onto specific days of a month.
type CalendarTrip struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Dates    []int  `json:"dates"`
	Month    int    `json:"month"`
	Color    string `json:"color"`
	Vibe     string `json:"vibe,omitempty"`
}

// TripJournal buckets the user's trips by status.
type TripJournal struct {
	Upcoming []TripListItem `json:"upcoming"`
	Pending  []TripListItem `json:"pending"`
	Past     []TripListItem `json:"past"`
}

// UploadResult is the response of the generic image upload endpoint.
type UploadResult struct {
	URL string `json:"url"`
}
