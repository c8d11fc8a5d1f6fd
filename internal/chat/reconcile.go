package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/howlhq/go-howl-client/internal/domain"
)

// Reconciler keeps one trip timeline consistent as messages arrive from
// two sources: local optimistic sends and confirmed events off the
// channel. Confirmed echoes of our own sends replace their optimistic
// entry in place, so the visible order is "as observed", never
// re-sorted by timestamp.
type Reconciler struct {
	selfID   string
	selfName string

	mu      sync.Mutex
	entries []domain.ChatMessage
	seen    map[string]struct{} // confirmed server ids present in entries
}

// NewReconciler builds a reconciler for the given local user. The user
// id identifies our own echoes; the display name fills optimistic
// entries before the server assigns sender metadata.
func NewReconciler(selfID, selfName string) *Reconciler {
	return &Reconciler{
		selfID:   selfID,
		selfName: selfName,
		seen:     make(map[string]struct{}),
	}
}

// Messages returns a copy of the timeline in render order.
func (r *Reconciler) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of timeline entries.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ConfirmedCount returns the number of distinct confirmed messages in
// the timeline. In an append-only history this is the server-side
// offset just past the known tail, which the gap fill resumes from.
func (r *Reconciler) ConfirmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// LastConfirmedID returns the server id of the newest confirmed entry,
// or "" when none exists. Used to detect whether a history fetch after
// reconnect actually filled a gap.
func (r *Reconciler) LastConfirmedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Confirmed() {
			return r.entries[i].ID
		}
	}
	return ""
}

// AppendLocal creates an optimistic entry for an outbound send and
// appends it to the timeline. The generated client id travels with the
// wire frame so the confirming echo can be matched exactly.
func (r *Reconciler) AppendLocal(content string) domain.ChatMessage {
	msg := domain.ChatMessage{
		SenderID:   r.selfID,
		SenderName: r.selfName,
		Content:    content,
		CreatedAt:  time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
		IsMe:       true,
		ClientID:   uuid.NewString(),
		Origin:     domain.OriginOptimistic,
	}
	r.mu.Lock()
	r.entries = append(r.entries, msg)
	r.mu.Unlock()
	return msg
}

// Apply merges one confirmed message into the timeline and reports
// whether the timeline changed.
//
// A client id match wins outright. Failing that, an echo of our own
// send replaces the most recently appended optimistic entry with
// equivalent content.
// Anything already present by server id is dropped as a duplicate;
// everything else appends.
func (r *Reconciler) Apply(m domain.ChatMessage) bool {
	if !m.Confirmed() {
		return false
	}
	m.Origin = domain.OriginConfirmed
	if m.SenderID == r.selfID {
		m.IsMe = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[m.ID]; dup {
		return false
	}

	if m.ClientID != "" {
		for i, e := range r.entries {
			if e.ClientID == m.ClientID && !e.Confirmed() {
				r.replace(i, m)
				return true
			}
		}
	}

	if m.SenderID == r.selfID {
		want := canonicalContent(m.Content)
		for i := len(r.entries) - 1; i >= 0; i-- {
			e := r.entries[i]
			if !e.Confirmed() && canonicalContent(e.Content) == want {
				r.replace(i, m)
				return true
			}
		}
	}

	r.entries = append(r.entries, m)
	r.seen[m.ID] = struct{}{}
	return true
}

// ApplyAll merges a batch of confirmed messages, oldest first, and
// reports whether any of them changed the timeline. Used to fold a
// history page into the timeline; duplicate delivery is a no-op.
func (r *Reconciler) ApplyAll(msgs []domain.ChatMessage) bool {
	changed := false
	for _, m := range msgs {
		if r.Apply(m) {
			changed = true
		}
	}
	return changed
}

// replace swaps an optimistic entry for its confirmed form, keeping the
// entry's position. Callers hold the lock.
func (r *Reconciler) replace(i int, m domain.ChatMessage) {
	r.entries[i] = m
	r.seen[m.ID] = struct{}{}
}

// canonicalContent normalizes content for the echo-matching heuristic.
// The backend may re-serialize text, so compare NFC forms with
// surrounding whitespace stripped.
func canonicalContent(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
