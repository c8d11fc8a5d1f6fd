package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/howlhq/go-howl-client/internal/config"
	"github.com/howlhq/go-howl-client/internal/credstore"
	"github.com/howlhq/go-howl-client/internal/domain"
)

// ErrRoomClosed is returned by Send after the room has shut down.
var ErrRoomClosed = errors.New("chat: room closed")

// healthyConnAge is how long a connection must stay up before the
// reconnect budget resets. A server that accepts the handshake and
// drops the connection right away is still down; treating every
// successful dial as recovery would turn a flapping server into an
// unbounded dial loop. Variable for tests.
var healthyConnAge = 30 * time.Second

// messageAPI is the slice of the REST surface backing history reads and
// the HTTP send fallback.
type messageAPI interface {
	History(ctx context.Context, tripID string, skip, limit int) (domain.MessageList, error)
	Send(ctx context.Context, tripID, content string) (domain.ChatMessage, error)
}

// dialFunc matches Dial; swapped out in tests.
type dialFunc func(ctx context.Context, wsBaseURL, tripID, token string, handshakeTimeout time.Duration) (*Channel, error)

// RoomOptions wires a room to its collaborators.
type RoomOptions struct {
	TripID    string
	WSBaseURL string
	SelfID    string
	SelfName  string

	Creds    credstore.Store
	Messages messageAPI
	Config   config.ChatConfig

	// OnUpdate is invoked with a snapshot of the timeline after every
	// change. Optional.
	OnUpdate func([]domain.ChatMessage)
	// OnEvent receives presence and typing events. Optional.
	OnEvent func(Event)
}

// Room owns the chat session for one trip: it maintains the websocket
// channel across reconnects, fills history gaps after each reconnect,
// rate-limits outbound sends, and falls back to the HTTP send path when
// the channel is down. One room serves one trip; tear it down and build
// a new one when the trip changes.
type Room struct {
	opts    RoomOptions
	rec     *Reconciler
	limiter *rate.Limiter
	dial    dialFunc
	logger  zerolog.Logger

	mu     sync.Mutex
	ch     *Channel
	closed bool
	done   chan struct{}
}

// NewRoom builds a room. Call Run to connect.
func NewRoom(opts RoomOptions) *Room {
	limit := rate.Inf
	if opts.Config.SendRPS > 0 {
		limit = rate.Limit(opts.Config.SendRPS)
	}
	return &Room{
		opts:    opts,
		rec:     NewReconciler(opts.SelfID, opts.SelfName),
		limiter: rate.NewLimiter(limit, opts.Config.SendBurst),
		dial:    Dial,
		logger:  log.With().Str("component", "room").Str("trip_id", opts.TripID).Logger(),
		done:    make(chan struct{}),
	}
}

// Messages returns a snapshot of the timeline in render order.
func (r *Room) Messages() []domain.ChatMessage { return r.rec.Messages() }

// Run connects and serves the room until the context ends, Close is
// called, the server terminates the session with a non-retryable close
// code, or the reconnect budget is exhausted. History is loaded before
// the first dial so the timeline is never empty while connecting.
func (r *Room) Run(ctx context.Context) error {
	r.fillGap(ctx)

	attempts := 0
	for {
		ch, err := r.connect(ctx)
		if err == nil && ch == nil {
			return nil // context or room closed
		}
		if err == nil {
			roomConnects.Inc()
			connectedAt := time.Now()

			info := r.consume(ch)
			r.detach(ch)

			select {
			case <-ctx.Done():
				return nil
			case <-r.done:
				return nil
			default:
			}
			if info.Terminal() {
				roomTerminalCloses.Inc()
				return fmt.Errorf("chat: trip %s: connection rejected: %s (code %d)",
					r.opts.TripID, info.Reason, info.Code)
			}
			// Only a connection that stayed up counts as recovery.
			if time.Since(connectedAt) >= healthyConnAge {
				attempts = 0
			}
		}

		// A failed dial and a dropped connection share the budget.
		attempts++
		if limit := r.opts.Config.Reconnect.MaxAttempts; limit > 0 && attempts > limit {
			if err != nil {
				return fmt.Errorf("chat: trip %s: gave up after %d reconnect attempts: %w",
					r.opts.TripID, limit, err)
			}
			return fmt.Errorf("chat: trip %s: gave up after %d reconnect attempts", r.opts.TripID, limit)
		}
		delay := r.backoff(attempts)
		r.logger.Debug().Int("attempt", attempts).Dur("delay", delay).Err(err).Msg("reconnecting")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		case <-r.done:
			return nil
		}

		r.fillGap(ctx)
	}
}

// Send appends an optimistic entry immediately, then delivers the
// content over the channel, or over HTTP when the channel is down. The
// optimistic entry stays on the timeline either way; the confirming
// echo or HTTP response reconciles it.
func (r *Room) Send(ctx context.Context, content string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	ch := r.ch
	r.mu.Unlock()

	msg := r.rec.AppendLocal(content)
	r.notify()

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	if ch != nil {
		if err := ch.Send(content, msg.ClientID); err == nil {
			return nil
		} else if !errors.Is(err, ErrNotOpen) {
			return err
		}
	}

	// Channel down: the HTTP path confirms synchronously.
	roomFallbackSends.Inc()
	confirmed, err := r.opts.Messages.Send(ctx, r.opts.TripID, content)
	if err != nil {
		return err
	}
	confirmed.ClientID = msg.ClientID
	if r.rec.Apply(confirmed) {
		r.notify()
	}
	return nil
}

// SetTyping broadcasts or retracts a typing indicator. Dropped silently
// when the channel is down; typing state is not worth an HTTP round
// trip.
func (r *Room) SetTyping(active bool) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if ch == nil {
		return
	}
	if active {
		_ = ch.SendTyping()
	} else {
		_ = ch.SendStopTyping()
	}
}

// Close tears the room down. Safe to call multiple times.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ch := r.ch
	r.ch = nil
	close(r.done)
	r.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// connect dials with the current access token. Returns (nil, nil) when
// the room or context ended before a connection was made.
func (r *Room) connect(ctx context.Context) (*Channel, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	case <-r.done:
		return nil, nil
	default:
	}

	pair, ok, err := r.opts.Creds.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chat: trip %s: no credentials for realtime connection", r.opts.TripID)
	}

	ch, err := r.dial(ctx, r.opts.WSBaseURL, r.opts.TripID, pair.AccessToken, r.opts.Config.DialTimeout)
	if err != nil {
		r.logger.Debug().Err(err).Msg("dial failed")
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		ch.Close()
		return nil, nil
	}
	r.ch = ch
	r.mu.Unlock()
	return ch, nil
}

// consume feeds channel events into the reconciler until the channel
// closes, then returns the close cause.
func (r *Room) consume(ch *Channel) CloseInfo {
	for ev := range ch.Events() {
		switch ev.Type {
		case EventMessage:
			roomInboundMessages.Inc()
			if r.rec.Apply(ev.Message()) {
				r.notify()
			}
		default:
			if r.opts.OnEvent != nil {
				r.opts.OnEvent(ev)
			}
		}
	}
	return ch.CloseInfo()
}

func (r *Room) detach(ch *Channel) {
	r.mu.Lock()
	if r.ch == ch {
		r.ch = nil
	}
	r.mu.Unlock()
	ch.Close()
}

// fillGap pages forward through the trip history (served oldest first)
// until the end, folding every page into the timeline so messages that
// arrived while disconnected are not lost even when the trip has
// outgrown a single page. It resumes one entry before the newest
// confirmed message and verifies that anchor is where it expects;
// when the anchor is missing it walks the history from the start. The
// reconciler absorbs the overlap either way.
func (r *Room) fillGap(ctx context.Context) {
	const pageSize = 50

	lastID := r.rec.LastConfirmedID()
	skip := 0
	if n := r.rec.ConfirmedCount(); n > 1 {
		skip = n - 1
	}

	first := true
	for {
		list, err := r.opts.Messages.History(ctx, r.opts.TripID, skip, pageSize)
		if err != nil {
			r.logger.Warn().Err(err).Msg("history fetch failed")
			return
		}
		if first && skip > 0 && (len(list.Messages) == 0 || list.Messages[0].ID != lastID) {
			first = false
			skip = 0
			continue
		}
		first = false
		if r.rec.ApplyAll(list.Messages) {
			r.notify()
		}
		if len(list.Messages) < pageSize {
			return
		}
		skip += len(list.Messages)
	}
}

// backoff computes the delay before reconnect attempt n using full
// jitter under an exponential ceiling.
func (r *Room) backoff(attempt int) time.Duration {
	rc := r.opts.Config.Reconnect
	d := rc.InitialBackoff
	for i := 1; i < attempt && d < rc.MaxBackoff; i++ {
		d *= 2
	}
	if d > rc.MaxBackoff {
		d = rc.MaxBackoff
	}
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}

func (r *Room) notify() {
	if r.opts.OnUpdate != nil {
		r.opts.OnUpdate(r.rec.Messages())
	}
}
