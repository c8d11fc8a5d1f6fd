package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxFrameSize = 16 * 1024

	// Server close codes that must not be retried.
	CloseUnauthorized = 4001
	CloseNotMember    = 4003
)

// ErrNotOpen is returned by Send when the channel is not in the open
// state. Callers fall back to the HTTP send path instead of failing.
var ErrNotOpen = errors.New("chat: channel not open")

// State is the channel lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "connecting"
	}
}

// CloseInfo records how the connection ended.
type CloseInfo struct {
	Code   int
	Reason string
}

// Terminal reports whether the close code rules out reconnection:
// rejected credentials and revoked membership stay rejected.
func (ci CloseInfo) Terminal() bool {
	return ci.Code == CloseUnauthorized || ci.Code == CloseNotMember
}

// Channel is a single duplex connection bound to one trip. It decodes
// inbound frames onto Events and serializes outbound frames through a
// write pump. A channel is not reused after close; the owning room
// creates a fresh one per connection attempt.
type Channel struct {
	tripID string
	conn   *websocket.Conn
	logger zerolog.Logger

	events chan Event
	sendq  chan []byte
	done   chan struct{}

	state     atomic.Int32
	closeOnce sync.Once

	mu        sync.Mutex
	closeInfo CloseInfo
}

// Dial opens the websocket for one trip, authenticating with the access
// token carried as a query parameter. The returned channel is already
// open with both pumps running.
func Dial(ctx context.Context, wsBaseURL, tripID, token string, handshakeTimeout time.Duration) (*Channel, error) {
	endpoint := fmt.Sprintf("%s/ws/chat/%s?token=%s", wsBaseURL, url.PathEscape(tripID), url.QueryEscape(token))

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("chat: dial trip %s: %w (status %d)", tripID, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("chat: dial trip %s: %w", tripID, err)
	}

	c := &Channel{
		tripID: tripID,
		conn:   conn,
		logger: log.With().Str("component", "chat").Str("trip_id", tripID).Logger(),
		events: make(chan Event, 64),
		sendq:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	c.state.Store(int32(StateOpen))

	go c.readPump()
	go c.writePump()

	c.logger.Debug().Msg("channel open")
	return c, nil
}

// State returns the current lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Events returns the inbound event stream. The channel is closed when
// the connection ends, after which CloseInfo describes the cause.
func (c *Channel) Events() <-chan Event { return c.events }

// CloseInfo returns how the connection ended. Only meaningful once the
// events channel has been closed.
func (c *Channel) CloseInfo() CloseInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeInfo
}

// Send serializes a message frame onto the wire. The client id travels
// with the frame so a confirming echo can be correlated with the
// optimistic entry. Returns ErrNotOpen instead of blocking or failing
// when the connection is gone.
func (c *Channel) Send(content, clientID string) error {
	return c.enqueue(map[string]string{
		"type":      string(EventMessage),
		"content":   content,
		"client_id": clientID,
	})
}

// SendTyping broadcasts a typing indicator to the other participants.
func (c *Channel) SendTyping() error {
	return c.enqueue(map[string]string{"type": string(EventTyping)})
}

// SendStopTyping retracts a previously broadcast typing indicator.
func (c *Channel) SendStopTyping() error {
	return c.enqueue(map[string]string{"type": string(EventStopTyping)})
}

func (c *Channel) enqueue(frame map[string]string) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.sendq <- payload:
		return nil
	case <-c.done:
		return ErrNotOpen
	}
}

// Close tears the connection down. Safe to call multiple times and
// concurrently with the pumps.
func (c *Channel) Close() {
	c.shutdown(CloseInfo{Code: websocket.CloseNormalClosure, Reason: "client closed"})
}

func (c *Channel) shutdown(info CloseInfo) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.mu.Lock()
		c.closeInfo = info
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump decodes inbound frames until the connection errors, then
// records the close cause and closes the event stream.
func (c *Channel) readPump() {
	defer close(c.events)

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			info := CloseInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				info = CloseInfo{Code: ce.Code, Reason: ce.Text}
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("read ended")
			}
			c.shutdown(info)
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// writePump serializes queued frames and keeps the connection alive
// with periodic pings.
func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.sendq:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
