// Package realtime delivers server-pushed chat messages and notifications
// over a STOMP-over-websocket transport. Delivery is best effort: no
// ordering beyond the transport's, no offline queueing, and transport
// failures are retried forever on a fixed delay without ever surfacing to
// callers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/user/trueque/internal/models"
	"github.com/user/trueque/internal/stomp"
)

var errNotConnected = errors.New("realtime: not connected")

// Channel owns the realtime connections for one authenticated session.
// Policy: one active link per topic family. Opening a chat link for a new
// id tears the previous one down (the app shows a single chat at a time),
// and the notification link is a second, independent slot.
type Channel struct {
	dial       Dialer
	retryDelay time.Duration
	log        *zap.Logger

	mu     sync.Mutex
	closed bool
	chat   *link
	notif  *link
}

func NewChannel(dial Dialer, retryDelay time.Duration, log *zap.Logger) *Channel {
	return &Channel{dial: dial, retryDelay: retryDelay, log: log}
}

// link is one subscription with its own underlying connection and
// reconnect loop.
type link struct {
	key     int64
	topic   string
	subID   string
	handler func(body []byte)

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	conn    Conn // nil while disconnected
	ready   bool // handshake + subscribe done, Send may write
	stopped bool
}

func newLink(key int64, topic string, handler func([]byte)) *link {
	return &link{
		key:     key,
		topic:   topic,
		subID:   uuid.NewString(),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// setConn registers the connection as soon as it is dialed so stop can
// unblock a pending handshake read. Send stays gated on markReady. A
// false return means the link was stopped meanwhile and the caller must
// close the connection itself.
func (l *link) setConn(conn Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped && conn != nil {
		return false
	}
	l.conn = conn
	l.ready = false
	return true
}

func (l *link) markReady() {
	l.mu.Lock()
	l.ready = true
	l.mu.Unlock()
}

func (l *link) write(f *stomp.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil || !l.ready {
		return errNotConnected
	}
	return l.conn.WriteMessage(websocket.TextMessage, f.Marshal())
}

// stop cancels the run loop, unblocks any pending read and waits for the
// loop to exit. Idempotent.
func (l *link) stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		l.mu.Lock()
		l.stopped = true
		conn := l.conn
		l.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		<-l.done
	})
}

// OpenChat subscribes to the chat topic for chatID and hands every decoded
// inbound message to onMessage. Re-opening the currently open chat reuses
// the existing subscription; opening a different chat closes the old one
// first. The returned function tears the subscription down. Handles from
// repeated opens of the same chat share one subscription, so the first
// close wins for all of them; there is no per-handle refcount.
func (c *Channel) OpenChat(chatID int64, onMessage func(models.ChatMessage)) func() {
	handler := func(body []byte) {
		msg, err := DecodeChatMessage(body)
		if err != nil {
			c.log.Warn("dropping inbound chat frame", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		onMessage(msg)
	}
	return c.open(&c.chat, chatID, fmt.Sprintf("/topic/chat/%d", chatID), handler)
}

// OpenNotifications subscribes to the user's notification topic and hands
// every classified event to onEvent. Unrecognized frames are logged and
// dropped.
func (c *Channel) OpenNotifications(userID int64, onEvent func(Event)) func() {
	handler := func(body []byte) {
		ev, err := DecodeNotificationEvent(body)
		if err != nil {
			c.log.Warn("dropping inbound notification frame", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		onEvent(ev)
	}
	return c.open(&c.notif, userID, fmt.Sprintf("/topic/notificaciones/%d", userID), handler)
}

func (c *Channel) open(slot **link, key int64, topic string, handler func([]byte)) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	if existing := *slot; existing != nil && existing.key == key {
		c.mu.Unlock()
		c.log.Debug("link already open", zap.String("topic", topic))
		return func() { c.release(slot, existing) }
	}
	old := *slot
	l := newLink(key, topic, handler)
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	*slot = l
	c.mu.Unlock()

	// Last opener wins: the stale link goes down before the new dial.
	if old != nil {
		old.stop()
	}
	go c.run(ctx, l)

	return func() { c.release(slot, l) }
}

// release tears l down if it still owns its slot; a close handle from a
// superseded opener only stops its own (already replaced) link.
func (c *Channel) release(slot **link, l *link) {
	c.mu.Lock()
	if *slot == l {
		*slot = nil
	}
	c.mu.Unlock()
	l.stop()
}

// Send publishes a chat message to the send destination of chatID. With no
// established link for that chat the message is logged and dropped; there
// is no outbox and no retry.
func (c *Channel) Send(chatID int64, sender, content string) {
	c.mu.Lock()
	l := c.chat
	c.mu.Unlock()
	if l == nil || l.key != chatID {
		c.log.Warn("dropping outbound chat message: chat not open", zap.Int64("chat_id", chatID))
		return
	}

	body, err := json.Marshal(map[string]any{
		"chatId":  chatID,
		"sender":  sender,
		"content": content,
	})
	if err != nil {
		c.log.Warn("dropping outbound chat message", zap.Error(err))
		return
	}
	f := stomp.New(stomp.CmdSend,
		"destination", fmt.Sprintf("/app/chat.sendMessage/%d", chatID),
		"content-type", "application/json",
	)
	f.Body = body
	if err := l.write(f); err != nil {
		c.log.Warn("dropping outbound chat message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// CloseAll tears down every link. The channel cannot be reused afterwards.
func (c *Channel) CloseAll() {
	c.mu.Lock()
	c.closed = true
	chat, notif := c.chat, c.notif
	c.chat, c.notif = nil, nil
	c.mu.Unlock()

	if chat != nil {
		chat.stop()
	}
	if notif != nil {
		notif.stop()
	}
}

// run dials, performs the STOMP handshake and subscription, then pumps
// inbound frames until the connection drops; then waits the fixed delay
// and starts over. Exits only when the link is stopped.
func (c *Channel) run(ctx context.Context, l *link) {
	defer close(l.done)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("realtime dial failed", zap.String("topic", l.topic), zap.Error(err))
			if !sleepCtx(ctx, c.retryDelay) {
				return
			}
			continue
		}
		if !l.setConn(conn) {
			conn.Close()
			return
		}

		err = c.serve(ctx, l, conn)
		conn.Close()
		l.setConn(nil)
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("realtime link dropped", zap.String("topic", l.topic), zap.Error(err))
		if !sleepCtx(ctx, c.retryDelay) {
			return
		}
	}
}

func (c *Channel) serve(ctx context.Context, l *link, conn Conn) error {
	connect := stomp.New(stomp.CmdConnect, "accept-version", "1.2", "heart-beat", "0,0")
	if err := conn.WriteMessage(websocket.TextMessage, connect.Marshal()); err != nil {
		return err
	}

	// Wait for CONNECTED before subscribing.
	for {
		f, err := c.readFrame(conn)
		if err != nil {
			return err
		}
		if f == nil {
			continue // heart-beat
		}
		if f.Command == stomp.CmdError {
			return fmt.Errorf("broker refused connection: %s", f.Header["message"])
		}
		if f.Command == stomp.CmdConnected {
			break
		}
	}

	sub := stomp.New(stomp.CmdSubscribe, "id", l.subID, "destination", l.topic, "ack", "auto")
	if err := conn.WriteMessage(websocket.TextMessage, sub.Marshal()); err != nil {
		return err
	}
	l.markReady()
	c.log.Info("realtime link established", zap.String("topic", l.topic))

	for {
		f, err := c.readFrame(conn)
		if err != nil {
			return err
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case stomp.CmdMessage:
			l.handler(f.Body)
		case stomp.CmdError:
			return fmt.Errorf("broker error: %s", f.Header["message"])
		default:
			c.log.Debug("ignoring frame", zap.String("command", f.Command))
		}
	}
}

// readFrame reads one websocket message and parses it; heart-beats and
// malformed frames come back as (nil, nil), the latter with a warning.
func (c *Channel) readFrame(conn Conn) (*stomp.Frame, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	f, err := stomp.Parse(raw)
	if errors.Is(err, stomp.ErrHeartbeat) {
		return nil, nil
	}
	if err != nil {
		c.log.Warn("dropping malformed frame", zap.Error(err))
		return nil, nil
	}
	return f, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
