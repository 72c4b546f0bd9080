package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/trueque/internal/models"
	"github.com/user/trueque/internal/stomp"
)

// fakeConn plays the broker side of a connection: it answers CONNECT with
// CONNECTED and records every frame the client writes.
type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	out []*stomp.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	f, err := stomp.Parse(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.out = append(c.out, f)
	c.mu.Unlock()
	if f.Command == stomp.CmdConnect {
		c.in <- stomp.New(stomp.CmdConnected, "version", "1.2").Marshal()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(command string, body string, headers ...string) {
	f := stomp.New(command, headers...)
	f.Body = []byte(body)
	c.in <- f.Marshal()
}

func (c *fakeConn) pushRaw(raw []byte) {
	c.in <- raw
}

func (c *fakeConn) frames(command string) []*stomp.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*stomp.Frame
	for _, f := range c.out {
		if f.Command == command {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func newTestChannel(t *testing.T) (*Channel, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	ch := NewChannel(d.dial, 10*time.Millisecond, zaptest.NewLogger(t))
	t.Cleanup(ch.CloseAll)
	return ch, d
}

// waitSubscribed blocks until connection i exists and has subscribed to
// destination, then returns it.
func waitSubscribed(t *testing.T, d *fakeDialer, i int, destination string) *fakeConn {
	t.Helper()
	require.Eventually(t, func() bool {
		if d.count() <= i {
			return false
		}
		for _, f := range d.conn(i).frames(stomp.CmdSubscribe) {
			if f.Header["destination"] == destination {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	return d.conn(i)
}

// findSubscribed waits for any connection subscribed to destination; used
// when two links dial concurrently and the dial order is not fixed.
func findSubscribed(t *testing.T, d *fakeDialer, destination string) *fakeConn {
	t.Helper()
	var found *fakeConn
	require.Eventually(t, func() bool {
		d.mu.Lock()
		conns := append([]*fakeConn(nil), d.conns...)
		d.mu.Unlock()
		for _, c := range conns {
			for _, f := range c.frames(stomp.CmdSubscribe) {
				if f.Header["destination"] == destination {
					found = c
					return true
				}
			}
		}
		return false
	}, time.Second, time.Millisecond)
	return found
}

// waitReady blocks until the chat link accepts outbound sends.
func waitReady(t *testing.T, ch *Channel) {
	t.Helper()
	require.Eventually(t, func() bool {
		ch.mu.Lock()
		l := ch.chat
		ch.mu.Unlock()
		if l == nil {
			return false
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.ready
	}, time.Second, time.Millisecond)
}

func TestOpenChatDeliversMessages(t *testing.T) {
	ch, d := newTestChannel(t)
	got := make(chan models.ChatMessage, 4)

	closeFn := ch.OpenChat(5, func(m models.ChatMessage) { got <- m })
	defer closeFn()

	conn := waitSubscribed(t, d, 0, "/topic/chat/5")
	conn.push(stomp.CmdMessage, `{"sender":"ana","content":"hola"}`,
		"destination", "/topic/chat/5", "subscription", "sub", "message-id", "1")

	select {
	case m := <-got:
		assert.Equal(t, "ana", m.Sender)
		assert.Equal(t, "hola", m.Content)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMalformedChatPayloadDropped(t *testing.T) {
	ch, d := newTestChannel(t)
	got := make(chan models.ChatMessage, 4)

	defer ch.OpenChat(5, func(m models.ChatMessage) { got <- m })()
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")

	conn.push(stomp.CmdMessage, `not json`, "destination", "/topic/chat/5", "subscription", "s", "message-id", "1")
	conn.push(stomp.CmdMessage, `{"sender":"ana","content":"sigo aqui"}`, "destination", "/topic/chat/5", "subscription", "s", "message-id", "2")

	select {
	case m := <-got:
		assert.Equal(t, "sigo aqui", m.Content, "only the valid frame arrives")
	case <-time.After(time.Second):
		t.Fatal("valid message not delivered after malformed one")
	}
	assert.Empty(t, got)
}

func TestReopenSameChatIsIdempotent(t *testing.T) {
	ch, d := newTestChannel(t)

	close1 := ch.OpenChat(5, func(models.ChatMessage) {})
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")

	close2 := ch.OpenChat(5, func(models.ChatMessage) {})

	// No second connection, no second subscription.
	assert.Equal(t, 1, d.count())
	assert.Len(t, conn.frames(stomp.CmdSubscribe), 1)

	close2()
	close1()
}

func TestCloseHandleOfSharedSubscriptionClosesForAll(t *testing.T) {
	ch, d := newTestChannel(t)

	close1 := ch.OpenChat(5, func(models.ChatMessage) {})
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")
	close2 := ch.OpenChat(5, func(models.ChatMessage) {})

	// Both handles point at the one subscription; whichever closes first
	// tears it down for the other.
	close1()
	assert.True(t, conn.isClosed())

	ch.mu.Lock()
	slotEmpty := ch.chat == nil
	ch.mu.Unlock()
	assert.True(t, slotEmpty)

	close2() // no-op, must not panic
	assert.Equal(t, 1, d.count(), "no reconnect after an explicit close")
}

func TestOpenDifferentChatTearsDownPrevious(t *testing.T) {
	ch, d := newTestChannel(t)

	ch.OpenChat(5, func(models.ChatMessage) {})
	first := waitSubscribed(t, d, 0, "/topic/chat/5")

	ch.OpenChat(7, func(models.ChatMessage) {})
	second := waitSubscribed(t, d, 1, "/topic/chat/7")

	assert.True(t, first.isClosed(), "stale link closed before the new one dials")
	assert.False(t, second.isClosed())
}

func TestSendWithoutLinkIsDropped(t *testing.T) {
	ch, d := newTestChannel(t)

	ch.Send(9, "ana", "hola") // must not panic, must not dial
	assert.Zero(t, d.count())
}

func TestSendToDifferentChatIsDropped(t *testing.T) {
	ch, d := newTestChannel(t)

	ch.OpenChat(5, func(models.ChatMessage) {})
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")
	waitReady(t, ch)

	ch.Send(7, "ana", "hola")
	assert.Empty(t, conn.frames(stomp.CmdSend))
}

func TestSendPublishesFrame(t *testing.T) {
	ch, d := newTestChannel(t)

	ch.OpenChat(5, func(models.ChatMessage) {})
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")
	waitReady(t, ch)

	ch.Send(5, "ana", "te cambio el libro")

	sends := conn.frames(stomp.CmdSend)
	require.Len(t, sends, 1)
	assert.Equal(t, "/app/chat.sendMessage/5", sends[0].Header["destination"])
	assert.JSONEq(t, `{"chatId":5,"sender":"ana","content":"te cambio el libro"}`, string(sends[0].Body))
}

func TestReconnectAfterDrop(t *testing.T) {
	ch, d := newTestChannel(t)
	got := make(chan models.ChatMessage, 4)

	ch.OpenChat(5, func(m models.ChatMessage) { got <- m })
	first := waitSubscribed(t, d, 0, "/topic/chat/5")

	first.Close() // transport drop

	second := waitSubscribed(t, d, 1, "/topic/chat/5")
	second.push(stomp.CmdMessage, `{"sender":"ana","content":"de vuelta"}`,
		"destination", "/topic/chat/5", "subscription", "s", "message-id", "9")

	select {
	case m := <-got:
		assert.Equal(t, "de vuelta", m.Content)
	case <-time.After(time.Second):
		t.Fatal("no delivery after reconnect")
	}
}

func TestNotificationEventsClassifiedInOrder(t *testing.T) {
	ch, d := newTestChannel(t)
	got := make(chan Event, 8)

	defer ch.OpenNotifications(3, func(ev Event) { got <- ev })()
	conn := waitSubscribed(t, d, 0, "/topic/notificaciones/3")

	hdr := []string{"destination", "/topic/notificaciones/3", "subscription", "s", "message-id", "1"}
	conn.push(stomp.CmdMessage, `{"what":"ever"}`, hdr...) // dropped
	conn.push(stomp.CmdMessage, `{"tipo":"ELIMINADA","id":42}`, hdr...)
	conn.push(stomp.CmdMessage, `{"tipo":"ACTUALIZAR_TODO"}`, hdr...)
	conn.push(stomp.CmdMessage, `{"id":7,"tipo":"INTERCAMBIO","titulo":"Nueva solicitud"}`, hdr...)

	expectKind := func(kind EventKind) Event {
		select {
		case ev := <-got:
			assert.Equal(t, kind, ev.Kind)
			return ev
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
			return Event{}
		}
	}

	ev := expectKind(EventNotificationDeleted)
	assert.Equal(t, int64(42), ev.DeletedID)
	expectKind(EventRefreshAll)
	ev = expectKind(EventNotification)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, int64(7), ev.Notification.ID)

	assert.Empty(t, got, "unrecognized frame produced no event")
}

func TestHeartbeatsIgnored(t *testing.T) {
	ch, d := newTestChannel(t)
	got := make(chan models.ChatMessage, 4)

	defer ch.OpenChat(5, func(m models.ChatMessage) { got <- m })()
	conn := waitSubscribed(t, d, 0, "/topic/chat/5")

	conn.pushRaw([]byte("\n"))
	conn.push(stomp.CmdMessage, `{"sender":"ana","content":"hola"}`,
		"destination", "/topic/chat/5", "subscription", "s", "message-id", "1")

	select {
	case m := <-got:
		assert.Equal(t, "hola", m.Content)
	case <-time.After(time.Second):
		t.Fatal("message not delivered after heart-beat")
	}
}

func TestCloseAll(t *testing.T) {
	ch, d := newTestChannel(t)

	ch.OpenChat(5, func(models.ChatMessage) {})
	ch.OpenNotifications(3, func(Event) {})
	chatConn := findSubscribed(t, d, "/topic/chat/5")
	notifConn := findSubscribed(t, d, "/topic/notificaciones/3")

	ch.CloseAll()

	assert.True(t, chatConn.isClosed())
	assert.True(t, notifConn.isClosed())

	// Closed channel refuses new links and drops sends.
	before := d.count()
	closeFn := ch.OpenChat(5, func(models.ChatMessage) {})
	closeFn()
	ch.Send(5, "ana", "hola")
	assert.Equal(t, before, d.count())
}

func TestCloseHandleOfSupersededLinkLeavesNewLinkAlone(t *testing.T) {
	ch, d := newTestChannel(t)

	close5 := ch.OpenChat(5, func(models.ChatMessage) {})
	waitSubscribed(t, d, 0, "/topic/chat/5")

	ch.OpenChat(7, func(models.ChatMessage) {})
	second := waitSubscribed(t, d, 1, "/topic/chat/7")

	close5() // stale handle
	assert.False(t, second.isClosed())

	ch.mu.Lock()
	stillOpen := ch.chat != nil
	ch.mu.Unlock()
	assert.True(t, stillOpen)
}
