package realtime

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is the slice of a websocket connection the channel uses. Satisfied
// by *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a fresh transport connection to the realtime endpoint.
type Dialer func(ctx context.Context) (Conn, error)

// WebsocketDialer dials the given ws(s) URL with the default gorilla
// dialer.
func WebsocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, err
		}
		return conn, nil
	}
}
