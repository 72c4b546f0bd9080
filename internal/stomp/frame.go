// Package stomp implements the subset of STOMP 1.2 framing the realtime
// channel needs: CONNECT/CONNECTED handshake, SUBSCRIBE/UNSUBSCRIBE,
// SEND, MESSAGE and ERROR. Frames travel one per websocket message.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

// ErrHeartbeat marks an inbound message that is only a heart-beat (a bare
// EOL), not a frame. Callers skip these.
var ErrHeartbeat = errors.New("stomp: heart-beat")

// Frame is a single STOMP frame.
type Frame struct {
	Command string
	Header  map[string]string
	Body    []byte
}

// New builds a frame from alternating header key/value pairs.
func New(command string, headers ...string) *Frame {
	if len(headers)%2 != 0 {
		panic("stomp: odd header count")
	}
	h := make(map[string]string, len(headers)/2)
	for i := 0; i < len(headers); i += 2 {
		h[headers[i]] = headers[i+1]
	}
	return &Frame{Command: command, Header: h}
}

// Marshal encodes the frame. A content-length header is added whenever the
// frame has a body. Header values are escaped per STOMP 1.2, except on
// CONNECT/CONNECTED frames where the spec forbids escaping.
func (f *Frame) Marshal() []byte {
	var b bytes.Buffer
	b.WriteString(f.Command)
	b.WriteByte('\n')

	escape := f.Command != CmdConnect && f.Command != CmdConnected
	for k, v := range f.Header {
		if escape {
			k, v = escapeHeader(k), escapeHeader(v)
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		if _, ok := f.Header["content-length"]; !ok {
			fmt.Fprintf(&b, "content-length:%d\n", len(f.Body))
		}
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// Parse decodes one frame from a websocket message. A message holding only
// an EOL is a heart-beat and yields ErrHeartbeat.
func Parse(data []byte) (*Frame, error) {
	trimmed := bytes.TrimLeft(data, "\r\n")
	if len(trimmed) == 0 {
		return nil, ErrHeartbeat
	}

	head, rest, found := bytes.Cut(trimmed, []byte("\n"))
	if !found {
		return nil, errors.New("stomp: missing command line terminator")
	}
	command := string(bytes.TrimRight(head, "\r"))
	if command == "" {
		return nil, errors.New("stomp: empty command")
	}

	f := &Frame{Command: command, Header: make(map[string]string)}
	unescape := command != CmdConnect && command != CmdConnected

	for {
		line, tail, ok := bytes.Cut(rest, []byte("\n"))
		if !ok {
			return nil, errors.New("stomp: unterminated header section")
		}
		rest = tail
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			break
		}
		k, v, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			return nil, fmt.Errorf("stomp: malformed header line %q", line)
		}
		key, val := string(k), string(v)
		if unescape {
			var err error
			if key, err = unescapeHeader(key); err != nil {
				return nil, err
			}
			if val, err = unescapeHeader(val); err != nil {
				return nil, err
			}
		}
		// first occurrence wins
		if _, exists := f.Header[key]; !exists {
			f.Header[key] = val
		}
	}

	if cl, ok := f.Header["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(rest) {
			return nil, fmt.Errorf("stomp: bad content-length %q", cl)
		}
		f.Body = rest[:n]
		return f, nil
	}

	body, _, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return nil, errors.New("stomp: missing frame terminator")
	}
	f.Body = body
	return f, nil
}

func escapeHeader(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	return r.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errors.New("stomp: dangling escape in header")
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("stomp: invalid escape \\%c in header", s[i])
		}
	}
	return b.String(), nil
}
