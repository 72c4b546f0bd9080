// Package api is the client side of the marketplace REST boundary. The
// backend owns the contract; this package only encodes the calls the app
// makes against it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthenticated is returned by bearer calls when no session exists.
var ErrUnauthenticated = errors.New("api: not authenticated")

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: backend returned %d", e.Status)
	}
	return fmt.Sprintf("api: backend returned %d: %s", e.Status, e.Message)
}

// TokenSource yields a currently-valid access token. An empty token with a
// nil error means there is no session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// doJSON issues the request and decodes a JSON response into out (when out
// is non-nil). Non-2xx responses become *Error.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorMessage pulls a human message out of an error body when the
// backend sent one, without assuming a fixed error schema.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Mensaje string `json:"mensaje"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Mensaje != "":
			return body.Mensaje
		case body.Error != "":
			return body.Error
		}
	}
	return ""
}

func jsonRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func logCall(log *zap.Logger, method, url string, err error) {
	if err != nil {
		log.Debug("rest call failed", zap.String("method", method), zap.String("url", url), zap.Error(err))
		return
	}
	log.Debug("rest call", zap.String("method", method), zap.String("url", url))
}
