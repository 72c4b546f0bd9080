package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/user/trueque/internal/models"
)

// Client calls the bearer-authenticated endpoints. Every call obtains a
// token from the TokenSource first; an empty token short-circuits into
// ErrUnauthenticated without touching the network.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log *zap.Logger) *Client {
	return &Client{base: baseURL, http: newHTTPClient(timeout), tokens: tokens, log: log}
}

func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/usuarios/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SearchListings(ctx context.Context, query, tipo string) ([]models.Listing, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if tipo != "" {
		q.Set("tipo", tipo)
	}
	path := "/publicaciones"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Listing
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var out models.Listing
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/publicaciones/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateExchange(ctx context.Context, listingID int64) (*models.Exchange, error) {
	var out models.Exchange
	body := map[string]int64{"publicacionId": listingID}
	if err := c.do(ctx, http.MethodPost, "/intercambios", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListExchanges(ctx context.Context) ([]models.Exchange, error) {
	var out []models.Exchange
	if err := c.do(ctx, http.MethodGet, "/intercambios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AcceptExchange(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/intercambios/%d/aceptar", id), nil, nil)
}

func (c *Client) RejectExchange(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/intercambios/%d/rechazar", id), nil, nil)
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.do(ctx, http.MethodGet, "/notificaciones", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notificaciones/%d", id), nil, nil)
}

func (c *Client) ChatMessages(ctx context.Context, chatID int64) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chats/%d/mensajes", chatID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrUnauthenticated
	}

	req, err := jsonRequest(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	err = doJSON(c.http, req, out)
	logCall(c.log, method, path, err)
	return err
}
