package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/trueque/internal/models"
)

// AuthClient calls the unauthenticated auth endpoints. It never attaches a
// bearer token; the session manager sits on top of it.
type AuthClient struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewAuthClient(baseURL string, timeout time.Duration, log *zap.Logger) *AuthClient {
	return &AuthClient{base: baseURL, http: newHTTPClient(timeout), log: log}
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	return c.tokenCall(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// LoginSocial exchanges a third-party identity token for a session pair.
func (c *AuthClient) LoginSocial(ctx context.Context, externalToken string) (models.TokenPair, error) {
	return c.tokenCall(ctx, "/auth/google", map[string]string{
		"token": externalToken,
	})
}

func (c *AuthClient) Register(ctx context.Context, profile models.Registration, password string) (models.TokenPair, error) {
	return c.tokenCall(ctx, "/auth/registro", struct {
		models.Registration
		Password string `json:"password"`
	}{Registration: profile, Password: password})
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	return c.tokenCall(ctx, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	})
}

// Logout asks the backend to revoke the refresh token.
func (c *AuthClient) Logout(ctx context.Context, refreshToken string) error {
	req, err := jsonRequest(ctx, http.MethodPost, c.base+"/auth/logout", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return err
	}
	err = doJSON(c.http, req, nil)
	logCall(c.log, http.MethodPost, "/auth/logout", err)
	return err
}

func (c *AuthClient) tokenCall(ctx context.Context, path string, payload any) (models.TokenPair, error) {
	var pair models.TokenPair
	req, err := jsonRequest(ctx, http.MethodPost, c.base+path, payload)
	if err != nil {
		return pair, err
	}
	err = doJSON(c.http, req, &pair)
	logCall(c.log, http.MethodPost, path, err)
	if err != nil {
		return models.TokenPair{}, err
	}
	return pair, nil
}
