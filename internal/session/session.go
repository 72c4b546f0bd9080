// Package session owns the access/refresh token pair: it persists the
// pair, checks expiry before handing the access token out, and serializes
// concurrent refresh attempts into a single backend call.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/user/trueque/internal/models"
	"github.com/user/trueque/internal/store"
)

// AuthAPI is the slice of the backend the manager needs. Implemented by
// api.AuthClient.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (models.TokenPair, error)
	LoginSocial(ctx context.Context, externalToken string) (models.TokenPair, error)
	Register(ctx context.Context, profile models.Registration, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Manager holds the one session the client has. All other components
// borrow tokens through AccessToken; only Login/Register/Logout/refresh
// mutate the pair.
type Manager struct {
	api    AuthAPI
	store  store.Store
	log    *zap.Logger
	leeway time.Duration

	mu   sync.Mutex
	pair *models.TokenPair

	refreshGroup singleflight.Group
}

// expiryLeeway refreshes slightly early so a token does not expire
// mid-request.
const expiryLeeway = 10 * time.Second

// NewManager builds the manager and loads any persisted tokens. Finding
// tokens moves the session to authenticated without contacting the
// backend; expiry is checked lazily on first use.
func NewManager(authAPI AuthAPI, st store.Store, log *zap.Logger) *Manager {
	m := &Manager{api: authAPI, store: st, log: log, leeway: expiryLeeway}
	pair, err := st.LoadTokens()
	if err != nil {
		log.Warn("could not load stored credentials", zap.Error(err))
		return m
	}
	m.pair = pair
	return m
}

// Authenticated reports whether a session exists. It does not imply the
// access token is still valid.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair != nil
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	pair, err := m.api.Login(ctx, email, password)
	if err != nil {
		return &AuthError{Kind: InvalidCredentials, cause: err}
	}
	m.adopt(pair)
	return nil
}

func (m *Manager) LoginWithSocialToken(ctx context.Context, externalToken string) error {
	pair, err := m.api.LoginSocial(ctx, externalToken)
	if err != nil {
		return &AuthError{Kind: FederatedLoginFailed, cause: err}
	}
	m.adopt(pair)
	return nil
}

func (m *Manager) Register(ctx context.Context, profile models.Registration, password string) error {
	pair, err := m.api.Register(ctx, profile, password)
	if err != nil {
		return &AuthError{Kind: RegistrationFailed, cause: err}
	}
	m.adopt(pair)
	return nil
}

// Logout revokes the refresh token server-side on a best-effort basis and
// always clears local state, so the user is never stranded logged in
// against a revoked session.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	pair := m.pair
	m.mu.Unlock()
	if pair == nil {
		return
	}
	if err := m.api.Logout(ctx, pair.RefreshToken); err != nil {
		m.log.Warn("server-side logout failed, clearing local session anyway", zap.Error(err))
	}
	m.teardown()
}

// AccessToken returns a currently-valid access token, refreshing first if
// the embedded exp claim is past (or unreadable, which fails closed). With no
// session it returns ("", nil).
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	pair := m.pair
	m.mu.Unlock()
	if pair == nil {
		return "", nil
	}

	exp, err := peekExpiry(pair.AccessToken)
	if err == nil && time.Until(exp) > m.leeway {
		return pair.AccessToken, nil
	}
	if err != nil {
		m.log.Debug("access token unreadable, refreshing", zap.Error(err))
	}
	return m.refresh(ctx)
}

// refresh coalesces concurrent callers onto one backend call; everyone
// gets the same new token, or "" when the refresh fails and the session
// is torn down.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	token, _, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		m.mu.Lock()
		pair := m.pair
		m.mu.Unlock()
		if pair == nil {
			return "", nil
		}

		// A previous flight may have swapped the token in already.
		if exp, err := peekExpiry(pair.AccessToken); err == nil && time.Until(exp) > m.leeway {
			return pair.AccessToken, nil
		}

		fresh, err := m.api.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			// The backend would not renew this session; any caller holding
			// old state must see it gone.
			m.log.Warn("refresh rejected, tearing session down", zap.Error(err))
			m.teardown()
			return "", nil
		}
		m.adopt(fresh)
		return fresh.AccessToken, nil
	})
	return token.(string), nil
}

func (m *Manager) adopt(pair models.TokenPair) {
	m.mu.Lock()
	m.pair = &pair
	m.mu.Unlock()
	if err := m.store.SaveTokens(pair); err != nil {
		m.log.Warn("could not persist credentials", zap.Error(err))
	}
}

func (m *Manager) teardown() {
	m.mu.Lock()
	m.pair = nil
	m.mu.Unlock()
	if err := m.store.ClearTokens(); err != nil {
		m.log.Warn("could not clear stored credentials", zap.Error(err))
	}
}
