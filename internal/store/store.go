package store

import "github.com/user/trueque/internal/models"

// Store persists the session token pair across process restarts. Tokens
// are the only client state that survives a restart.
type Store interface {
	SaveTokens(pair models.TokenPair) error
	// LoadTokens returns (nil, nil) when no tokens are stored or the
	// stored record cannot be opened.
	LoadTokens() (*models.TokenPair, error)
	ClearTokens() error
	Close() error
}
