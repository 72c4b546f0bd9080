package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// peekExpiry reads the exp claim of an access token WITHOUT verifying the
// signature. The server remains the sole authority on token validity; this
// is only used to refresh proactively instead of waiting for a 401. A
// token whose payload cannot be decoded, or that carries no exp claim, is
// reported as an error and treated as already expired by the caller.
func peekExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
