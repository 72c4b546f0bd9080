package sqlstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const secretLen = 32

// sealer wraps stored values in a secretbox keyed from a per-install
// random secret. This keeps tokens from sitting in plain text on disk;
// the server remains the only authority on token validity.
type sealer struct {
	key [32]byte
}

func newSealer(secretPath string) (*sealer, error) {
	secret, err := os.ReadFile(secretPath)
	if errors.Is(err, os.ErrNotExist) {
		secret = make([]byte, secretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		if err := os.WriteFile(secretPath, secret, 0o600); err != nil {
			return nil, fmt.Errorf("write seal secret: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	if len(secret) != secretLen {
		return nil, fmt.Errorf("seal secret at %s has wrong length", secretPath)
	}

	s := &sealer{}
	derived := argon2.IDKey(secret, []byte("trueque.credentials.v1"), 1, 64*1024, 4, 32)
	copy(s.key[:], derived)
	return s, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, errors.New("sealed record too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed record does not open")
	}
	return plain, nil
}
