package sqlstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/user/trueque/internal/models"
)

// Fixed credential keys, one row each.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// SQLStore keeps credentials in a local sqlite database. Values are sealed
// at rest with a per-install secret kept next to the database file.
type SQLStore struct {
	db   *sql.DB
	seal *sealer
}

// New opens (creating if needed) the credential database under dataDir.
func New(dataDir string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "credentials.db"))
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS credentials (
		name  TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`); err != nil {
		db.Close()
		return nil, err
	}

	seal, err := newSealer(filepath.Join(dataDir, "seal.key"))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db, seal: seal}, nil
}

func (s *SQLStore) SaveTokens(pair models.TokenPair) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	sealed, err := s.seal.seal(raw)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Both keys point at the same sealed record so a crash between two
	// writes cannot leave a mismatched pair.
	for _, name := range []string{keyAccessToken, keyRefreshToken} {
		if _, err := tx.Exec(
			"INSERT INTO credentials (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
			name, sealed,
		); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) LoadTokens() (*models.TokenPair, error) {
	var sealed []byte
	err := s.db.QueryRow(
		"SELECT value FROM credentials WHERE name = ?", keyAccessToken,
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := s.seal.open(sealed)
	if err != nil {
		// Unreadable record (e.g. seal key replaced): start unauthenticated.
		return nil, nil
	}

	var pair models.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, nil
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, nil
	}
	return &pair, nil
}

func (s *SQLStore) ClearTokens() error {
	_, err := s.db.Exec("DELETE FROM credentials")
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
