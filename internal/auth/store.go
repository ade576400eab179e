package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/steviee/go-mcl/internal/state"
)

// Store persists the credential record at a fixed path under the client
// configuration directory. Writes are atomic; a crash mid-save never
// corrupts the previous record.
type Store struct {
	path string
}

// NewStore creates a Store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the credential record. A missing file returns ErrNoCredentials.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse credential file: %w", err)
	}

	return &rec, nil
}

// Save writes the credential record with owner-only permissions.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential record: %w", err)
	}

	if err := state.AtomicWrite(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}

	slog.Debug("credentials saved", "player", rec.PlayerName)
	return nil
}

// Clear removes the credential file. Already-missing files are fine.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}
