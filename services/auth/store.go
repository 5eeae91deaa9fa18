package auth

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"traktsweep/models"
)

// Store owns the single token file on disk. The file is read and written
// wholesale; a corrupt or partially written file reads as "no token" and
// triggers a fresh authentication on the next run.
type Store struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewStore creates a token store backed by the OS filesystem.
func NewStore(path string) *Store {
	return newStore(afero.NewOsFs(), path)
}

func newStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path, now: time.Now}
}

// Load returns the persisted token, or nil when the file is absent,
// unreadable, or corrupt.
func (s *Store) Load() *models.Token {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil
	}
	var tok models.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil
	}
	if tok.AccessToken == "" {
		return nil
	}
	return &tok
}

// Save computes the expiry timestamp from ExpiresIn and overwrites the
// token file.
func (s *Store) Save(tok *models.Token) error {
	tok.ExpiresAt = s.now().Unix() + tok.ExpiresIn

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, data, 0o600)
}
