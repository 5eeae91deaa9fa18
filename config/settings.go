package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Trakt     TraktSettings `json:"trakt"`
	TokenFile string        `json:"tokenFile"`
	Log       LogConfig     `json:"log"`
}

// TraktSettings holds the API credentials and cleanup options.
type TraktSettings struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Username     string `json:"username"`
	KeepPerDay   bool   `json:"keepPerDay"` // keep one watch per media per calendar day
}

// LogConfig represents optional file logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// ErrInvalidCredentials indicates missing or placeholder Trakt credentials.
var ErrInvalidCredentials = errors.New("trakt credentials missing or placeholder")

// DefaultSettings returns the settings written when no config file exists.
// The credential placeholders are rejected by Validate so a fresh install
// fails with a clear message instead of a confusing API error.
func DefaultSettings() Settings {
	return Settings{
		Trakt: TraktSettings{
			ClientID:     "your_client_id",
			ClientSecret: "your_client_secret",
			Username:     "your_username",
		},
		TokenFile: "trakt_auth.json",
		Log: LogConfig{
			MaxSize:    10,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Validate checks that the credentials are usable before any network call.
func (s Settings) Validate() error {
	placeholder := func(v, def string) bool {
		v = strings.TrimSpace(v)
		return v == "" || v == def
	}
	if placeholder(s.Trakt.ClientID, "your_client_id") ||
		placeholder(s.Trakt.ClientSecret, "your_client_secret") ||
		placeholder(s.Trakt.Username, "your_username") {
		return ErrInvalidCredentials
	}
	return nil
}

// ApplyEnvOverrides layers process environment values over file settings.
// The variable names match the original .env convention (CLIENT_ID,
// CLIENT_SECRET, USERNAME), with TRAKT_USERNAME preferred over USERNAME
// since the latter is commonly set by the OS.
func ApplyEnvOverrides(s *Settings) {
	if v := strings.TrimSpace(os.Getenv("CLIENT_ID")); v != "" {
		s.Trakt.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_SECRET")); v != "" {
		s.Trakt.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("TRAKT_USERNAME")); v != "" {
		s.Trakt.Username = v
	} else if v := strings.TrimSpace(os.Getenv("USERNAME")); v != "" && (s.Trakt.Username == "" || s.Trakt.Username == "your_username") {
		s.Trakt.Username = v
	}
	if v := strings.TrimSpace(os.Getenv("KEEP_PER_DAY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Trakt.KeepPerDay = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOKEN_FILE")); v != "" {
		s.TokenFile = v
	}
}

// Manager owns the settings file on disk.
type Manager struct {
	path string
}

// NewManager creates a settings manager for the given path.
func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir creates the directory containing the settings file.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	if s.TokenFile == "" {
		s.TokenFile = "trakt_auth.json"
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
