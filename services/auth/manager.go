package auth

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"traktsweep/models"
	"traktsweep/services/trakt"
)

// ErrAuthTimeout indicates the user did not authorize the device before the
// device code expired.
var ErrAuthTimeout = errors.New("auth: device authentication timed out")

// Client is the slice of the Trakt API the token manager needs.
type Client interface {
	GetDeviceCode() (*trakt.DeviceCode, error)
	PollDeviceToken(deviceCode string) (*models.Token, error)
	RefreshToken(refreshToken string) (*models.Token, error)
}

// Manager owns the OAuth token lifecycle: device-flow authentication, token
// persistence, expiry-based refresh, and the authenticated-call capability
// used by everything that talks to the API.
type Manager struct {
	client Client
	store  *Store
	token  *models.Token

	now   func() time.Time
	sleep func(time.Duration)
	out   io.Writer
}

// NewManager creates a token manager backed by the given client and store.
func NewManager(client Client, store *Store) *Manager {
	return &Manager{
		client: client,
		store:  store,
		now:    time.Now,
		sleep:  time.Sleep,
		out:    os.Stdout,
	}
}

// Load returns the persisted token, refreshing it first when its expiry has
// passed. Returns nil when no usable token is stored.
func (m *Manager) Load() (*models.Token, error) {
	tok := m.store.Load()
	if tok == nil {
		return nil, nil
	}
	if tok.Expired(m.now()) {
		log.Printf("[auth] token expired, refreshing")
		return m.Refresh(tok)
	}
	return tok, nil
}

// Authenticate runs the OAuth device flow: requests a device code, shows
// the verification URL and user code, then polls the token endpoint at the
// server-specified interval until the user authorizes, an unrecoverable
// error occurs, or the device code expires.
func (m *Manager) Authenticate() (*models.Token, error) {
	code, err := m.client.GetDeviceCode()
	if err != nil {
		return nil, fmt.Errorf("request device code: %w", err)
	}

	fmt.Fprintf(m.out, "🔗 Open this link in your browser: %s\n", code.VerificationURL)
	fmt.Fprintf(m.out, "🔢 Enter this code: %s\n", code.UserCode)

	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := m.now().Add(time.Duration(code.ExpiresIn) * time.Second)

	for m.now().Before(deadline) {
		m.sleep(interval)

		tok, err := m.client.PollDeviceToken(code.DeviceCode)
		switch {
		case err == nil:
			if err := m.store.Save(tok); err != nil {
				return nil, fmt.Errorf("persist token: %w", err)
			}
			m.token = tok
			fmt.Fprintln(m.out, "✅ Authentication successful!")
			return tok, nil
		case errors.Is(err, trakt.ErrAuthorizationPending):
			// user has not approved yet, keep polling
		case errors.Is(err, trakt.ErrSlowDown):
			fmt.Fprintln(m.out, "⏳ Slow down, waiting a bit longer...")
			m.sleep(interval)
		default:
			return nil, fmt.Errorf("device authentication: %w", err)
		}
	}
	return nil, ErrAuthTimeout
}

// Refresh exchanges the refresh token for a new token, falling back to a
// full device-flow authentication when the exchange is rejected.
func (m *Manager) Refresh(tok *models.Token) (*models.Token, error) {
	fresh, err := m.client.RefreshToken(tok.RefreshToken)
	if err != nil {
		log.Printf("[auth] token refresh failed, re-authenticating: %v", err)
		return m.Authenticate()
	}
	if err := m.store.Save(fresh); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	m.token = fresh
	log.Printf("[auth] token refreshed")
	return fresh, nil
}

// ensureToken returns a valid token: cached, loaded from the store, or
// obtained through a fresh device flow.
func (m *Manager) ensureToken() (*models.Token, error) {
	if m.token != nil && !m.token.Expired(m.now()) {
		return m.token, nil
	}
	tok, err := m.Load()
	if err != nil {
		return nil, err
	}
	if tok != nil {
		m.token = tok
		return tok, nil
	}
	tok, err = m.Authenticate()
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// WithToken runs fn with a valid access token. When fn reports an
// unauthorized response the token is refreshed and fn retried exactly once;
// a second unauthorized response is returned to the caller.
func (m *Manager) WithToken(fn func(accessToken string) error) error {
	tok, err := m.ensureToken()
	if err != nil {
		return err
	}

	err = fn(tok.AccessToken)
	if !errors.Is(err, trakt.ErrUnauthorized) {
		return err
	}

	log.Printf("[auth] unauthorized response, refreshing token and retrying")
	tok, refreshErr := m.Refresh(tok)
	if refreshErr != nil {
		return refreshErr
	}
	return fn(tok.AccessToken)
}
