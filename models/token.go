package models

import "time"

// Token holds the OAuth credentials persisted between runs. ExpiresAt is
// computed when the token is saved and is the single source of truth for
// expiry; CreatedAt is whatever the token endpoint reported.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	CreatedAt    int64  `json:"created_at,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // epoch seconds
}

// Expired reports whether the token's expiry timestamp has passed. Tokens
// without a recorded expiry are treated as still valid; the server will
// reject them with a 401 if they are not, which triggers a refresh.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt > 0 && t.ExpiresAt < now.Unix()
}
