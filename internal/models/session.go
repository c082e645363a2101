package models

import "time"

// TokenSet is an authenticated portal session returned by the identity provider.
type TokenSet struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// IsExpired reports whether the access token expires within leeway.
func (t *TokenSet) IsExpired(leeway time.Duration) bool {
	return t == nil || t.AccessToken == "" || time.Now().Add(leeway).After(t.ExpiresAt)
}

// CanRefresh reports whether the refresh token is still usable.
func (t *TokenSet) CanRefresh() bool {
	if t == nil || t.RefreshToken == "" {
		return false
	}
	return t.RefreshExpiresAt.IsZero() || time.Now().Before(t.RefreshExpiresAt)
}
