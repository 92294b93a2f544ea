// Package auth holds the owner-api bearer credential. The credential is an
// access/refresh token pair, refreshed in place when the API signals expiry.
package auth

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credential owns one access/refresh token pair. Refresh is mutually
// exclusive; readers always observe the latest token.
type Credential struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewCredential wraps a pre-issued token pair.
func NewCredential(accessToken, refreshToken string, expiresIn int64) *Credential {
	return &Credential{token: &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(expiresIn) * time.Second),
	}}
}

// SetAuthHeader attaches the current bearer token to the request.
func (c *Credential) SetAuthHeader(r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.token.SetAuthHeader(r)
}

// RefreshToken returns the refresh token of the current pair.
func (c *Credential) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.RefreshToken
}

// Replace swaps in a freshly issued token pair.
func (c *Credential) Replace(t *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = t
}

// Valid reports whether the access token is present and not expired.
func (c *Credential) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.Valid()
}
