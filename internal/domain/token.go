package domain

import (
	"encoding/json"
	"time"
)

// TokenSet is one user's OAuth2 credential pair as returned by a provider
// token endpoint.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresIn    int64
	// ExpiresAt is derived at decode time (now + expires_in); the wire
	// representation never carries it and it is never trusted from one.
	ExpiresAt time.Time
}

type tokenSetWire struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UnmarshalJSON decodes a token endpoint response and pins ExpiresAt to an
// absolute instant.
func (t *TokenSet) UnmarshalJSON(data []byte) error {
	var wire tokenSetWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*t = TokenSet{
		AccessToken:  wire.AccessToken,
		TokenType:    wire.TokenType,
		RefreshToken: wire.RefreshToken,
		Scope:        wire.Scope,
		ExpiresIn:    wire.ExpiresIn,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(wire.ExpiresIn) * time.Second),
	}
	return nil
}

// Expired reports whether the access token's lifetime has passed at the
// given instant. The comparison is strict: a token expiring exactly now is
// still usable.
func (t TokenSet) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Identity is the provider-assigned user identity resolved from a "who am I"
// endpoint.
type Identity struct {
	UserID   string
	Username string
	Provider string
}
