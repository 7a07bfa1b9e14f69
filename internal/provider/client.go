// Package provider encapsulates the three-legged OAuth2 dance and the
// authenticated API calls for each linked platform.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/tokenstore"
)

const maxResponseBytes = 1 << 20

// client holds the pieces shared by every provider: application credentials,
// the token endpoint, the injected HTTP client, and the token store the
// refresh path writes back to.
type client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	keyPrefix    string
	httpClient   *http.Client
	store        tokenstore.Store
	logger       *zap.Logger
}

// storageKey namespaces a provider user id into the shared token store.
func (c *client) storageKey(userID string) string {
	return c.keyPrefix + "-" + userID
}

// ExchangeCode trades an authorization code for a token set via a
// client-credentialed POST to the token endpoint.
func (c *client) ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	return c.postTokenForm(ctx, "exchange code", form)
}

// refresh trades a refresh token for a new token set.
func (c *client) refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.postTokenForm(ctx, "refresh token", form)
}

// FreshAccessToken returns a usable access token for the user. When the
// cached set has expired it performs one refresh call, writes the new set
// into the store under the user's key, and returns the new access token;
// otherwise it returns the cached token with no network call. Two concurrent
// refreshes for one user may both hit the network; the store serializes the
// writes and the last writer wins.
func (c *client) FreshAccessToken(ctx context.Context, userID string, tokens domain.TokenSet) (string, error) {
	if !tokens.Expired(time.Now().UTC()) {
		return tokens.AccessToken, nil
	}

	newTokens, err := c.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	if err := c.store.Put(ctx, c.storageKey(userID), newTokens); err != nil {
		return "", fmt.Errorf("store refreshed tokens: %w", err)
	}
	c.logger.Info("refreshed access token",
		zap.String("provider", c.keyPrefix),
		zap.String("user_id", userID),
		zap.Time("expires_at", newTokens.ExpiresAt),
	)
	return newTokens.AccessToken, nil
}

func (c *client) postTokenForm(ctx context.Context, op string, form url.Values) (domain.TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TokenSet{}, newUpstreamError(op, resp.StatusCode, body, false)
	}

	var tokens domain.TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return domain.TokenSet{}, fmt.Errorf("decode %s response: %w", op, err)
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return domain.TokenSet{}, fmt.Errorf("%s: empty access token in response", op)
	}
	return tokens, nil
}

// doJSON performs an authenticated API call and decodes a 2xx JSON response
// into out (when out is non-nil). The Authorization header value is passed
// whole so callers choose between Bearer and Bot credentials.
func (c *client) doJSON(ctx context.Context, op, method, rawURL, authorization string, payload, out any, keepErrBody bool) error {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newUpstreamError(op, resp.StatusCode, body, keepErrBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
