package apiclient

import (
	"context"
	"net/http"

	"github.com/vango-dev/synthdesk/pkg/storage"
)

// tokenPair reads the token fields the auth endpoints may return.
func tokenPair(payload any) storage.Tokens {
	m, ok := payload.(map[string]any)
	if !ok {
		return storage.Tokens{}
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	return storage.Tokens{
		Access:  pick("token", "accessToken", "access_token"),
		Refresh: pick("refreshToken", "refresh_token"),
	}
}

// refresh exchanges the stored refresh token for a new access token.
// stale is the access token that was rejected; when another caller has
// already replaced it, the stored token is used without a second
// exchange. On failure both tokens are cleared.
func (c *Client) refresh(ctx context.Context, stale string) (string, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens, err := storage.LoadTokens(ctx, c.store)
	if err == nil && tokens.Access != "" && tokens.Access != stale {
		return tokens.Access, true
	}
	if err != nil || tokens.Refresh == "" {
		c.failRefresh(ctx, "no refresh token")
		return "", false
	}

	fullURL, err := c.resolve(c.refreshEndpoint, nil)
	if err != nil {
		c.failRefresh(ctx, err.Error())
		return "", false
	}
	body, contentType, _ := encodeBody(map[string]string{"refreshToken": tokens.Refresh})
	payload, err := c.roundTrip(ctx, http.MethodPost, fullURL, body, contentType, "", nil)
	if err != nil {
		c.failRefresh(ctx, err.Error())
		return "", false
	}

	next := tokenPair(payload)
	if next.Access == "" {
		c.failRefresh(ctx, "refresh response carried no token")
		return "", false
	}
	if err := storage.SaveTokens(ctx, c.store, next); err != nil {
		c.logger.Warn("refreshed token not persisted", "error", err)
	}
	c.metrics.TokenRefresh(true)
	c.logger.Info("access token refreshed")
	return next.Access, true
}

func (c *Client) failRefresh(ctx context.Context, reason string) {
	c.metrics.TokenRefresh(false)
	c.logger.Warn("token refresh failed, clearing credentials", "reason", reason)
	if err := storage.ClearTokens(ctx, c.store); err != nil {
		c.logger.Error("credentials not cleared", "error", err)
	}
}

// Login posts credentials to endpoint and stores the returned tokens.
func (c *Client) Login(ctx context.Context, endpoint string, credentials any) (any, error) {
	payload, err := c.Request(ctx, http.MethodPost, endpoint, credentials, NoRetry())
	if err != nil {
		return nil, err
	}
	if tokens := tokenPair(payload); tokens.Access != "" {
		if err := storage.SaveTokens(ctx, c.store, tokens); err != nil {
			return nil, err
		}
	}
	c.ClearCache()
	return payload, nil
}

// Logout notifies endpoint, when set, and forgets the credentials and
// cached responses regardless of the server's answer.
func (c *Client) Logout(ctx context.Context, endpoint string) error {
	if endpoint != "" {
		if _, err := c.Request(ctx, http.MethodPost, endpoint, nil, NoRetry()); err != nil {
			c.logger.Debug("logout request failed", "error", err)
		}
	}
	c.ClearCache()
	return storage.ClearTokens(ctx, c.store)
}

// Authenticated reports whether an access token is stored.
func (c *Client) Authenticated(ctx context.Context) bool {
	tokens, err := storage.LoadTokens(ctx, c.store)
	return err == nil && tokens.Access != ""
}
