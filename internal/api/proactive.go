package api

import (
	"context"
	"time"
)

// RefreshIfExpiring refreshes the access token ahead of time when it expires
// within leeway. It shares the coordinator with the 401 path, so a proactive
// refresh and concurrent rejected requests still produce a single refresh
// call. A failed refresh ends the session exactly like a failed 401 recovery.
//
// It reports whether this call performed a refresh. Tokens without a known
// expiry are left alone.
func (c *Client) RefreshIfExpiring(ctx context.Context, leeway time.Duration) (bool, error) {
	tok := c.currentToken()
	if tok == nil || tok.RefreshToken == "" || tok.Expiry.IsZero() {
		return false, nil
	}
	if time.Until(tok.Expiry) > leeway {
		return false, nil
	}

	leader, w := c.refresh.AcquireOrAwait()
	if !leader {
		defer w.Release()
		_, err := w.Wait(ctx)
		return false, err
	}

	if c.staleToken(tok.AccessToken) {
		c.refresh.Settle(c.currentAccessToken(), nil)
		return false, nil
	}

	c.logger.Debug().Time("expiry", tok.Expiry).Msg("Refreshing access token before expiry")
	access, err := c.refreshSession(ctx)
	if err != nil {
		c.terminate(ctx)
		c.refresh.Settle("", err)
		return false, err
	}
	c.refresh.Settle(access, nil)
	return true, nil
}
