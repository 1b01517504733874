// Package auth handles OAuth2 client-credential authentication for
// routing services that require token access instead of a static API
// key.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ClientCred caches an OAuth2 token obtained with the client
// credentials grant and refreshes it on expiry.
type ClientCred struct {
	conf  clientCredConfig
	token *oauth2.Token
}

// NewClientCred creates a token source from the configuration.
func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// GetToken retrieves a valid access token. If the current token is
// valid, it returns the existing token. Otherwise, it requests a new
// token using the client credentials configuration.
func (c *ClientCred) GetToken() (string, error) {
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.refresh(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh() (string, error) {
	if err := c.refresh(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// SetAuthHeader sets the bearer Authorization header on the request.
func (c *ClientCred) SetAuthHeader(req *http.Request) error {
	token, err := c.GetToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *ClientCred) refresh() error {
	var err error
	c.token, err = c.conf.Token(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}
