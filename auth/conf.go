package auth

import "golang.org/x/oauth2/clientcredentials"

type clientCredConfig = clientcredentials.Config

// Conf represents the configuration needed for authentication. It
// includes the client ID, client secret, and the token URL.
type Conf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

// Enabled reports whether client-credential auth is configured.
func (c Conf) Enabled() bool {
	return c.ClientID != "" && c.AuthURL != ""
}

func (c Conf) toOauth2Config() clientCredConfig {
	return clientCredConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}
