package mcp

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthOAuthClientCredentials selects the OAuth 2.0 client_credentials grant.
const AuthOAuthClientCredentials = "oauth_client_credentials"

// httpClient returns the HTTP client used to reach the server, or nil when
// neither static headers nor dynamic auth are configured. Tokens are
// fetched lazily, cached, and refreshed shortly before they expire.
func httpClient(ctx context.Context, cfg ServerConfig) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if len(cfg.Headers) > 0 {
		base = &headerTransport{base: base, headers: cfg.Headers}
	}

	if cfg.Auth.Type == AuthOAuthClientCredentials {
		cc := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
		}
		return &http.Client{Transport: &oauth2.Transport{
			Source: cc.TokenSource(ctx),
			Base:   base,
		}}
	}

	if len(cfg.Headers) == 0 {
		return nil
	}
	return &http.Client{Transport: base}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
