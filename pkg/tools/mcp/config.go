package mcp

import (
	"errors"
	"fmt"
)

// Transport names accepted in ServerConfig.Transport.
const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Config holds the configuration for all MCP server connections.
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name identifies the server in logs and tool routing.
	Name string `yaml:"name"`

	// Transport is "streamable-http" (default) or "sse".
	Transport string `yaml:"transport"`

	URL string `yaml:"url"`

	// Headers are sent with every request, typically API keys.
	Headers map[string]string `yaml:"headers,omitempty"`

	Auth AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig selects dynamic authentication for a server. Type is empty
// (static headers only) or "oauth_client_credentials".
type AuthConfig struct {
	Type         string   `yaml:"type,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`

	// ClientSecretFile is read into ClientSecret by the config loader.
	ClientSecretFile string `yaml:"client_secret_file,omitempty"`
}

// Validate reports every problem with the server list.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range c.Servers {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("mcp.servers[%d]: duplicate server name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", TransportStreamableHTTP, TransportSSE:
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport %q is not supported", i, s.Transport))
		}
		switch s.Auth.Type {
		case "":
		case AuthOAuthClientCredentials:
			if s.Auth.TokenURL == "" || s.Auth.ClientID == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth requires token_url and client_id", i))
			}
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.type %q is not supported", i, s.Auth.Type))
		}
	}
	return errors.Join(errs...)
}
