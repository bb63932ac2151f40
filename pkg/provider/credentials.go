package provider

import (
	"os"
	"strings"

	"github.com/rhuss/modelapi/pkg/api"
)

// Credentials resolves named credentials (API keys, account ids, base
// URLs). Implementations are consulted once, at provider construction.
type Credentials interface {
	Lookup(name string) (string, bool)
}

// EnvCredentials reads credentials from the process environment. Values
// that are empty after trimming count as missing.
type EnvCredentials struct{}

// Lookup implements Credentials.
func (EnvCredentials) Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// MapCredentials is a fixed credential set, used by tests and by
// configuration files.
type MapCredentials map[string]string

// Lookup implements Credentials.
func (m MapCredentials) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok && v != ""
}

// ChainCredentials consults each source in order and returns the first hit.
type ChainCredentials []Credentials

// Lookup implements Credentials.
func (c ChainCredentials) Lookup(name string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

func newConfigurationError(backend, variable string) error {
	return api.NewConfigurationError(backend, variable)
}
