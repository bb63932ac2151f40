// Package apikey authenticates requests by static API key, sent either as
// "Authorization: Bearer <key>" (OpenAI, Cloudflare) or as "x-api-key"
// (Anthropic).
package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/modelapi/pkg/auth"
)

// Authenticator matches presented keys against SHA-256 digests of the
// configured keys in constant time.
type Authenticator struct {
	entries []entry
}

type entry struct {
	digest   [sha256.Size]byte
	identity auth.Identity
}

// New builds an Authenticator from a key → identity map.
func New(keys map[string]auth.Identity) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(keys))}
	for key, id := range keys {
		a.entries = append(a.entries, entry{digest: sha256.Sum256([]byte(key)), identity: id})
	}
	return a
}

// Authenticate abstains when the request carries no key, and votes No for
// an empty or unknown key.
func (a *Authenticator) Authenticate(r *http.Request) auth.Result {
	key, ok := presentedKey(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if key == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(key))
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			id := e.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func presentedKey(r *http.Request) (string, bool) {
	if v := r.Header.Get("x-api-key"); v != "" {
		return strings.TrimSpace(v), true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(token), true
}
