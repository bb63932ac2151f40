package auth

import (
	"errors"
	"net/http"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Abstain means the authenticator cannot judge the request, e.g. its
	// header is absent. The next authenticator is asked.
	Abstain Decision = iota
	// Yes accepts the request; Result.Identity is set.
	Yes
	// No rejects the request; Result.Err says why.
	No
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result is the outcome of authenticating one request.
type Result struct {
	Decision Decision
	Identity *Identity
	Err      error
}

// Identity describes an authenticated caller.
type Identity struct {
	Subject string
	// Tier selects the rate limit budget. Empty means "default".
	Tier string
	// Tenant scopes storage access when set.
	Tenant string
}

// Authenticator inspects a request's credentials.
type Authenticator interface {
	Authenticate(r *http.Request) Result
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) Result

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(r *http.Request) Result { return f(r) }

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Anonymous is the identity granted when a Chain defaults to Yes.
var Anonymous = Identity{Subject: "anonymous", Tier: "default"}

// Chain asks each authenticator in order; the first Yes or No wins. When
// all abstain, Default decides.
type Chain struct {
	Authenticators []Authenticator
	Default        Decision
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(r); res.Decision != Abstain {
			return res
		}
	}
	if c.Default == Yes {
		id := Anonymous
		return Result{Decision: Yes, Identity: &id}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}
