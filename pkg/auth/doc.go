// Package auth provides inbound bearer-key authentication and per-key rate
// limiting for the HTTP servers in this module.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware. The middleware also injects the
// tenant identity into the request context for storage multi-tenancy
// scoping, and answers over-limit requests with 429 and a Retry-After
// header the way hosted model APIs do.
package auth
