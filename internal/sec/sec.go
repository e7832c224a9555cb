// Package sec provides authentication and security primitives for the HTTP
// API.
//
// # Sessions
//
// Every user carries at most one opaque session identifier (the "find hash"),
// a random hex string stored on the user record. A bearer token is an HS256
// JWT whose only claim is that identifier. Issuing a token replaces the stored
// identifier, so any token issued earlier for the same user stops resolving.
// Only one session per user can be live at a time.
//
// IMPORTANT: Basic Auth transmits credentials in base64 encoding (not encrypted).
// TLS must be used in production to protect credentials in transit.
//
// # Components
//
//   - [HashPassword], [ComparePassword]: bcrypt password hashing utilities
//   - [Tokens]: issues and verifies bearer tokens against the user store
//   - [BasicAuth]: middleware extracting Basic Auth credentials
//   - [BearerAuth]: middleware resolving the bearer token to a user
//   - [GetCredentials], [GetAuthenticatedUser], [SetAuthenticatedUser]:
//     context accessors for request authentication info
//   - [ResolveOrCreate]: maps an external identity onto a local user
package sec

import "connectrpc.com/authn"

// ErrUnauthorized is returned for any credential or token that fails to
// authenticate. Callers cannot distinguish a bad signature from a superseded
// session.
var ErrUnauthorized = authn.Errorf("unauthorized")

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "cfgram"
