// Package auth provides bearer-token authentication for the gateway's HTTP
// surface.
//
// # Overview
//
// Authentication is optional and enabled by configuring a shared secret.
// Tokens are HS256-signed JWTs whose sub claim carries the client id. The
// gateway does not issue tokens at runtime; they are minted out of band with
// the token subcommand and distributed to clients.
//
// # Middleware
//
// HTTPAuthMiddleware wraps the API mux. It accepts tokens from the
// Authorization header (Bearer scheme) or from the "token" query parameter,
// which exists for EventSource stream connections that cannot set headers.
// On success the client id is attached to the request context and can be
// read back with ClientIDFromContext. Health endpoints are mounted outside
// the middleware and stay reachable without a token.
package auth
