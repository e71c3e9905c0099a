// Package api implements the HTTP REST API and WebSocket server for Gray
// Logic Integrations.
//
// This package provides:
//   - Config flow endpoints: start, continue, inspect and abort flows
//   - The OAuth2 callback that resumes a flow suspended on an external step
//   - Config entry endpoints: list, remove, reload, reauthenticate
//   - Entity endpoints: rendered states and service calls
//   - WebSocket hub streaming entity.state_changed events
//   - Middleware stack (request ID, logging, recovery, CORS, bearer auth)
//
// # Security
//
// Everything under /api/v1 except /health requires an HS256 bearer token
// signed with security.jwt.secret (see the token command). The WebSocket
// endpoint takes the same token as a query parameter because browsers
// cannot set headers on the upgrade request.
//
// The OAuth2 callback is unauthenticated: the vendor redirects the user's
// browser to it. It is protected by the signed state parameter instead.
package api
