// Package lyric integrates Honeywell Lyric thermostats through the
// Honeywell cloud API.
//
// Setup is an OAuth2 authorization code flow: the user supplies the client
// credentials of their Honeywell developer app, is sent to Honeywell to
// authorize, and the callback at /auth/lyric/callback resumes the flow.
// The token is stored in the config entry and refreshed tokens are written
// back without reloading the entry.
//
// Every thermostat of every location becomes one climate entity.
package lyric
