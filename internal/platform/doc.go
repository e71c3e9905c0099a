// Package platform is the host runtime for integrations.
//
// The Host sets up one Runtime per loaded config entry: it hands the
// integration an explicit Context (entry, entry store, HTTP client,
// external URL, logger), registers the returned entities and hooks every
// coordinator so that each refresh renders the entry's entities and fans
// changed states out to the registered Publishers.
//
// # Setup lifecycle
//
//	SetupEntry ─┬─ ok ─────────────────────────────► loaded
//	            ├─ coordinator.ErrNotReady ─► setup_retry ─(backoff 5s..5m)─► SetupEntry
//	            └─ other error ─────────────► setup_error
//
// Start sets up the stored entries concurrently in the background. The
// Host follows the entry store: a created entry is set up, a removed
// entry unloaded, and an entry whose data changed with Reload set (reauth,
// discovery host update) is reloaded. Token refresh writes do not reload.
//
// # Publishers
//
// MQTTPublisher writes retained state and availability topics (with the
// command topic for entities that have services),
// InfluxPublisher records numeric history and the API WebSocket hub
// broadcasts state changes. Only states that changed since the last
// publication are handed on.
package platform
