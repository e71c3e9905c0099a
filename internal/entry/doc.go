// Package entry persists config entries: the durable record a finished
// config flow leaves behind for every configured integration instance.
//
// An entry carries the credentials an integration needs (host and API key,
// OAuth client id/secret and token, username and password) plus its setup
// state. Entries are immutable once persisted except for two writes:
// token refresh, and host/credential updates made by discovery dedup or
// reauthentication.
//
// The Store wraps a Repository with a cache and change listeners. The
// platform host listens for changes to set up, reload and unload entries.
//
// Entry data holds secrets. Never log it.
package entry
