// Package coordinator implements the polling coordinator shared by every
// integration: one periodic task fetches a whole vendor snapshot under a
// timeout and entities read fields out of the last published snapshot.
//
// # Publication
//
// Every refresh publishes a new immutable state (snapshot, success flag,
// error, time) with a single atomic pointer swap, so a reader never sees
// a snapshot from one poll paired with the success flag of another.
// A failed refresh keeps the previous snapshot and only flips the success
// flag; a successful refresh replaces the snapshot wholesale.
//
// # Scheduling
//
// Polling runs on the configured interval only while at least one listener
// is registered. Concurrent refreshes are coalesced with singleflight.
// Shutdown cancels an in-flight update; snapshots are replace-only so
// nothing needs cleaning up.
//
// # Errors
//
// Refresh failures wrap ErrUpdateFailed. FirstRefresh failures wrap
// ErrNotReady, which the platform host turns into a setup retry.
package coordinator
