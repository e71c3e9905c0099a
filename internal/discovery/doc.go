// Package discovery finds devices announced over mDNS and offers them to
// their integration through a zeroconf config flow.
//
// A scan browses every watched service type for a bounded time. Each
// announced instance is started once per scan; repeated announcements
// across scans are absorbed by the flow itself, which aborts with
// already_configured or already_in_progress.
package discovery
