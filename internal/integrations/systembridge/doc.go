// Package systembridge integrates System Bridge, a local HTTP service that
// reports the metrics of the computer it runs on.
//
// Setup is by host, port and API key, or by zeroconf discovery of
// _system-bridge._udp followed by the API key. The MAC address of the
// default network interface is the entry's unique id, so a rediscovered
// bridge at a new address updates its existing entry.
//
// One coordinator polls every endpoint concurrently; sensors read the OS,
// CPU, battery, filesystem and process figures out of the snapshot. The
// open and send_command services forward to the bridge's actions.
package systembridge
