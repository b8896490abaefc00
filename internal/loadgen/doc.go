// Package loadgen drives a running relay the way real traffic would: it
// announces sessions on the client port, streams paced, sequenced payloads
// into the peer port and measures what comes back on each session socket.
//
// Throughput, round-trip time and loss are tracked with go-metrics and
// reported periodically while the run is in progress.
package loadgen
