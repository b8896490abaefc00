// Package aio
// Author: momentics <momentics@gmail.com>
//
// Asynchronous datagram socket facility. A Socket accepts submitted receive
// and send operations against caller-owned buffers and reports their
// completions through two independent completion queues, one per direction,
// so the inbound and outbound pumps never contend on a shared wait.
//
// A receive completion with N == 0 and a nil Err is the terminal signal: it is
// produced only when the socket closes. Empty datagrams on the wire are
// discarded by every implementation and the receive stays armed.
package aio
