// File: aio/queue.go
// Author: momentics <momentics@gmail.com>
//
// FIFO of submitted operations awaiting completion.

package aio

import (
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-relay/api"
)

type pendingOp struct {
	token uint32
	buf   []byte
	to    api.Endpoint
}

// opQueue keeps submission order and recycles its nodes so steady-state
// submission does not allocate. Not safe for concurrent use.
type opQueue struct {
	q    *queue.Queue
	free []*pendingOp
}

func newOpQueue() opQueue {
	return opQueue{q: queue.New()}
}

func (o *opQueue) push(token uint32, buf []byte, to api.Endpoint) {
	var op *pendingOp
	if n := len(o.free); n > 0 {
		op = o.free[n-1]
		o.free = o.free[:n-1]
	} else {
		op = new(pendingOp)
	}
	op.token, op.buf, op.to = token, buf, to
	o.q.Add(op)
}

func (o *opQueue) peek() *pendingOp {
	if o.q.Length() == 0 {
		return nil
	}
	return o.q.Peek().(*pendingOp)
}

func (o *opQueue) pop() {
	op := o.q.Remove().(*pendingOp)
	op.buf = nil
	o.free = append(o.free, op)
}

func (o *opQueue) len() int { return o.q.Length() }

// flush completes every pending operation as terminal.
func (o *opQueue) flush(op Op, out []Completion) (int, error) {
	n := 0
	for n < len(out) {
		p := o.peek()
		if p == nil {
			break
		}
		out[n] = Completion{Token: p.token, Op: op}
		o.pop()
		n++
	}
	if n == 0 {
		return 0, api.ErrTransportClosed
	}
	return n, nil
}

// remaining converts a Wait timeout and its absolute deadline into the next
// wait slice: negative means forever, zero means poll.
func remaining(timeout time.Duration, deadline time.Time) time.Duration {
	if timeout <= 0 {
		return timeout
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}
