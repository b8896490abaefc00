// File: internal/transport/pumps.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The three pump loops. Each runs on its own locked OS thread.

package transport

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/hioload-relay/affinity"
	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/core/concurrency"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/pool"
)

// waitSlice bounds a single completion wait so pumps re-check shutdown.
const waitSlice = 100 * time.Millisecond

func (t *Transport) lockThread(pump string) func() {
	cpu := -1
	if t.cfg.PinCPU {
		cpu = t.cfg.CPU
	}
	unlock, err := affinity.LockAndPin(cpu)
	if err != nil {
		t.log.Warn("cpu pinning failed", logging.KeyPump, pump, logging.KeyCPU, cpu, logging.KeyError, err)
	}
	return unlock
}

func (t *Transport) backoff() *concurrency.Backoff {
	return concurrency.NewBackoff(0, t.cfg.MaxBackoff)
}

// inboundPump keeps QueuedReads receives outstanding and moves completed
// reads to the completed-read ring. It never calls the processor.
func (t *Transport) inboundPump() {
	defer t.wg.Done()
	defer t.inboundDone.Store(true)
	defer t.lockThread("inbound")()

	comps := make([]aio.Completion, t.cfg.QueuedReads)
	bo := t.backoff()
	outstanding := 0
	draining := false

	for {
		for !draining && outstanding < t.cfg.QueuedReads {
			if t.stopping.Load() {
				draining = true
				break
			}
			buf, ok := t.reads.Acquire()
			if !ok {
				if t.cfg.ReadExhaustion == ReadExhaustionFail {
					err := fmt.Errorf("%w: read pool exhausted", api.ErrResourceExhausted)
					t.log.Error("inbound pump stopped", logging.KeyError, err)
					t.setFault(err)
					draining = true
					break
				}
				if outstanding > 0 {
					break
				}
				bo.Wait()
				continue
			}
			bo.Reset()
			if err := t.sock.SubmitReceive(uint32(buf.Index()), buf.Storage()); err != nil {
				t.releaseRead(buf)
				if !isClosed(err) {
					t.log.Error("submit receive", logging.KeyError, err)
					t.setFault(err)
				}
				draining = true
				break
			}
			outstanding++
		}
		if outstanding == 0 {
			if draining {
				return
			}
			continue
		}

		n, err := t.sock.WaitReceive(comps, waitSlice)
		if err != nil {
			if isClosed(err) {
				// Nothing left to complete.
				return
			}
			t.log.Error("wait receive", logging.KeyError, err)
			bo.Wait()
			continue
		}
		for _, c := range comps[:n] {
			buf, ok := t.reads.Buffer(int(c.Token))
			if !ok {
				t.log.Error("receive completion with unknown token", "token", c.Token)
				continue
			}
			outstanding--
			switch {
			case c.Terminal():
				draining = true
				t.releaseRead(buf)
			case c.Err != nil:
				t.stats.receiveErrors.Add(1)
				t.log.Debug("receive failed", logging.KeyError, c.Err)
				t.releaseRead(buf)
			default:
				buf.SetLen(c.N)
				buf.SetEndpoint(c.From)
				buf.Transition(api.InFlightRead, api.CompletedRead)
				t.stats.received.Add(1)
				// The ring has a cell per read buffer; a full report is a
				// consumer mid-dequeue at the wrap point.
				for !t.completed.Enqueue(buf) {
					runtime.Gosched()
				}
			}
		}
	}
}

// consumeStage hands completed reads to the processor and always returns
// the buffer to the read pool afterwards.
func (t *Transport) consumeStage() {
	defer t.wg.Done()
	defer t.lockThread("consume")()

	bo := t.backoff()
	for {
		buf, ok := t.completed.Dequeue()
		if !ok {
			if t.inboundDone.Load() {
				// The pump may have pushed between our Dequeue and its exit.
				if buf, ok = t.completed.Dequeue(); !ok {
					return
				}
			} else {
				bo.Wait()
				continue
			}
		}
		bo.Reset()
		t.consume(buf)
	}
}

func (t *Transport) consume(buf *pool.Buffer) {
	if err := t.process(buf); err != nil {
		var pe *concurrency.PanicError
		if errors.As(err, &pe) {
			t.stats.panics.Add(1)
			t.log.Error("panic recovered",
				logging.KeyGoroutine, "consume",
				logging.KeyPanic, fmt.Sprint(pe.Value),
				logging.KeyStack, string(pe.Stack))
		} else {
			t.stats.processorErrors.Add(1)
			t.log.Debug("processor error", logging.KeyError, err, logging.KeyRemote, buf.Endpoint().String())
		}
	}
	t.stats.processed.Add(1)
	t.releaseRead(buf)
}

func (t *Transport) process(buf *pool.Buffer) (err error) {
	defer concurrency.RecoverTo(&err)
	return t.processor.ProcessPacket(buf.Bytes(), buf.Endpoint())
}

// outboundPump sends queued write buffers one at a time and releases each on
// completion. A failed send drops the datagram.
func (t *Transport) outboundPump() {
	defer t.wg.Done()
	defer t.lockThread("outbound")()

	comps := make([]aio.Completion, 1)
	bo := t.backoff()
	for {
		buf, ok := t.sendq.Dequeue()
		if !ok {
			if t.stopping.Load() {
				return
			}
			bo.Wait()
			continue
		}
		bo.Reset()
		buf.Transition(api.Filled, api.InFlightWrite)
		if err := t.sock.SubmitSend(uint32(buf.Index()), buf.Bytes(), buf.Endpoint()); err != nil {
			t.releaseWrite(buf)
			if isClosed(err) {
				return
			}
			t.stats.sendErrors.Add(1)
			t.log.Warn("submit send", logging.KeyError, err)
			continue
		}
		if t.awaitSend(comps, buf, bo) {
			return
		}
	}
}

// awaitSend waits for the completion of buf and releases it. It reports
// whether the pump must stop. A failed wait leaves the send queued, so buf
// stays in flight until its own completion arrives.
func (t *Transport) awaitSend(comps []aio.Completion, buf *pool.Buffer, bo *concurrency.Backoff) (stop bool) {
	for {
		n, err := t.sock.WaitSend(comps, waitSlice)
		if err != nil {
			if isClosed(err) {
				// The socket had nothing left to complete.
				t.releaseWrite(buf)
				return true
			}
			t.log.Warn("wait send", logging.KeyError, err)
			bo.Wait()
			continue
		}
		bo.Reset()
		if n == 0 {
			continue
		}
		c := comps[0]
		if c.Token != uint32(buf.Index()) {
			t.log.Error("send completion with unexpected token", "token", c.Token, "index", buf.Index())
			continue
		}
		remote := buf.Endpoint()
		t.releaseWrite(buf)
		switch {
		case c.Terminal():
			return true
		case c.Err != nil:
			t.stats.sendErrors.Add(1)
			t.log.Debug("send failed", logging.KeyError, c.Err, logging.KeyRemote, remote.String())
		default:
			t.stats.sent.Add(1)
		}
		return false
	}
}
