//go:build linux
// +build linux

package aio_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-relay/aio"
)

func TestEpollSocket_SteadyStateDoesNotAllocate(t *testing.T) {
	f, err := aio.ByName(aio.FacilityEpoll)
	if err != nil {
		t.Fatalf("epoll facility: %v", err)
	}
	rx := openLoopback(t, f)
	tx := openLoopback(t, f)

	payload := []byte("steady-state")
	buf := make([]byte, 1500)
	var out [1]aio.Completion
	var failed string

	roundTrip := func() {
		if err := tx.SubmitSend(1, payload, rx.LocalEndpoint()); err != nil {
			failed = "submit send: " + err.Error()
			return
		}
		if n, err := tx.WaitSend(out[:], time.Second); n != 1 || err != nil || out[0].Err != nil {
			failed = "send did not complete"
			return
		}
		if err := rx.SubmitReceive(2, buf); err != nil {
			failed = "submit receive: " + err.Error()
			return
		}
		for i := 0; i < 10; i++ {
			n, err := rx.WaitReceive(out[:], 200*time.Millisecond)
			if err != nil {
				failed = "wait receive: " + err.Error()
				return
			}
			if n == 1 {
				c := out[0]
				if c.Err != nil || c.Token != 2 || c.N != len(payload) || c.From != tx.LocalEndpoint() {
					failed = "unexpected receive completion"
				}
				return
			}
		}
		failed = "receive did not complete"
	}

	roundTrip()
	if failed != "" {
		t.Fatal(failed)
	}
	allocs := testing.AllocsPerRun(200, roundTrip)
	if failed != "" {
		t.Fatal(failed)
	}
	if allocs != 0 {
		t.Fatalf("send+receive allocates %.1f times per datagram", allocs)
	}
}
