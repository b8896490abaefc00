package aio_test

import (
	"bytes"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
)

func facilities(t *testing.T) []aio.Facility {
	t.Helper()
	out := []aio.Facility{aio.NetFacility{}}
	if runtime.GOOS == "linux" {
		f, err := aio.ByName(aio.FacilityEpoll)
		if err != nil {
			t.Fatalf("epoll facility: %v", err)
		}
		out = append(out, f)
	}
	return out
}

func openLoopback(t *testing.T, f aio.Facility) aio.Socket {
	t.Helper()
	s, err := f.Open(aio.SocketConfig{Host: "127.0.0.1"})
	if err != nil {
		t.Fatalf("%s open: %v", f.Name(), err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sendOne(t *testing.T, s aio.Socket, payload []byte, to api.Endpoint) {
	t.Helper()
	if err := s.SubmitSend(7, payload, to); err != nil {
		t.Fatalf("SubmitSend: %v", err)
	}
	var out [1]aio.Completion
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := s.WaitSend(out[:], 100*time.Millisecond)
		if err != nil {
			t.Fatalf("WaitSend: %v", err)
		}
		if n == 1 {
			if out[0].Err != nil || out[0].N != len(payload) || out[0].Token != 7 {
				t.Fatalf("send completion %+v", out[0])
			}
			return
		}
	}
	t.Fatal("send did not complete")
}

func receiveOne(t *testing.T, s aio.Socket) aio.Completion {
	t.Helper()
	var out [1]aio.Completion
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := s.WaitReceive(out[:], 100*time.Millisecond)
		if err != nil {
			t.Fatalf("WaitReceive: %v", err)
		}
		if n == 1 {
			return out[0]
		}
	}
	t.Fatal("receive did not complete")
	return aio.Completion{}
}

func TestSocket_Loopback(t *testing.T) {
	for _, f := range facilities(t) {
		t.Run(f.Name(), func(t *testing.T) {
			a := openLoopback(t, f)
			b := openLoopback(t, f)
			if a.LocalEndpoint().Port == 0 {
				t.Fatal("ephemeral port not resolved")
			}

			buf := make([]byte, 1500)
			if err := a.SubmitReceive(42, buf); err != nil {
				t.Fatalf("SubmitReceive: %v", err)
			}
			// Empty datagrams never surface as completions.
			sendOne(t, b, []byte{}, a.LocalEndpoint())
			payload := []byte("0123456789abcdef")
			sendOne(t, b, payload, a.LocalEndpoint())

			c := receiveOne(t, a)
			if c.Err != nil || c.Token != 42 || c.Op != aio.OpReceive {
				t.Fatalf("completion %+v", c)
			}
			if !bytes.Equal(buf[:c.N], payload) {
				t.Fatalf("payload %q", buf[:c.N])
			}
			if c.From != b.LocalEndpoint() {
				t.Fatalf("from %v, want %v", c.From, b.LocalEndpoint())
			}
		})
	}
}

func TestSocket_CloseCompletesTerminal(t *testing.T) {
	for _, f := range facilities(t) {
		t.Run(f.Name(), func(t *testing.T) {
			s := openLoopback(t, f)
			if err := s.SubmitReceive(1, make([]byte, 64)); err != nil {
				t.Fatal(err)
			}
			done := make(chan aio.Completion, 1)
			go func() {
				var out [1]aio.Completion
				for {
					n, err := s.WaitReceive(out[:], -1)
					if err != nil {
						close(done)
						return
					}
					if n == 1 {
						done <- out[0]
						return
					}
				}
			}()
			time.Sleep(20 * time.Millisecond)
			if err := s.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			select {
			case c, ok := <-done:
				if !ok || !c.Terminal() || c.Token != 1 {
					t.Fatalf("expected terminal completion, got %+v ok=%v", c, ok)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("close did not unblock WaitReceive")
			}

			var out [1]aio.Completion
			if _, err := s.WaitReceive(out[:], 0); !errors.Is(err, api.ErrTransportClosed) {
				t.Fatalf("drained wait: %v", err)
			}
			if err := s.SubmitSend(2, []byte("x"), s.LocalEndpoint()); !errors.Is(err, api.ErrTransportClosed) {
				t.Fatalf("submit after close: %v", err)
			}
		})
	}
}

func TestSocket_ReusePort(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("SO_REUSEPORT group test is linux-only")
	}
	for _, f := range facilities(t) {
		t.Run(f.Name(), func(t *testing.T) {
			first, err := f.Open(aio.SocketConfig{Host: "127.0.0.1", ReusePort: true})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer first.Close()
			second, err := f.Open(aio.SocketConfig{Host: "127.0.0.1", Port: first.LocalEndpoint().Port, ReusePort: true})
			if err != nil {
				t.Fatalf("second bind on shared port: %v", err)
			}
			second.Close()

			_, err = f.Open(aio.SocketConfig{Host: "127.0.0.1", Port: first.LocalEndpoint().Port})
			var apiErr *api.Error
			if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeSetup {
				t.Fatalf("exclusive bind on shared port: %v", err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	if _, err := aio.ByName("bogus"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("unknown facility: %v", err)
	}
	f, err := aio.ByName(aio.FacilityAuto)
	if err != nil || f == nil {
		t.Fatalf("auto facility: %v", err)
	}
}
