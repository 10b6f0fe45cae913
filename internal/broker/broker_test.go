package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orioks-monitoring/checking/internal/eventbus"
	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

type fakeTransport struct {
	mu       sync.Mutex
	calls    []Task
	at       []time.Time
	inFlight int32
	maxSeen  int32

	delay time.Duration
	resp  Response
	err   error
}

func (f *fakeTransport) Exchange(ctx context.Context, task Task, timeout time.Duration) (Response, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, task)
	f.at = append(f.at, time.Now())
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Response{}, f.err
	}
	resp := f.resp
	resp.Correlation = task.Correlation
	return resp, nil
}

func newTestBroker(t *testing.T, cfg Config, tr Transport, bus eventbus.Bus) *Broker {
	t.Helper()
	return New(cfg, tr, bus, logx.Nop())
}

func TestFetchReturnsResult(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{resp: Response{Status: 200, Result: json.RawMessage(`{"ok":true}`)}}
	b := newTestBroker(t, Config{}, tr, eventbus.New())

	got, err := b.Fetch(context.Background(), portal.EventMarks, 42, nil)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("result = %s", got)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transport called %d times", len(tr.calls))
	}
	task := tr.calls[0]
	if task.EventType != portal.EventMarks || task.UserID != 42 {
		t.Fatalf("task = %+v", task)
	}
	if task.Correlation == "" {
		t.Fatal("correlation token missing")
	}
}

func TestFetchSpacesDispatches(t *testing.T) {
	t.Parallel()
	const interval = 60 * time.Millisecond
	tr := &fakeTransport{resp: Response{Status: 200}}
	b := newTestBroker(t, Config{MinInterval: interval}, tr, eventbus.New())

	ctx := context.Background()
	if _, err := b.Fetch(ctx, portal.EventMarks, 1, nil); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if _, err := b.Fetch(ctx, portal.EventMarks, 2, nil); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	gap := tr.at[1].Sub(tr.at[0])
	if gap < interval-5*time.Millisecond {
		t.Fatalf("dispatch gap %v, want >= %v", gap, interval)
	}
}

func TestFetchSerializesThroughGate(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{resp: Response{Status: 200}, delay: 20 * time.Millisecond}
	b := newTestBroker(t, Config{FetchGate: 1}, tr, eventbus.New())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := b.Fetch(context.Background(), portal.EventHomeworks, id, nil); err != nil {
				t.Errorf("Fetch(%d): %v", id, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if max := atomic.LoadInt32(&tr.maxSeen); max != 1 {
		t.Fatalf("max concurrent exchanges = %d, want 1", max)
	}
}

func TestFetchStatusErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		raw     string
		wantRaw string
		client  bool
	}{
		{name: "client side hides body", status: 403, raw: "<html>session</html>", wantRaw: "", client: true},
		{name: "server side keeps body", status: 502, raw: "bad gateway", wantRaw: "bad gateway", client: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := &fakeTransport{resp: Response{Status: tt.status, Raw: tt.raw}}
			b := newTestBroker(t, Config{}, tr, eventbus.New())

			_, err := b.Fetch(context.Background(), portal.EventMarks, 1, nil)
			var se *portal.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want StatusError", err)
			}
			if se.Status != tt.status || se.Raw != tt.wantRaw {
				t.Fatalf("StatusError = %+v", se)
			}
			if se.ClientSide() != tt.client {
				t.Fatalf("ClientSide = %v, want %v", se.ClientSide(), tt.client)
			}
		})
	}
}

func TestFetchTimeoutPropagates(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{err: portal.ErrTimeout}
	b := newTestBroker(t, Config{}, tr, eventbus.New())

	_, err := b.Fetch(context.Background(), portal.EventMarks, 1, nil)
	if !errors.Is(err, portal.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestFetchPublishesCompletionEvents(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	tr := &fakeTransport{resp: Response{Status: 200}}
	b := newTestBroker(t, Config{}, tr, bus)
	if _, err := b.Fetch(context.Background(), portal.EventMarks, 7, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != eventbus.TypeRequestCompleted {
			t.Fatalf("event type = %s", ev.Type)
		}
		stat, ok := ev.Data.(RequestStat)
		if !ok || stat.UserID != 7 || stat.EventType != portal.EventMarks {
			t.Fatalf("event data = %+v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion event published")
	}
}
