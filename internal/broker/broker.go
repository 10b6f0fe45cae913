// Package broker is the single gateway for outbound portal data requests.
// Every fetch is serialized through a one-slot concurrency gate, spaced by a
// minimum real-time interval, and exchanged with the remote request worker
// via correlation-token RPC.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/orioks-monitoring/checking/internal/eventbus"
	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// Task is the outbound request descriptor handed to the remote worker. It is
// owned by the broker for the duration of one exchange; the correlation token
// is its only identity.
type Task struct {
	Correlation string            `json:"correlation_id"`
	EventType   string            `json:"event_type"`
	UserID      int64             `json:"user_telegram_id"`
	Params      map[string]string `json:"params,omitempty"`
	ReplyTo     string            `json:"reply_to"`
}

// Response is the worker's answer to one Task. Status carries an HTTP-like
// code; Raw is only populated for server-side (>= 500) failures.
type Response struct {
	Correlation string          `json:"correlation_id"`
	Status      int             `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Raw         string          `json:"raw,omitempty"`
}

// Transport performs one correlated request/response exchange. It returns
// portal.ErrTimeout when no response arrives within timeout, after clearing
// the correlation registration.
type Transport interface {
	Exchange(ctx context.Context, task Task, timeout time.Duration) (Response, error)
}

// RequestStat is the Data payload of request completion events.
type RequestStat struct {
	EventType string
	UserID    int64
	Status    int
}

type Config struct {
	// MinInterval spaces consecutive dispatches regardless of concurrency.
	MinInterval time.Duration
	// FetchGate and LoginGate bound simultaneous in-flight exchanges per
	// request class. The portal's session model tolerates exactly one.
	FetchGate int
	LoginGate int
	// Timeout bounds the wait for a worker response.
	Timeout time.Duration
}

type Broker struct {
	tr  Transport
	bus eventbus.Bus
	log logx.Logger

	fetchGate chan struct{}
	loginGate chan struct{}
	limiter   *rate.Limiter
	timeout   time.Duration
}

func New(cfg Config, tr Transport, bus eventbus.Bus, log logx.Logger) *Broker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Broker{
		tr:        tr,
		bus:       bus,
		log:       log,
		fetchGate: newGate(cfg.FetchGate),
		loginGate: newGate(cfg.LoginGate),
		limiter:   limiter,
		timeout:   cfg.Timeout,
	}
}

// newGate builds a semaphore with tokens pre-filled up to limit.
func newGate(limit int) chan struct{} {
	if limit <= 0 {
		limit = 1
	}
	g := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		g <- struct{}{}
	}
	return g
}

// Fetch performs one portal data request on behalf of userID and returns the
// raw result payload. Failures are typed: *portal.StatusError for
// worker-reported HTTP failures, portal.ErrTimeout when no response arrived
// in time.
func (b *Broker) Fetch(ctx context.Context, eventType string, userID int64, params map[string]string) ([]byte, error) {
	gate := b.fetchGate
	if portal.IsLogin(eventType) {
		gate = b.loginGate
	}

	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { gate <- struct{}{} }()

	// Spacing applies to every dispatch, even when the gate was idle.
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	task := Task{
		Correlation: uuid.NewString(),
		EventType:   eventType,
		UserID:      userID,
		Params:      params,
	}
	b.log.Debug("rpc call",
		logx.String("event_type", eventType),
		logx.Int64("user", userID),
		logx.String("correlation", task.Correlation),
	)

	resp, err := b.tr.Exchange(ctx, task, b.timeout)
	if err != nil {
		b.publishStat(eventbus.TypeRequestFailed, task, 0)
		return nil, err
	}
	if resp.Status >= 400 {
		b.publishStat(eventbus.TypeRequestFailed, task, resp.Status)
		raw := ""
		if resp.Status >= 500 {
			raw = resp.Raw
		}
		return nil, &portal.StatusError{Status: resp.Status, Raw: raw}
	}

	b.publishStat(eventbus.TypeRequestCompleted, task, resp.Status)
	return resp.Result, nil
}

func (b *Broker) publishStat(eventType string, task Task, status int) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(eventbus.Event{
		Type: eventType,
		Data: RequestStat{EventType: task.EventType, UserID: task.UserID, Status: status},
	})
}
