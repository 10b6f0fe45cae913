package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/orioks-monitoring/checking/internal/eventbus"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// ScheduledRequestsKey is the externally observed counter of portal requests
// ever dispatched through the broker. Observability only; nothing reads it
// for control decisions.
const ScheduledRequestsKey = "checking:stats:scheduled_requests"

// Stats listens for broker completion events and bumps the shared counter.
type Stats struct {
	rdb *redis.Client
	log logx.Logger
}

func NewStats(rdb *redis.Client, log logx.Logger) *Stats {
	return &Stats{rdb: rdb, log: log}
}

func (s *Stats) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.TypeRequestCompleted && ev.Type != eventbus.TypeRequestFailed {
				continue
			}
			if err := s.rdb.Incr(ctx, ScheduledRequestsKey).Err(); err != nil {
				s.log.Debug("stats increment failed", logx.Err(err))
			}
		}
	}
}
