// Package queue carries all Redis messaging: the notifier queue feeding the
// delivery subsystem, and the observability counters.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orioks-monitoring/checking/internal/model"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// NewClient connects to Redis. Connection failures are logged rather than
// fatal so the service can start before its broker does.
func NewClient(addr, password string, db int, log logx.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis not reachable yet", logx.String("addr", addr), logx.Err(err))
	}
	return rdb
}

// Envelope is the byte-serialized message pushed onto a routing-key list.
// The delivery subsystem orders consumption by the priority tag; durability
// is the transport's responsibility.
type Envelope struct {
	Priority model.Priority  `json:"priority"`
	SentAt   time.Time       `json:"sent_at"`
	Payload  json.RawMessage `json:"payload"`
}

type Producer struct {
	rdb *redis.Client
	log logx.Logger
}

func NewProducer(rdb *redis.Client, log logx.Logger) *Producer {
	return &Producer{rdb: rdb, log: log}
}

// Publish pushes one envelope onto the list named by routingKey.
func (p *Producer) Publish(ctx context.Context, routingKey string, payload []byte, priority model.Priority) error {
	body, err := json.Marshal(Envelope{
		Priority: priority,
		SentAt:   time.Now(),
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	if err := p.rdb.LPush(ctx, routingKey, body).Err(); err != nil {
		return err
	}
	p.log.Debug("message published",
		logx.String("queue", routingKey),
		logx.String("priority", priority.String()),
	)
	return nil
}
