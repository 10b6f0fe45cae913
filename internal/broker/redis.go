package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// RedisTransport exchanges tasks with the remote request worker over Redis
// lists: the task goes onto a shared request list, the response comes back on
// a per-correlation reply list popped with a bounded blocking wait.
type RedisTransport struct {
	rdb         *redis.Client
	requests    string
	replyPrefix string
	log         logx.Logger
}

func NewRedisTransport(rdb *redis.Client, requestsQueue, replyPrefix string, log logx.Logger) *RedisTransport {
	return &RedisTransport{
		rdb:         rdb,
		requests:    requestsQueue,
		replyPrefix: replyPrefix,
		log:         log,
	}
}

func (t *RedisTransport) Exchange(ctx context.Context, task Task, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	replyKey := t.replyPrefix + task.Correlation
	task.ReplyTo = replyKey

	body, err := json.Marshal(task)
	if err != nil {
		return Response{}, err
	}
	if err := t.rdb.LPush(ctx, t.requests, body).Err(); err != nil {
		return Response{}, fmt.Errorf("push request: %w", err)
	}

	res, err := t.rdb.BLPop(ctx, timeout, replyKey).Result()
	if errors.Is(err, redis.Nil) {
		// Clear the correlation registration so a late reply doesn't linger.
		dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = t.rdb.Del(dctx, replyKey).Err()
		cancel()
		return Response{}, portal.ErrTimeout
	}
	if err != nil {
		return Response{}, fmt.Errorf("await reply: %w", err)
	}
	if len(res) < 2 {
		return Response{}, fmt.Errorf("malformed reply for %s", task.Correlation)
	}

	var resp Response
	if err := json.Unmarshal([]byte(res[1]), &resp); err != nil {
		return Response{}, fmt.Errorf("decode reply: %w", err)
	}
	if resp.Correlation != "" && resp.Correlation != task.Correlation {
		return Response{}, fmt.Errorf("correlation mismatch: got %s want %s", resp.Correlation, task.Correlation)
	}
	return resp, nil
}
