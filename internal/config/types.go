package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Redis     RedisConfig     `json:"redis"`
	Queues    QueuesConfig    `json:"queues,omitempty"`
	Portal    PortalConfig    `json:"portal,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Database  DatabaseConfig  `json:"database"`
	Logout    LogoutConfig    `json:"logout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RedisConfig points at the broker/notifier transport.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// QueuesConfig names the Redis lists used for messaging.
//
// Notifier is the routing key consumed by the delivery subsystem. Requests is
// the list the remote request worker pops task descriptors from; replies come
// back on a per-call list derived from ReplyPrefix plus the correlation token.
type QueuesConfig struct {
	Notifier    string `json:"notifier,omitempty"`     // default: "notifier"
	Requests    string `json:"requests,omitempty"`     // default: "orioks_requests"
	ReplyPrefix string `json:"reply_prefix,omitempty"` // default: "orioks_requests:reply:"
}

// PortalConfig controls how outbound portal traffic is paced.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
//
// Defaults (when fields are omitted/zero):
//   - seconds_between_requests: "1500ms"
//   - request_gate: 1
//   - login_gate: 1
//   - max_failed_requests: 50
//   - rpc_timeout: "10s"
type PortalConfig struct {
	SecondsBetweenRequests string `json:"seconds_between_requests,omitempty"`
	RequestGate            int    `json:"request_gate,omitempty"`
	LoginGate              int    `json:"login_gate,omitempty"`
	MaxFailedRequests      int    `json:"max_failed_requests,omitempty"`
	RPCTimeout             string `json:"rpc_timeout,omitempty"`
}

// SchedulerConfig controls the check cycle trigger.
//
// Schedule accepts a Go duration ("1s", "2m30s") or a cron expression
// ("*/5 * * * *"); see ParseSchedule. NewsProbeAttempts bounds how many random
// subscribers are probed for the shared news state before giving up for a
// cycle.
type SchedulerConfig struct {
	Schedule          string `json:"schedule,omitempty"`            // default: "1s"
	NewsProbeAttempts int    `json:"news_probe_attempts,omitempty"` // default: 10
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// LogoutConfig points at the external de-authentication service.
// URL must contain the {user_telegram_id} placeholder.
type LogoutConfig struct {
	URL    string `json:"url"`
	Header string `json:"header,omitempty"` // default: "X-Auth-Token"
	Token  string `json:"token"`
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if u := strings.TrimSpace(c.Logout.URL); u != "" && !strings.Contains(u, "{user_telegram_id}") {
		return fmt.Errorf("logout.url must contain {user_telegram_id}: %q", u)
	}
	if _, err := c.RequestSpacing(); err != nil {
		return err
	}
	if _, err := c.RPCTimeout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) NotifierQueue() string {
	if v := strings.TrimSpace(c.Queues.Notifier); v != "" {
		return v
	}
	return "notifier"
}

func (c *Config) RequestsQueue() string {
	if v := strings.TrimSpace(c.Queues.Requests); v != "" {
		return v
	}
	return "orioks_requests"
}

func (c *Config) ReplyPrefix() string {
	if v := strings.TrimSpace(c.Queues.ReplyPrefix); v != "" {
		return v
	}
	return "orioks_requests:reply:"
}
