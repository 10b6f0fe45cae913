// Package notify renders and publishes prioritized notification messages for
// the external delivery subsystem.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orioks-monitoring/checking/internal/model"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// Producer publishes a serialized envelope onto a routing key.
type Producer interface {
	Publish(ctx context.Context, routingKey string, payload []byte, priority model.Priority) error
}

// Message categories understood by the delivery subsystem.
const (
	CategoryMarkChange     = "mark_change"
	CategoryHomeworkChange = "homework_change"
	CategoryNewsChange     = "news_change"
	CategoryRequestChange  = "request_change"
	CategoryUserMessage    = "user_message"
	CategoryToAdmins       = "to_admins"
)

// payload is the rendered notification body. Either UserTelegramID or
// ToAdmins selects the audience.
type payload struct {
	Type           string `json:"type"`
	UserTelegramID int64  `json:"user_telegram_id,omitempty"`
	ToAdmins       bool   `json:"to_admins,omitempty"`
	Title          string `json:"title_text,omitempty"`
	Message        string `json:"message"`
	URL            string `json:"url,omitempty"`
}

type Dispatcher struct {
	producer   Producer
	routingKey string
	log        logx.Logger
	loc        *time.Location
}

func NewDispatcher(producer Producer, routingKey string, log logx.Logger) *Dispatcher {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.UTC
	}
	return &Dispatcher{
		producer:   producer,
		routingKey: routingKey,
		log:        log,
		loc:        loc,
	}
}

// SendToUser publishes one category message addressed to a single user.
func (d *Dispatcher) SendToUser(ctx context.Context, userID int64, category, title, text, url string, priority model.Priority) error {
	return d.publish(ctx, payload{
		Type:           category,
		UserTelegramID: userID,
		Title:          title,
		Message:        text,
		URL:            url,
	}, priority)
}

// SendToAdmins alerts every administrator. Admin traffic always rides the
// highest priority and is stamped with portal-local time.
func (d *Dispatcher) SendToAdmins(ctx context.Context, text string) error {
	stamped := fmt.Sprintf("%s\n<i>(%s)</i>", text, time.Now().In(d.loc).Format("02.01.2006 15:04:05"))
	return d.publish(ctx, payload{
		Type:     CategoryToAdmins,
		ToAdmins: true,
		Message:  stamped,
	}, model.PriorityHighest)
}

// SendForcedLogout tells a user their account was de-authenticated after
// repeated portal failures.
func (d *Dispatcher) SendForcedLogout(ctx context.Context, userID int64) error {
	text := "<b>Your account has been signed out.</b>\n" +
		"🔧 Repeated errors while fetching your data from the portal.\n" +
		"Please log in again: /login"
	return d.publish(ctx, payload{
		Type:           CategoryUserMessage,
		UserTelegramID: userID,
		Message:        text,
	}, model.PriorityHigh)
}

func (d *Dispatcher) publish(ctx context.Context, p payload, priority model.Priority) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := d.producer.Publish(ctx, d.routingKey, body, priority); err != nil {
		d.log.Warn("notification publish failed",
			logx.String("category", p.Type),
			logx.Int64("user", p.UserTelegramID),
			logx.Err(err),
		)
		return err
	}
	d.log.Debug("notification dispatched",
		logx.String("category", p.Type),
		logx.Int64("user", p.UserTelegramID),
		logx.String("priority", priority.String()),
	)
	return nil
}
