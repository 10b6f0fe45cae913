package tracker

import (
	"context"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/notify"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// CheckHomeworks runs one homework-threads pass for userID.
func (t *Tracker) CheckHomeworks(ctx context.Context, userID int64) error {
	return t.checkKeyed(ctx, userID, keyedCheck{
		resource:  model.ResourceHomeworks,
		eventType: portal.EventHomeworks,
		parse:     parse.Homeworks,
		notify:    t.notifyHomeworks,
	})
}

// notifyHomeworks aggregates all thread changes of one pass into one message.
func (t *Tracker) notifyHomeworks(ctx context.Context, userID int64, events []model.ChangeEvent) error {
	r, ok := notify.RenderThreads(events)
	if !ok {
		return nil
	}
	return t.notifier.SendToUser(ctx, userID, notify.CategoryHomeworkChange,
		"", r.Text, r.URL, model.PriorityLow)
}
