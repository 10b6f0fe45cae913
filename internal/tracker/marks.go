package tracker

import (
	"context"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/notify"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// CheckMarks runs one marks pass for userID.
func (t *Tracker) CheckMarks(ctx context.Context, userID int64) error {
	return t.checkKeyed(ctx, userID, keyedCheck{
		resource:  model.ResourceMarks,
		eventType: portal.EventMarks,
		parse:     parse.Marks,
		notify:    t.notifyMarks,
	})
}

// notifyMarks sends one message per changed discipline.
func (t *Tracker) notifyMarks(ctx context.Context, userID int64, events []model.ChangeEvent) error {
	for _, r := range notify.RenderMarks(events) {
		err := t.notifier.SendToUser(ctx, userID, notify.CategoryMarkChange,
			r.Title, r.Text, r.URL, model.PriorityLow)
		if err != nil {
			return err
		}
	}
	return nil
}
