package tracker

import (
	"context"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/notify"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// CheckRequests runs one pass over every request sub-section, in order. The
// first failing section aborts the rest; each section keeps its own baseline.
func (t *Tracker) CheckRequests(ctx context.Context, userID int64) error {
	for _, section := range portal.RequestSections {
		section := section
		err := t.checkKeyed(ctx, userID, keyedCheck{
			resource:  model.ResourceRequests,
			eventType: portal.EventRequests(section),
			section:   section,
			parse: func(raw []byte) (*model.Snapshot, error) {
				return parse.Requests(section, raw)
			},
			notify: func(ctx context.Context, userID int64, events []model.ChangeEvent) error {
				return t.notifyRequests(ctx, userID, events)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) notifyRequests(ctx context.Context, userID int64, events []model.ChangeEvent) error {
	r, ok := notify.RenderThreads(events)
	if !ok {
		return nil
	}
	return t.notifier.SendToUser(ctx, userID, notify.CategoryRequestChange,
		"", r.Text, r.URL, model.PriorityLow)
}
