// Package tracker runs the per-user, per-resource change checks: fetch the
// current portal state, compare it against the stored baseline, dispatch
// notifications for what changed, and persist the new baseline.
package tracker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/orioks-monitoring/checking/internal/diff"
	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// Fetcher performs one portal data request.
type Fetcher interface {
	Fetch(ctx context.Context, eventType string, userID int64, params map[string]string) ([]byte, error)
}

// Snapshots persists per-user baseline documents.
type Snapshots interface {
	Get(ctx context.Context, userID int64, collection, section string) ([]byte, bool, error)
	Put(ctx context.Context, userID int64, collection, section string, doc []byte) error
	Delete(ctx context.Context, userID int64, collection, section string) error
	DeleteCollection(ctx context.Context, userID int64, collection string) error
}

// Notifier delivers rendered change notifications.
type Notifier interface {
	SendToUser(ctx context.Context, userID int64, category, title, text, url string, priority model.Priority) error
	SendToAdmins(ctx context.Context, text string) error
}

type Tracker struct {
	fetcher   Fetcher
	snapshots Snapshots
	notifier  Notifier
	log       logx.Logger
}

func New(fetcher Fetcher, snapshots Snapshots, notifier Notifier, log logx.Logger) *Tracker {
	return &Tracker{fetcher: fetcher, snapshots: snapshots, notifier: notifier, log: log}
}

// keyedCheck describes one keyed-resource pass.
type keyedCheck struct {
	resource  model.Resource
	eventType string
	section   string
	parse     func(raw []byte) (*model.Snapshot, error)
	notify    func(ctx context.Context, userID int64, events []model.ChangeEvent) error
}

// checkKeyed is the shared keyed-resource flow.
//
// A client-side fetch failure or an unparseable payload invalidates the stored
// baseline: the portal served something we cannot trust, so the baseline is
// dropped and the error propagates as a check failure. Server-side failures
// and timeouts leave the baseline in place. A fresh state with no baseline is
// stored without notifying. A baseline identifier missing from the fresh
// state persists the fresh snapshot and still fails the check, so one stale
// baseline cannot suppress or fabricate events on the next pass.
func (t *Tracker) checkKeyed(ctx context.Context, userID int64, c keyedCheck) error {
	collection := string(c.resource)

	raw, err := t.fetcher.Fetch(ctx, c.eventType, userID, nil)
	if err != nil {
		var se *portal.StatusError
		if errors.As(err, &se) && se.ClientSide() {
			t.dropBaseline(ctx, userID, collection, c.section)
		}
		return err
	}

	fresh, err := c.parse(raw)
	if err != nil {
		t.dropBaseline(ctx, userID, collection, c.section)
		return err
	}
	freshDoc, err := json.Marshal(fresh)
	if err != nil {
		return err
	}

	oldDoc, ok, err := t.snapshots.Get(ctx, userID, collection, c.section)
	if err != nil {
		return err
	}
	if !ok {
		return t.snapshots.Put(ctx, userID, collection, c.section, freshDoc)
	}

	old := model.NewSnapshot()
	if err := json.Unmarshal(oldDoc, old); err != nil {
		t.log.Warn("stored baseline unreadable, replacing",
			logx.Int64("user", userID),
			logx.String("collection", collection),
			logx.Err(err),
		)
		return t.snapshots.Put(ctx, userID, collection, c.section, freshDoc)
	}

	events, err := diff.Compare(c.resource, old, fresh)
	if err != nil {
		if perr := t.snapshots.Put(ctx, userID, collection, c.section, freshDoc); perr != nil {
			t.log.Error("baseline replace failed", logx.Int64("user", userID), logx.Err(perr))
		}
		return err
	}
	if len(events) > 0 {
		if err := c.notify(ctx, userID, events); err != nil {
			return err
		}
	}
	return t.snapshots.Put(ctx, userID, collection, c.section, freshDoc)
}

func (t *Tracker) dropBaseline(ctx context.Context, userID int64, collection, section string) {
	if err := t.snapshots.Delete(ctx, userID, collection, section); err != nil {
		t.log.Error("baseline delete failed",
			logx.Int64("user", userID),
			logx.String("collection", collection),
			logx.Err(err),
		)
	}
}
