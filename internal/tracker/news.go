package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/notify"
	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

// newsDoc is the persisted news cursor: the highest identifier already
// processed for the user.
type newsDoc struct {
	LastID int64 `json:"last_id"`
}

// ProbeNews fetches the news listing and the latest entry's detail under
// userID's session. The result is shared across every news subscriber of the
// cycle, so the listing is fetched once, not per user.
func (t *Tracker) ProbeNews(ctx context.Context, userID int64) (parse.ActualNews, error) {
	raw, err := t.fetcher.Fetch(ctx, portal.EventNews, userID, nil)
	if err != nil {
		return parse.ActualNews{}, err
	}
	latestID, visible, err := parse.NewsList(raw)
	if err != nil {
		return parse.ActualNews{}, err
	}

	detailRaw, err := t.fetcher.Fetch(ctx, portal.EventNewsIndividual, userID,
		map[string]string{"news_id": strconv.FormatInt(latestID, 10)})
	if err != nil {
		return parse.ActualNews{}, err
	}
	latest, err := parse.NewsDetail(latestID, detailRaw)
	if err != nil {
		return parse.ActualNews{}, err
	}

	return parse.ActualNews{LatestID: latestID, Visible: visible, Latest: latest}, nil
}

// CheckNewsFromProbe advances one user's news cursor toward the probed state,
// notifying per published entry. The cursor persists after every processed
// identifier, so an interrupted walk resumes where it stopped instead of
// re-notifying. A cursor ahead of the probe means the portal renumbered or
// rolled back; that is escalated, not silently repaired.
func (t *Tracker) CheckNewsFromProbe(ctx context.Context, userID int64, actual parse.ActualNews) error {
	doc, ok, err := t.snapshots.Get(ctx, userID, string(model.ResourceNews), "")
	if err != nil {
		return err
	}
	if !ok {
		return t.putNewsCursor(ctx, userID, actual.LatestID)
	}

	var stored newsDoc
	if err := json.Unmarshal(doc, &stored); err != nil {
		t.log.Warn("news cursor unreadable, replacing",
			logx.Int64("user", userID), logx.Err(err))
		return t.putNewsCursor(ctx, userID, actual.LatestID)
	}

	if stored.LastID == actual.LatestID {
		return nil
	}
	if stored.LastID > actual.LatestID {
		alert := fmt.Sprintf("⚠️ News id went backwards for user <code>%d</code>: stored <code>%d</code>, portal <code>%d</code>",
			userID, stored.LastID, actual.LatestID)
		if err := t.notifier.SendToAdmins(ctx, alert); err != nil {
			t.log.Error("admin alert failed", logx.Err(err))
		}
		return fmt.Errorf("news cursor %d ahead of portal %d for user %d",
			stored.LastID, actual.LatestID, userID)
	}

	for id := stored.LastID + 1; id <= actual.LatestID; id++ {
		if !actual.Visible[id] {
			t.log.Info("skipping unpublished news entry",
				logx.Int64("user", userID), logx.Int64("news_id", id))
			if err := t.putNewsCursor(ctx, userID, id); err != nil {
				return err
			}
			continue
		}

		var item parse.NewsItem
		if id == actual.LatestID {
			item = actual.Latest
		} else {
			detailRaw, err := t.fetcher.Fetch(ctx, portal.EventNewsIndividual, userID,
				map[string]string{"news_id": strconv.FormatInt(id, 10)})
			if err != nil {
				return err
			}
			item, err = parse.NewsDetail(id, detailRaw)
			if err != nil {
				t.log.Warn("news entry unreadable, skipping",
					logx.Int64("user", userID), logx.Int64("news_id", id), logx.Err(err))
				if perr := t.putNewsCursor(ctx, userID, id); perr != nil {
					return perr
				}
				continue
			}
		}

		r := notify.RenderNews(item)
		err := t.notifier.SendToUser(ctx, userID, notify.CategoryNewsChange,
			item.Headline, r.Text, r.URL, model.PriorityMedium)
		if err != nil {
			return err
		}
		if err := t.putNewsCursor(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) putNewsCursor(ctx context.Context, userID, lastID int64) error {
	doc, err := json.Marshal(newsDoc{LastID: lastID})
	if err != nil {
		return err
	}
	return t.snapshots.Put(ctx, userID, string(model.ResourceNews), "", doc)
}
