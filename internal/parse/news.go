package parse

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/orioks-monitoring/checking/internal/portal"
)

// NewsItem is one published news entry.
type NewsItem struct {
	ID       int64
	Headline string
	URL      string
}

// ActualNews is the probe result shared across all news subscribers for one
// cycle: every currently visible identifier, the maximum identifier, and the
// already-fetched detail of the latest entry.
type ActualNews struct {
	LatestID int64
	Visible  map[int64]bool
	Latest   NewsItem
}

type newsListPayload struct {
	IDs []int64 `json:"ids"`
}

type newsDetailPayload struct {
	Headline string `json:"headline"`
}

// NewsList normalizes the front-page news listing into the visible identifier
// set and the maximum identifier.
func NewsList(raw []byte) (latestID int64, visible map[int64]bool, err error) {
	var payload newsListPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, nil, &portal.ParseError{Resource: "news", Err: err}
	}
	if len(payload.IDs) == 0 {
		return 0, nil, &portal.ParseError{Resource: "news", Err: errors.New("no visible news")}
	}

	visible = make(map[int64]bool, len(payload.IDs))
	for _, id := range payload.IDs {
		visible[id] = true
		if id > latestID {
			latestID = id
		}
	}
	return latestID, visible, nil
}

// NewsDetail normalizes a single news entry payload.
func NewsDetail(id int64, raw []byte) (NewsItem, error) {
	var payload newsDetailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NewsItem{}, &portal.ParseError{Resource: "news-individual", Err: err}
	}
	if strings.TrimSpace(payload.Headline) == "" {
		return NewsItem{}, &portal.ParseError{Resource: "news-individual", Err: errors.New("empty headline")}
	}
	return NewsItem{
		ID:       id,
		Headline: payload.Headline,
		URL:      portal.NewsURL(id),
	}, nil
}
