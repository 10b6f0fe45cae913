package parse

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// threadRow is one row of a thread listing (homeworks or requests) as
// extracted by the remote worker.
type threadRow struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	NewMessages int    `json:"new_messages"`
	Discipline  string `json:"discipline,omitempty"`
	Task        string `json:"task,omitempty"`
	Name        string `json:"name,omitempty"`
}

type threadsPayload struct {
	Threads []threadRow `json:"threads"`
}

// Homeworks normalizes a homework listing payload. Items are keyed by thread
// id; the task name is the display title, the discipline its subtitle.
func Homeworks(raw []byte) (*model.Snapshot, error) {
	rows, err := decodeThreads(raw)
	if err != nil {
		return nil, &portal.ParseError{Resource: "homeworks", Err: err}
	}

	snap := model.NewSnapshot()
	for _, row := range rows {
		snap.Set(row.ID, model.Item{
			Status:      row.Status,
			NewMessages: row.NewMessages,
			About: model.About{
				Title:    row.Task,
				Subtitle: row.Discipline,
				URL:      portal.HomeworkURL(row.ID),
			},
		})
	}
	return snap, nil
}

// Requests normalizes a request listing payload for one sub-section.
func Requests(section string, raw []byte) (*model.Snapshot, error) {
	rows, err := decodeThreads(raw)
	if err != nil {
		return nil, &portal.ParseError{Resource: "requests-" + section, Err: err}
	}

	snap := model.NewSnapshot()
	for _, row := range rows {
		snap.Set(row.ID, model.Item{
			Status:      row.Status,
			NewMessages: row.NewMessages,
			About: model.About{
				Title: row.Name,
				URL:   portal.RequestURL(section, row.ID),
			},
		})
	}
	return snap, nil
}

func decodeThreads(raw []byte) ([]threadRow, error) {
	var payload threadsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Threads == nil {
		return nil, errors.New("missing threads table")
	}
	for _, row := range payload.Threads {
		if strings.TrimSpace(row.ID) == "" {
			return nil, errors.New("thread row without id")
		}
	}
	return payload.Threads, nil
}
