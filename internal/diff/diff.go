// Package diff turns "old snapshot vs new snapshot" into discrete change
// events, one pass per tracked resource.
package diff

import (
	"fmt"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/portal"
)

// Compare walks old's identifiers in insertion order and emits at most one
// event per identifier:
//
//   - an identifier present in old but absent from new fails the whole
//     comparison with portal.ErrSnapshotIntegrity (the baseline is stale,
//     never a deletion);
//   - a status difference emits StatusChanged;
//   - otherwise a strictly increased unread counter emits NewMessage.
//
// Identifiers appearing only in new produce no event; they are picked up when
// the new snapshot replaces the old one at the end of the cycle.
func Compare(resource model.Resource, old, new *model.Snapshot) ([]model.ChangeEvent, error) {
	var events []model.ChangeEvent
	for _, id := range old.IDs() {
		oldItem, _ := old.Get(id)
		newItem, ok := new.Get(id)
		if !ok {
			return nil, fmt.Errorf("%s item %q: %w", resource, id, portal.ErrSnapshotIntegrity)
		}

		switch {
		case oldItem.Status != newItem.Status:
			events = append(events, model.ChangeEvent{
				Kind:      model.StatusChanged,
				Resource:  resource,
				ID:        id,
				NewStatus: newItem.Status,
				MaxStatus: newItem.Max,
				About:     newItem.About,
			})
		case newItem.NewMessages > oldItem.NewMessages:
			events = append(events, model.ChangeEvent{
				Kind:        model.NewMessage,
				Resource:    resource,
				ID:          id,
				NewMessages: newItem.NewMessages,
				About:       newItem.About,
			})
		}
	}
	return events, nil
}
