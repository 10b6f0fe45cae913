package diff

import (
	"errors"
	"testing"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/portal"
)

func snap(entries ...[2]string) *model.Snapshot {
	s := model.NewSnapshot()
	for _, e := range entries {
		s.Set(e[0], model.Item{Status: e[1]})
	}
	return s
}

func TestCompareStatusChange(t *testing.T) {
	t.Parallel()
	old := snap([2]string{"a", "-"}, [2]string{"b", "3"})
	fresh := model.NewSnapshot()
	fresh.Set("a", model.Item{Status: "5", Max: "8", About: model.About{Title: "Math"}})
	fresh.Set("b", model.Item{Status: "3"})

	events, err := Compare(model.ResourceMarks, old, fresh)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != model.StatusChanged {
		t.Fatalf("Kind = %v, want StatusChanged", ev.Kind)
	}
	if ev.ID != "a" || ev.NewStatus != "5" || ev.MaxStatus != "8" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.About.Title != "Math" {
		t.Fatalf("About not copied from new snapshot: %+v", ev.About)
	}
}

func TestCompareNewMessages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		oldMsgs int
		newMsgs int
		want    int
	}{
		{name: "increase", oldMsgs: 1, newMsgs: 3, want: 1},
		{name: "equal", oldMsgs: 2, newMsgs: 2, want: 0},
		{name: "decrease", oldMsgs: 3, newMsgs: 1, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := model.NewSnapshot()
			old.Set("t1", model.Item{Status: "open", NewMessages: tt.oldMsgs})
			fresh := model.NewSnapshot()
			fresh.Set("t1", model.Item{Status: "open", NewMessages: tt.newMsgs})

			events, err := Compare(model.ResourceHomeworks, old, fresh)
			if err != nil {
				t.Fatalf("Compare error: %v", err)
			}
			if len(events) != tt.want {
				t.Fatalf("got %d events, want %d", len(events), tt.want)
			}
			if tt.want == 1 {
				if events[0].Kind != model.NewMessage || events[0].NewMessages != tt.newMsgs {
					t.Fatalf("unexpected event: %+v", events[0])
				}
			}
		})
	}
}

// A status change and a counter increase on the same item must produce the
// status event only.
func TestCompareStatusTakesPrecedence(t *testing.T) {
	t.Parallel()
	old := model.NewSnapshot()
	old.Set("t1", model.Item{Status: "open", NewMessages: 0})
	fresh := model.NewSnapshot()
	fresh.Set("t1", model.Item{Status: "closed", NewMessages: 5})

	events, err := Compare(model.ResourceHomeworks, old, fresh)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != model.StatusChanged {
		t.Fatalf("expected single status event, got %+v", events)
	}
}

func TestCompareMissingOldItem(t *testing.T) {
	t.Parallel()
	old := snap([2]string{"a", "1"}, [2]string{"b", "2"})
	fresh := snap([2]string{"a", "1"})

	_, err := Compare(model.ResourceMarks, old, fresh)
	if !errors.Is(err, portal.ErrSnapshotIntegrity) {
		t.Fatalf("err = %v, want ErrSnapshotIntegrity", err)
	}
	if !portal.IsCheckFailure(err) {
		t.Fatal("integrity violation must count as a check failure")
	}
}

func TestCompareNewOnlyItemsSilent(t *testing.T) {
	t.Parallel()
	old := snap([2]string{"a", "1"})
	fresh := snap([2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})

	events, err := Compare(model.ResourceMarks, old, fresh)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("new-only items produced events: %+v", events)
	}
}

func TestCompareOrderFollowsOldSnapshot(t *testing.T) {
	t.Parallel()
	old := snap([2]string{"z", "1"}, [2]string{"a", "1"}, [2]string{"m", "1"})
	fresh := snap([2]string{"a", "2"}, [2]string{"m", "2"}, [2]string{"z", "2"})

	events, err := Compare(model.ResourceMarks, old, fresh)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	got := []string{events[0].ID, events[1].ID, events[2].ID}
	want := []string{"z", "a", "m"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event order = %v, want %v", got, want)
		}
	}
}
