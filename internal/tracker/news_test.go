package tracker

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/orioks-monitoring/checking/internal/parse"
	"github.com/orioks-monitoring/checking/internal/portal"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

func cursorDoc(t *testing.T, lastID int64) []byte {
	t.Helper()
	doc, err := json.Marshal(newsDoc{LastID: lastID})
	if err != nil {
		t.Fatalf("marshal cursor: %v", err)
	}
	return doc
}

func storedCursor(t *testing.T, snaps *fakeSnapshots, userID int64) int64 {
	t.Helper()
	doc, ok := snaps.docs[snapKey(userID, "news", "")]
	if !ok {
		t.Fatal("news cursor missing")
	}
	var nd newsDoc
	if err := json.Unmarshal(doc, &nd); err != nil {
		t.Fatalf("cursor unreadable: %v", err)
	}
	return nd.LastID
}

func TestProbeNews(t *testing.T) {
	t.Parallel()
	ff := &fakeFetcher{results: map[string]fetchResult{
		portal.EventNews:                  {raw: []byte(`{"ids": [6, 8, 7]}`)},
		portal.EventNewsIndividual + ":8": {raw: []byte(`{"headline": "Latest"}`)},
	}}
	tr := New(ff, newFakeSnapshots(), &fakeNotifier{}, logx.Nop())

	actual, err := tr.ProbeNews(context.Background(), 1)
	if err != nil {
		t.Fatalf("ProbeNews: %v", err)
	}
	if actual.LatestID != 8 || actual.Latest.Headline != "Latest" {
		t.Fatalf("actual = %+v", actual)
	}
	if !actual.Visible[6] || !actual.Visible[7] || actual.Visible[9] {
		t.Fatalf("visible = %v", actual.Visible)
	}
}

func TestCheckNewsColdStart(t *testing.T) {
	t.Parallel()
	snaps := newFakeSnapshots()
	no := &fakeNotifier{}
	tr := New(&fakeFetcher{}, snaps, no, logx.Nop())

	actual := parse.ActualNews{LatestID: 8, Visible: map[int64]bool{8: true}}
	if err := tr.CheckNewsFromProbe(context.Background(), 1, actual); err != nil {
		t.Fatalf("CheckNewsFromProbe: %v", err)
	}
	if len(no.sent) != 0 {
		t.Fatalf("cold start must not notify: %+v", no.sent)
	}
	if got := storedCursor(t, snaps, 1); got != 8 {
		t.Fatalf("cursor = %d, want 8", got)
	}
}

func TestCheckNewsNoChange(t *testing.T) {
	t.Parallel()
	snaps := newFakeSnapshots()
	snaps.docs[snapKey(1, "news", "")] = cursorDoc(t, 8)
	no := &fakeNotifier{}
	tr := New(&fakeFetcher{}, snaps, no, logx.Nop())

	actual := parse.ActualNews{LatestID: 8, Visible: map[int64]bool{8: true}}
	if err := tr.CheckNewsFromProbe(context.Background(), 1, actual); err != nil {
		t.Fatalf("CheckNewsFromProbe: %v", err)
	}
	if len(no.sent) != 0 || len(snaps.puts) != 0 {
		t.Fatalf("no-op cycle had side effects: sent=%+v puts=%v", no.sent, snaps.puts)
	}
}

// The walk covers every id between the cursor and the probed maximum, in
// order, skipping unpublished ids and reusing the probe's detail for the
// latest entry instead of refetching it.
func TestCheckNewsWalk(t *testing.T) {
	t.Parallel()
	ff := &fakeFetcher{results: map[string]fetchResult{
		portal.EventNewsIndividual + ":6": {raw: []byte(`{"headline": "Entry six"}`)},
	}}
	snaps := newFakeSnapshots()
	snaps.docs[snapKey(1, "news", "")] = cursorDoc(t, 5)
	no := &fakeNotifier{}
	tr := New(ff, snaps, no, logx.Nop())

	actual := parse.ActualNews{
		LatestID: 8,
		Visible:  map[int64]bool{6: true, 8: true}, // 7 is unpublished
		Latest:   parse.NewsItem{ID: 8, Headline: "Entry eight", URL: portal.NewsURL(8)},
	}
	if err := tr.CheckNewsFromProbe(context.Background(), 1, actual); err != nil {
		t.Fatalf("CheckNewsFromProbe: %v", err)
	}

	if len(no.sent) != 2 {
		t.Fatalf("sent = %+v, want entries 6 and 8", no.sent)
	}
	if !strings.Contains(no.sent[0].text, "Entry six") || !strings.Contains(no.sent[1].text, "Entry eight") {
		t.Fatalf("wrong order or content: %+v", no.sent)
	}
	for _, call := range ff.calls {
		if call == portal.EventNewsIndividual+":8" {
			t.Fatal("latest entry was refetched instead of reusing the probe")
		}
	}
	if got := storedCursor(t, snaps, 1); got != 8 {
		t.Fatalf("cursor = %d, want 8", got)
	}
	// Incremental persistence: one put per walked id.
	if len(snaps.puts) != 3 {
		t.Fatalf("puts = %v, want one per id", snaps.puts)
	}
}

func TestCheckNewsUnreadableEntrySkipped(t *testing.T) {
	t.Parallel()
	ff := &fakeFetcher{results: map[string]fetchResult{
		portal.EventNewsIndividual + ":6": {raw: []byte(`{"headline": ""}`)},
	}}
	snaps := newFakeSnapshots()
	snaps.docs[snapKey(1, "news", "")] = cursorDoc(t, 5)
	no := &fakeNotifier{}
	tr := New(ff, snaps, no, logx.Nop())

	actual := parse.ActualNews{
		LatestID: 7,
		Visible:  map[int64]bool{6: true, 7: true},
		Latest:   parse.NewsItem{ID: 7, Headline: "Entry seven", URL: portal.NewsURL(7)},
	}
	if err := tr.CheckNewsFromProbe(context.Background(), 1, actual); err != nil {
		t.Fatalf("CheckNewsFromProbe: %v", err)
	}
	if len(no.sent) != 1 || !strings.Contains(no.sent[0].text, "Entry seven") {
		t.Fatalf("sent = %+v, want only entry seven", no.sent)
	}
	if got := storedCursor(t, snaps, 1); got != 7 {
		t.Fatalf("cursor = %d, want 7", got)
	}
}

func TestCheckNewsCursorAheadOfPortal(t *testing.T) {
	t.Parallel()
	snaps := newFakeSnapshots()
	snaps.docs[snapKey(1, "news", "")] = cursorDoc(t, 10)
	no := &fakeNotifier{}
	tr := New(&fakeFetcher{}, snaps, no, logx.Nop())

	actual := parse.ActualNews{LatestID: 8, Visible: map[int64]bool{8: true}}
	err := tr.CheckNewsFromProbe(context.Background(), 1, actual)
	if err == nil {
		t.Fatal("expected error for a backwards cursor")
	}
	if len(no.admins) != 1 {
		t.Fatalf("admin alerts = %v, want one", no.admins)
	}
	if got := storedCursor(t, snaps, 1); got != 10 {
		t.Fatalf("cursor silently repaired to %d", got)
	}
}

// Re-running the same probe after a completed walk produces nothing new.
func TestCheckNewsIdempotent(t *testing.T) {
	t.Parallel()
	snaps := newFakeSnapshots()
	snaps.docs[snapKey(1, "news", "")] = cursorDoc(t, 5)
	no := &fakeNotifier{}
	tr := New(&fakeFetcher{}, snaps, no, logx.Nop())

	actual := parse.ActualNews{
		LatestID: 6,
		Visible:  map[int64]bool{6: true},
		Latest:   parse.NewsItem{ID: 6, Headline: "Entry six", URL: portal.NewsURL(6)},
	}
	ctx := context.Background()
	if err := tr.CheckNewsFromProbe(ctx, 1, actual); err != nil {
		t.Fatalf("first walk: %v", err)
	}
	if err := tr.CheckNewsFromProbe(ctx, 1, actual); err != nil {
		t.Fatalf("second walk: %v", err)
	}
	if len(no.sent) != 1 {
		t.Fatalf("sent = %+v, want exactly one notification", no.sent)
	}
}
