package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron},
		{name: "descriptor", raw: "@hourly", kind: SpecCron},
		{name: "duration", raw: "10m", kind: SpecInterval, duration: 10 * time.Minute},
		{name: "seconds", raw: "1s", kind: SpecInterval, duration: time.Second},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, duration: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
			if tt.kind == SpecCron && got.Cron == nil {
				t.Fatal("cron schedule not compiled")
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5s", "cron:", "99:99"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) accepted", raw)
		}
	}
}

func TestNextInterval(t *testing.T) {
	t.Parallel()
	spec, err := ParseSchedule("30s")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if got := spec.Next(now); !got.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("Next = %v", got)
	}
}

func TestNextCron(t *testing.T) {
	t.Parallel()
	spec, err := ParseSchedule("0 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	want := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	if got := spec.Next(now); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
