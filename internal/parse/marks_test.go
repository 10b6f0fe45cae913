package parse

import (
	"errors"
	"testing"

	"github.com/orioks-monitoring/checking/internal/portal"
)

const marksListPayload = `{
  "dises": [
    {
      "name": "Mathematics",
      "formControl": {"name": "Exam"},
      "segments": [
        {"allKms": [
          {"id": 1, "sh": "HW1", "max_ball": 10, "grade": {"b": 7}},
          {"id": 2, "sh": "-", "max_ball": 30, "grade": {"b": "-"}}
        ]}
      ]
    }
  ]
}`

func TestMarksListEncoding(t *testing.T) {
	t.Parallel()
	snap, err := Marks([]byte(marksListPayload))
	if err != nil {
		t.Fatalf("Marks error: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("Len = %d, want 2", snap.Len())
	}

	it, ok := snap.Get("Mathematics/HW1")
	if !ok {
		t.Fatalf("missing keyed item, ids: %v", snap.IDs())
	}
	if it.Status != "7" || it.Max != "10" {
		t.Fatalf("item = %+v", it)
	}

	// Unaliased final control mark falls back to the exam form name.
	if _, ok := snap.Get("Mathematics/Exam"); !ok {
		t.Fatalf("exam fallback missing, ids: %v", snap.IDs())
	}
}

func TestMarksKeyedEncoding(t *testing.T) {
	t.Parallel()
	payload := `{
	  "dises": {
	    "10": {"name": "Physics", "formControl": {"name": "Test"}, "segments": [{"allKms": [{"id": 1, "sh": "Lab", "max_ball": 5, "grade": {"b": 4}}]}]},
	    "2": {"name": "Chemistry", "formControl": {"name": "Test"}, "segments": [{"allKms": [{"id": 2, "sh": "Lab", "max_ball": 5, "grade": {"b": "-"}}]}]}
	  }
	}`
	snap, err := Marks([]byte(payload))
	if err != nil {
		t.Fatalf("Marks error: %v", err)
	}
	ids := snap.IDs()
	if len(ids) != 2 {
		t.Fatalf("Len = %d, want 2", len(ids))
	}
	// Keys order numerically: "2" before "10".
	if ids[0] != "Chemistry/Lab" || ids[1] != "Physics/Lab" {
		t.Fatalf("order = %v", ids)
	}
}

func TestMarksBadPayload(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `<html>`},
		{name: "missing dises", raw: `{}`},
		{name: "empty dises", raw: `{"dises": []}`},
		{name: "scalar dises", raw: `{"dises": 42}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Marks([]byte(tt.raw))
			var pe *portal.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want ParseError", err)
			}
			if pe.Resource != "marks" {
				t.Fatalf("Resource = %s, want marks", pe.Resource)
			}
			if !portal.IsCheckFailure(err) {
				t.Fatal("parse failure must count as a check failure")
			}
		})
	}
}

func TestScalarString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `7`, want: "7"},
		{raw: `7.5`, want: "7.5"},
		{raw: `"-"`, want: "-"},
		{raw: `null`, want: ""},
		{raw: ``, want: ""},
	}
	for _, tt := range tests {
		if got := scalarString([]byte(tt.raw)); got != tt.want {
			t.Fatalf("scalarString(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
