// Package parse normalizes raw payloads from the remote request worker into
// canonical snapshots. All tolerance for alternate upstream encodings lives
// here; the diff engine only ever sees the canonical shape.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/orioks-monitoring/checking/internal/model"
	"github.com/orioks-monitoring/checking/internal/portal"
)

type marksPayload struct {
	Dises json.RawMessage `json:"dises"`
}

type discipline struct {
	Name        string `json:"name"`
	FormControl struct {
		Name string `json:"name"`
	} `json:"formControl"`
	Segments []struct {
		AllKms []controlMark `json:"allKms"`
	} `json:"segments"`
}

type controlMark struct {
	ID      int64           `json:"id"`
	Alias   json.RawMessage `json:"sh"`
	MaxBall json.RawMessage `json:"max_ball"`
	Grade   struct {
		Ball json.RawMessage `json:"b"`
	} `json:"grade"`
}

// Marks normalizes a marks payload into a canonical snapshot, one item per
// (discipline, control mark) pair keyed "discipline/alias".
//
// The portal has shipped two encodings of the discipline collection: a JSON
// array and an object keyed by stringified indexes. Both are accepted here;
// the keyed form is ordered numerically to keep snapshots deterministic.
func Marks(raw []byte) (*model.Snapshot, error) {
	var payload marksPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &portal.ParseError{Resource: "marks", Err: err}
	}
	if len(payload.Dises) == 0 {
		return nil, &portal.ParseError{Resource: "marks", Err: errors.New("empty dises")}
	}

	disciplines, err := decodeDisciplines(payload.Dises)
	if err != nil {
		return nil, &portal.ParseError{Resource: "marks", Err: err}
	}
	if len(disciplines) == 0 {
		return nil, &portal.ParseError{Resource: "marks", Err: errors.New("no disciplines")}
	}

	snap := model.NewSnapshot()
	for _, dis := range disciplines {
		var kms []controlMark
		for _, seg := range dis.Segments {
			kms = seg.AllKms
			break // only the current segment is listed first
		}
		for i, km := range kms {
			alias := scalarString(km.Alias)
			// Some disciplines leave the final control mark unaliased; fall
			// back to the exam form name.
			if isBlankAlias(alias) && i == len(kms)-1 {
				alias = dis.FormControl.Name
			}
			snap.Set(dis.Name+"/"+alias, model.Item{
				Status: scalarString(km.Grade.Ball),
				Max:    scalarString(km.MaxBall),
				About: model.About{
					Title:    dis.Name,
					Subtitle: alias,
					URL:      portal.MarksURL,
				},
			})
		}
	}
	return snap, nil
}

func decodeDisciplines(raw json.RawMessage) ([]discipline, error) {
	var asList []discipline
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asMap map[string]discipline
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("dises is neither a list nor a keyed object: %w", err)
	}
	keys := make([]string, 0, len(asMap))
	for k := range asMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	out := make([]discipline, 0, len(keys))
	for _, k := range keys {
		out = append(out, asMap[k])
	}
	return out, nil
}

// scalarString renders a JSON scalar (number, string or null) as a plain
// string. Grades arrive as numbers for assessed marks and "-" otherwise.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Trim(string(raw), `"`)
}

func isBlankAlias(alias string) bool {
	switch strings.TrimSpace(alias) {
	case "", "-":
		return true
	}
	return false
}
