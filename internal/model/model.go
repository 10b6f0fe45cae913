package model

import (
	"encoding/json"
	"fmt"
)

// Resource is an independently tracked category of portal state.
type Resource string

const (
	ResourceMarks     Resource = "marks"
	ResourceHomeworks Resource = "homeworks"
	ResourceNews      Resource = "news"
	ResourceRequests  Resource = "requests"
)

// Priority orders notification delivery downstream. Higher wins.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
	PriorityHighest
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityVeryHigh:
		return "VERY_HIGH"
	case PriorityHighest:
		return "HIGHEST"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// About is display metadata denormalized onto items and change events.
type About struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Item is the canonical per-identifier record inside a snapshot.
//
// Status is the item's state string (a thread status, or a grade for marks).
// NewMessages counts unread thread messages; Max carries the grade ceiling
// for marks and is empty elsewhere.
type Item struct {
	Status      string `json:"status"`
	NewMessages int    `json:"new_messages"`
	Max         string `json:"max,omitempty"`
	About       About  `json:"about"`
}

// Snapshot is the last-known full state of a resource kind for one user,
// keyed by stable item identifier. Iteration order is insertion order, which
// the diff engine relies on for deterministic event ordering.
type Snapshot struct {
	order []string
	items map[string]Item
}

func NewSnapshot() *Snapshot {
	return &Snapshot{items: map[string]Item{}}
}

// Set inserts or replaces an item. First insertion fixes the iteration position.
func (s *Snapshot) Set(id string, it Item) {
	if s.items == nil {
		s.items = map[string]Item{}
	}
	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = it
}

func (s *Snapshot) Get(id string) (Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// IDs returns identifiers in insertion order. The returned slice is shared;
// callers must not mutate it.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	return s.order
}

type snapshotEntry struct {
	ID   string `json:"id"`
	Item Item   `json:"item"`
}

// MarshalJSON encodes the snapshot as an ordered array so insertion order
// survives persistence.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	entries := make([]snapshotEntry, 0, s.Len())
	for _, id := range s.IDs() {
		entries = append(entries, snapshotEntry{ID: id, Item: s.items[id]})
	}
	return json.Marshal(entries)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var entries []snapshotEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	s.order = nil
	s.items = make(map[string]Item, len(entries))
	for _, e := range entries {
		s.Set(e.ID, e.Item)
	}
	return nil
}

// ChangeKind tags a detected difference between two snapshots.
type ChangeKind int

const (
	StatusChanged ChangeKind = iota
	NewMessage
)

func (k ChangeKind) String() string {
	switch k {
	case StatusChanged:
		return "new_status"
	case NewMessage:
		return "new_message"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// ChangeEvent is an immutable description of one detected change. Display
// metadata is copied from the new snapshot at creation time.
type ChangeEvent struct {
	Kind        ChangeKind
	Resource    Resource
	ID          string
	NewStatus   string // set for StatusChanged
	MaxStatus   string // grade ceiling, marks only
	NewMessages int    // set for NewMessage
	About       About
}
