package reconciler

import "sort"

type Series struct {
	Server      string  `json:"server"`
	Players     float64 `json:"players"`
	FPS         float64 `json:"fps"`
	Version     float64 `json:"version"`
	TimeMinutes float64 `json:"time_minutes"`
}

type LabelSet map[string]struct{}

func NewLabelSet(names ...string) LabelSet {
	set := make(LabelSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s LabelSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s LabelSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plan is the outcome of diffing one fetch against the exported labels.
type Plan struct {
	Stale   []string
	Added   []string
	Upserts []Series
	Labels  LabelSet
}

// Sink receives the writes of a reconciliation pass. Callers are expected to
// make the whole pass atomic with respect to readers.
type Sink interface {
	SetServer(series Series)
	RemoveServer(name string)
}
