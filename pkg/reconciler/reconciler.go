package reconciler

import (
	"sort"

	"github.com/rxtx-hosting/stationlens/pkg/serverlist"
)

func Reconcile(sink Sink, current []serverlist.Server, previous LabelSet) Plan {
	plan := MakePlan(current, previous)

	for _, name := range plan.Stale {
		sink.RemoveServer(name)
	}
	for _, series := range plan.Upserts {
		sink.SetServer(series)
	}

	return plan
}

// MakePlan computes which labels go away and which series are written.
// Duplicate names keep the position of their first occurrence and the values
// of their last.
func MakePlan(current []serverlist.Server, previous LabelSet) Plan {
	labels := make(LabelSet, len(current))
	index := make(map[string]int, len(current))
	upserts := make([]Series, 0, len(current))

	for _, srv := range current {
		series := toSeries(srv)
		if i, ok := index[srv.Name]; ok {
			upserts[i] = series
			continue
		}
		index[srv.Name] = len(upserts)
		upserts = append(upserts, series)
		labels[srv.Name] = struct{}{}
	}

	var stale, added []string
	for name := range previous {
		if !labels.Has(name) {
			stale = append(stale, name)
		}
	}
	for _, series := range upserts {
		if !previous.Has(series.Server) {
			added = append(added, series.Server)
		}
	}
	sort.Strings(stale)

	return Plan{
		Stale:   stale,
		Added:   added,
		Upserts: upserts,
		Labels:  labels,
	}
}

func toSeries(srv serverlist.Server) Series {
	return Series{
		Server:      srv.Name,
		Players:     srv.PlayerCount,
		FPS:         srv.FPS,
		Version:     srv.BuildVersion,
		TimeMinutes: ParseTimeOfDay(srv.IngameTime),
	}
}
