package reconciler

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"15:04:05.999999999",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
}

// ParseTimeOfDay returns the minutes since midnight of the clock reading in s,
// or 0 if s is not a recognised date-time.
func ParseTimeOfDay(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		h, m, sec := t.Clock()
		return float64(h*60+m) + float64(sec)/60 + float64(t.Nanosecond())/float64(time.Minute)
	}

	return 0
}
