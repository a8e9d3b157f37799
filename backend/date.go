package backend

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultTimeLayouts are tried in order by ParseTime. RFC 822 style dates
// come first because that is what RSS pubDate requires.
var DefaultTimeLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, _2 Jan 2006 15:04:05 -0700", // 1-2 digit days
	"Mon, _2 Jan 2006 15:04:05 MST",
	"Mon, _2 Jan 2006 15:04 -0700", // without seconds
	"Mon, _2 Jan 2006 15:04 MST",
	"02 Jan 2006 15:04:05 MST", // without weekday
	"02 Jan 2006 15:04 MST",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, _2 Jan 2006",
	"2006-01-02",
}

var errUnparseableTime = errors.New("unable to parse time")

// rfc822Zones are the zone names RFC 822 allows, as hours east of UTC.
// time.Parse only knows the local zone's abbreviations and gives any other
// name an offset of zero.
var rfc822Zones = map[string]int{
	"UT":  0,
	"UTC": 0,
	"GMT": 0,
	"Z":   0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// ParseTime tries each layout one after another until one works or all fail
func ParseTime(value string, layouts []string) (pgtype.Timestamptz, error) {
	value = expandShortZone(value)

	for _, f := range layouts {
		t, err := time.Parse(f, value)
		if err != nil {
			continue
		}

		if strings.Contains(f, "MST") {
			var ok bool
			t, ok = resolveZoneName(t)
			if !ok {
				continue
			}
		}

		return pgtype.Timestamptz{Time: t, Valid: true}, nil
	}

	return pgtype.Timestamptz{}, errUnparseableTime
}

// expandShortZone rewrites a trailing "UT" or "Z" zone as "UTC" because
// time.Parse requires at least three letters for a zone name.
func expandShortZone(value string) string {
	for _, suffix := range []string{" UT", " Z"} {
		if strings.HasSuffix(value, suffix) {
			return strings.TrimSuffix(value, suffix) + " UTC"
		}
	}
	return value
}

// resolveZoneName applies the RFC 822 offset for t's zone name. Names outside
// that set are accepted only when time.Parse resolved them to a real offset,
// either from the local zone or a GMT+N form.
func resolveZoneName(t time.Time) (time.Time, bool) {
	name, offset := t.Zone()
	if hours, ok := rfc822Zones[name]; ok {
		zone := time.FixedZone(name, hours*60*60)
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone), true
	}

	if offset != 0 || strings.HasPrefix(name, "GMT") {
		return t, true
	}

	return time.Time{}, false
}
