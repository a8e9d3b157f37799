package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeParsingTests = []struct {
	unparsed string
	expected time.Time
}{
	{"Mon, 02 Jan 2006 15:04:05 +0000", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
	{"Fri, 03 Jan 2014 22:45:00 GMT", time.Date(2014, 1, 3, 22, 45, 0, 0, time.UTC)},
	{"Fri, 3 Jan 2014 16:35:05 -0800", time.Date(2014, 1, 4, 0, 35, 5, 0, time.UTC)},
	{"Fri, 03 Jan 2014 22:45 +0000", time.Date(2014, 1, 3, 22, 45, 0, 0, time.UTC)},
	{"03 Jan 2014 22:45 GMT", time.Date(2014, 1, 3, 22, 45, 0, 0, time.UTC)},
	{"2010-07-13T14:15:32-07:00", time.Date(2010, 7, 13, 21, 15, 32, 0, time.UTC)},
	{"2010-07-13T14:15:32Z", time.Date(2010, 7, 13, 14, 15, 32, 0, time.UTC)},
	{"Sat, 04 Jan 2014", time.Date(2014, 1, 4, 0, 0, 0, 0, time.UTC)},
	{"2011-05-19", time.Date(2011, 5, 19, 0, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 EDT", time.Date(2003, 6, 10, 8, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 EST", time.Date(2003, 6, 10, 9, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 CDT", time.Date(2003, 6, 10, 9, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 CST", time.Date(2003, 6, 10, 10, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 MDT", time.Date(2003, 6, 10, 10, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 MST", time.Date(2003, 6, 10, 11, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 PDT", time.Date(2003, 6, 10, 11, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00 PST", time.Date(2003, 6, 10, 12, 0, 0, 0, time.UTC)},
	{"10 Jun 2003 04:00:00 UT", time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 Z", time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 UTC", time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC)},
	{"Tue, 10 Jun 2003 04:00:00 GMT+2", time.Date(2003, 6, 10, 2, 0, 0, 0, time.UTC)},
}

func TestParseTime(t *testing.T) {
	for _, tt := range timeParsingTests {
		actual, err := ParseTime(tt.unparsed, DefaultTimeLayouts)
		require.NoError(t, err, tt.unparsed)
		assert.True(t, actual.Valid, tt.unparsed)
		assert.True(t, tt.expected.Equal(actual.Time), "%s: expected %v, got %v", tt.unparsed, tt.expected, actual.Time)
	}
}

func TestParseTimeUnparseable(t *testing.T) {
	actual, err := ParseTime("not-a-date", DefaultTimeLayouts)
	require.Error(t, err)
	assert.False(t, actual.Valid)
}

func TestParseTimeRejectsUnknownZoneName(t *testing.T) {
	for _, value := range []string{"Tue, 10 Jun 2003 04:00:00 XYZ", "10 Jun 2003 04:00 QQT"} {
		actual, err := ParseTime(value, DefaultTimeLayouts)
		assert.Error(t, err, value)
		assert.False(t, actual.Valid, value)
	}
}

func TestParseTimeUsesFirstMatchingLayout(t *testing.T) {
	layouts := []string{"2006-01-02", "2006-02-01"}
	actual, err := ParseTime("2011-05-06", layouts)
	require.NoError(t, err)
	assert.Equal(t, time.May, actual.Time.Month())
}
