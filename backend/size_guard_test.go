package backend

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPayloadSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		maxMB   float64
		tooLong bool
	}{
		{"empty", 0, 1, false},
		{"exactly at limit", bytesPerMiB, 1, false},
		{"one byte over", bytesPerMiB + 1, 1, true},
		{"fractional limit", bytesPerMiB / 2, 0.25, true},
		{"well under", 1000, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPayloadSize(bytes.Repeat([]byte("x"), tt.size), tt.maxMB)
			if !tt.tooLong {
				require.NoError(t, err)
				return
			}

			var tooLarge *PayloadTooLargeError
			require.ErrorAs(t, err, &tooLarge)
			assert.Equal(t, float64(tt.size)/bytesPerMiB, tooLarge.SizeMB)
			assert.Equal(t, tt.maxMB, tooLarge.MaxMB)
		})
	}
}

func TestPayloadTooLargeErrorMessage(t *testing.T) {
	err := &PayloadTooLargeError{SizeMB: 12.5, MaxMB: 10}
	assert.Equal(t, "rss file is 12.50MB max is 10MB", err.Error())
}

func TestMaxBytesForMB(t *testing.T) {
	assert.EqualValues(t, 10*bytesPerMiB, maxBytesForMB(10))
	assert.NoError(t, CheckPayloadSize(make([]byte, maxBytesForMB(0.5)), 0.5))
	assert.Error(t, CheckPayloadSize(make([]byte, maxBytesForMB(0.5)+1), 0.5))
}
