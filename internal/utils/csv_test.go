package utils

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
)

func TestBarsCSV_WriteRead(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := []*domain.Bar{
		{OpenTime: t0, CloseTime: t0.Add(5*time.Minute - time.Second), Symbol: "BTCUSDT", Interval: "5m",
			Open: 100, High: 101.5, Low: 99.25, Close: 101, Volume: 12.5},
		{OpenTime: t0.Add(5 * time.Minute), CloseTime: t0.Add(10*time.Minute - time.Second), Symbol: "BTCUSDT", Interval: "5m",
			Open: 101, High: 102, Low: 100.5, Close: 100.75, Volume: 8},
	}
	path := filepath.Join(t.TempDir(), "data", "bars.csv")
	require.NoError(t, WriteBarsToCSV(bars, path))

	got, err := ReadBarsFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range bars {
		assert.True(t, bars[i].OpenTime.Equal(got[i].OpenTime))
		assert.Equal(t, bars[i].Close, got[i].Close)
		assert.Equal(t, bars[i].Low, got[i].Low)
		assert.Equal(t, bars[i].Volume, got[i].Volume)
		assert.Equal(t, "5m", got[i].Interval)
		assert.True(t, got[i].IsFinal)
	}
}

func TestReadBars_Invalid(t *testing.T) {
	header := "open_time,close_time,symbol,interval,open,high,low,close,volume\n"
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"bad time", header + "yesterday,2024-03-01T00:04:59Z,BTCUSDT,5m,1,2,0.5,1.5,1\n", "open_time"},
		{"bad number", header + "2024-03-01T00:00:00Z,2024-03-01T00:04:59Z,BTCUSDT,5m,1,x,0.5,1.5,1\n", "invalid high"},
		{"high below low", header + "2024-03-01T00:00:00Z,2024-03-01T00:04:59Z,BTCUSDT,5m,1,0.4,0.5,1.5,1\n", "inconsistent OHLC"},
		{"short row", header + "2024-03-01T00:00:00Z,BTCUSDT\n", "failed to read bars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBars(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	bars, err := ReadBars(strings.NewReader(header))
	require.NoError(t, err)
	assert.Empty(t, bars)
}
