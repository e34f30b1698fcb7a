package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytcbot/internal/domain"
)

var barHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars, oldest first, with a header row.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		err := writer.Write([]string{
			b.OpenTime.UTC().Format(time.RFC3339),
			b.CloseTime.UTC().Format(time.RFC3339),
			b.Symbol,
			b.Interval,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBarsFromCSV reads a file written by WriteBarsToCSV. Every bar read is final.
func ReadBarsFromCSV(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file)
}

// ReadBars parses CSV bars from r, skipping the header row.
func ReadBars(r io.Reader) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(barHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read bars: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("bar file is empty")
	}

	bars := make([]*domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		bar, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(rec []string) (*domain.Bar, error) {
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return nil, fmt.Errorf("invalid open_time '%s': %w", rec[0], err)
	}
	closeTime, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return nil, fmt.Errorf("invalid close_time '%s': %w", rec[1], err)
	}
	values := make([]float64, 5)
	for i, name := range barHeader[4:] {
		v, err := strconv.ParseFloat(rec[4+i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s '%s': %w", name, rec[4+i], err)
		}
		values[i] = v
	}
	bar := &domain.Bar{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Symbol:    rec[2],
		Interval:  rec[3],
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		IsFinal:   true,
	}
	if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close || bar.Low > bar.Open || bar.Low > bar.Close {
		return nil, fmt.Errorf("inconsistent OHLC at %s", rec[0])
	}
	return bar, nil
}
