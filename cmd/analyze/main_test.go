package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestWriteCSVTo(t *testing.T) {
	rows := [][]string{
		{"2024-01-01", "1000.00"},
		{"2024-01-02", "1100.00"},
	}

	var buf bytes.Buffer
	err := writeCSVTo(&buf, []string{"Date", "Price"}, len(rows), func(i int) []string {
		return rows[i]
	})
	require.NoError(t, err)

	assert.Equal(t, "Date,Price\n2024-01-01,1000.00\n2024-01-02,1100.00\n", buf.String())
}

func TestWriteCSVTo_FlushFailure(t *testing.T) {
	err := writeCSVTo(failingWriter{}, []string{"Date", "Price"}, 1, func(i int) []string {
		return []string{"2024-01-01", "1000.00"}
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left on device")
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	err := writeCSV(path, []string{"Date"}, 1, func(i int) []string {
		return []string{"2024-01-01"}
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date\n2024-01-01\n", string(data))
}
