package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livedash/internal/types"
)

func sampleHistory() []types.Reading {
	// Newest-first storage order, as the window hands it out.
	return []types.Reading{
		{Timestamp: "2026-08-29T10:00:02Z", Sequence: 3, SensorID: "S1", Pressure: 101.33, Temperature: 24.5, Humidity: 55.1},
		{Timestamp: "2026-08-29T10:00:01Z", Sequence: 2, SensorID: "S2", Pressure: 99.4, Temperature: 21, Humidity: 60.25},
		{Timestamp: "2026-08-29T10:00:00Z", Sequence: 1, SensorID: "S1", Pressure: 101.3, Temperature: 24.55, Humidity: 55},
	}
}

func TestCSV_EmptyLogIsHeaderOnly(t *testing.T) {
	doc := CSV(nil)
	assert.Equal(t, Header+"\n", doc)
}

func TestCSV_RowsAreOldestFirstAndQuoted(t *testing.T) {
	doc := CSV(sampleHistory())
	lines := strings.Split(strings.TrimRight(doc, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, Header, lines[0])
	assert.Equal(t, `"2026-08-29T10:00:00Z","S1","101.30","24.55","55.00"`, lines[1])
	assert.Equal(t, `"2026-08-29T10:00:01Z","S2","99.40","21.00","60.25"`, lines[2])
	assert.Equal(t, `"2026-08-29T10:00:02Z","S1","101.33","24.50","55.10"`, lines[3])
}

func TestCSV_RoundTripUnderReversal(t *testing.T) {
	history := sampleHistory()
	doc := CSV(history)

	records, err := csv.NewReader(strings.NewReader(doc)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(history)+1)

	// Parsed rows reproduce the history log in oldest-first order with field
	// values matching to two decimal places.
	for i, rec := range records[1:] {
		r := history[len(history)-1-i]
		assert.Equal(t, r.Timestamp, rec[0])
		assert.Equal(t, r.SensorID, rec[1])

		p, err := strconv.ParseFloat(rec[2], 64)
		require.NoError(t, err)
		assert.InDelta(t, r.Pressure, p, 0.005)

		temp, err := strconv.ParseFloat(rec[3], 64)
		require.NoError(t, err)
		assert.InDelta(t, r.Temperature, temp, 0.005)

		h, err := strconv.ParseFloat(rec[4], 64)
		require.NoError(t, err)
		assert.InDelta(t, r.Humidity, h, 0.005)
	}
}

func TestCSV_QuotesInSensorIDEscaped(t *testing.T) {
	history := []types.Reading{
		{Timestamp: "2026-08-29T10:00:00Z", SensorID: `rack "A" probe`, Pressure: 100, Temperature: 20, Humidity: 50},
	}

	doc := CSV(history)
	records, err := csv.NewReader(strings.NewReader(doc)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `rack "A" probe`, records[1][1])
}

func TestWriteCSVGzip_RoundTrip(t *testing.T) {
	history := sampleHistory()

	var buf bytes.Buffer
	require.NoError(t, WriteCSVGzip(&buf, history))

	gr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	defer gr.Close()

	plain, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, CSV(history), string(plain))
}

func TestFilename_UsesEpochMilliseconds(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "livedash_export_1787997600000.csv", Filename(at))
}
