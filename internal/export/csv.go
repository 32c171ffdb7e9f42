// Package export serializes the history window to the delimited flat-file
// format consumed by the dashboard's download action. Serialization is a
// pure, synchronous transform of a history snapshot; an empty log yields a
// header-only document.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"livedash/internal/types"
)

// Header is the fixed CSV header row.
const Header = "timestamp,sensor,pressure_kPa,temp_C,humidity_pct"

// filenamePrefix and the epoch-millisecond stamp form the download file name.
const filenamePrefix = "livedash_export_"

// CSV renders the history log as a comma-separated document. The input is in
// storage order (newest-first); rows are emitted oldest-first, the inverse.
// Every data field is quoted as a string literal, numeric fields formatted to
// the window's two-decimal precision so the file matches what was displayed.
func CSV(history []types.Reading) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	for i := len(history) - 1; i >= 0; i-- {
		r := history[i]
		writeRow(&b,
			r.Timestamp,
			r.SensorID,
			types.Format2(r.Pressure),
			types.Format2(r.Temperature),
			types.Format2(r.Humidity),
		)
	}

	return b.String()
}

// WriteCSV streams the document to w. It exists so the HTTP handler can write
// straight to the response without holding the whole file in memory twice.
func WriteCSV(w io.Writer, history []types.Reading) error {
	if _, err := io.WriteString(w, CSV(history)); err != nil {
		return fmt.Errorf("writing csv export: %w", err)
	}
	return nil
}

// WriteCSVGzip streams the document to w through a gzip writer, for clients
// that accept compressed downloads.
func WriteCSVGzip(w io.Writer, history []types.Reading) error {
	gw := gzip.NewWriter(w)
	if err := WriteCSV(gw, history); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("closing gzip export stream: %w", err)
	}
	return nil
}

// Filename returns the download file name for an export taken at the given
// time: livedash_export_<unix_epoch_ms>.csv.
func Filename(at time.Time) string {
	return fmt.Sprintf("%s%d.csv", filenamePrefix, at.UnixMilli())
}

// writeRow emits one data row with every field quoted. Embedded quotes are
// doubled per RFC 4180 so sensor ids from an open-world remote set cannot
// corrupt the document.
func writeRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
