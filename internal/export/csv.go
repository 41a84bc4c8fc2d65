// Package export renders the outage log as CSV, either as a single combined
// document or as a zip archive holding one file per local date plus the
// combined summary.
package export

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/plugwatch/plugwatch/internal/aggregate"
	"github.com/plugwatch/plugwatch/internal/model"
)

var header = []string{"date", "start_time", "end_time", "duration_seconds", "duration_hms"}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// BuildCSV renders intervals as one CSV document. Rows are grouped by local
// date descending with each date's rows in descending start order, matching
// the store's ListAll ordering. An empty log yields a header-only document.
func BuildCSV(intervals []model.OutageInterval, loc *time.Location) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, iv := range intervals {
		if err := w.Write(row(iv, loc)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildArchive renders intervals as a zip holding one CSV per local date plus
// a combined summary.csv.
func BuildArchive(intervals []model.OutageInterval, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// Input is ordered newest start first, so dates appear in descending
	// order as they are first encountered.
	var dates []string
	byDate := make(map[string][]model.OutageInterval)
	for _, iv := range intervals {
		date := iv.StartTime(loc).Format(dateLayout)
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], iv)
	}

	for _, date := range dates {
		doc, err := BuildCSV(byDate[date], loc)
		if err != nil {
			return nil, err
		}
		f, err := zw.Create(date + ".csv")
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(doc)); err != nil {
			return nil, err
		}
	}

	summary, err := BuildCSV(intervals, loc)
	if err != nil {
		return nil, err
	}
	f, err := zw.Create("summary.csv")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write([]byte(summary)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentHash returns the hex SHA-256 of an export document, stored as
// last-export metadata for cache invalidation.
func ContentHash(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:])
}

// FileName suggests a download name for the given scope and time.
func FileName(scope model.ExportScope, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("outages_%s_%s", scope, now.In(loc).Format(dateLayout))
}

func row(iv model.OutageInterval, loc *time.Location) []string {
	start := iv.StartTime(loc)

	endText := "?"
	durationText := ""
	hms := ""
	if iv.EndTimeMs != nil {
		endText = time.UnixMilli(*iv.EndTimeMs).In(loc).Format(timeLayout)
	}
	if iv.DurationSeconds != nil {
		durationText = strconv.FormatInt(*iv.DurationSeconds, 10)
		hms = aggregate.FormatDuration(*iv.DurationSeconds)
	}

	return []string{
		start.Format(dateLayout),
		start.Format(timeLayout),
		endText,
		durationText,
		hms,
	}
}
