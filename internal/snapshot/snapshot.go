// Package snapshot persists a run's listings as timestamped JSON and CSV
// files and reads the most recent ones back.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"go.uber.org/zap"
)

const (
	filePrefix     = "jobs_"
	filteredSuffix = "_filtered.json"
	nameLayout     = "20060102_150405"
)

var ErrNoSnapshot = errors.New("no snapshot found")

var csvColumns = []string{
	"title", "url", "budget", "client", "posted_date", "crawled_at",
	"detail_description", "crawled_detail_at", "gpt_reason",
}

// Paths are the three artifacts written for one run.
type Paths struct {
	Raw      string
	Filtered string
	CSV      string
}

type Writer struct {
	dir string
	log *zap.Logger
}

func NewWriter(dir string, log *zap.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

func (w *Writer) Dir() string {
	return w.dir
}

// PathsFor derives the artifact names for a run started at runAt.
func (w *Writer) PathsFor(runAt time.Time) Paths {
	base := filepath.Join(w.dir, filePrefix+runAt.Format(nameLayout))
	return Paths{
		Raw:      base + ".json",
		Filtered: FilteredPath(base + ".json"),
		CSV:      base + ".csv",
	}
}

// FilteredPath maps a raw snapshot path to its filtered companion.
func FilteredPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, ".json") + filteredSuffix
}

// Write stores raw, filtered and the CSV mirror of raw. Each file is written
// to a temp file and renamed into place so readers never see partial output.
func (w *Writer) Write(runAt time.Time, raw, filtered []models.Listing) (Paths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Paths{}, domainerrors.Storage("could not create "+w.dir, err)
	}

	paths := w.PathsFor(runAt)

	rawJSON, err := encodeJSON(raw)
	if err != nil {
		return Paths{}, domainerrors.Storage("could not encode raw snapshot", err)
	}
	filteredJSON, err := encodeJSON(filtered)
	if err != nil {
		return Paths{}, domainerrors.Storage("could not encode filtered snapshot", err)
	}
	csvData, err := encodeCSV(raw)
	if err != nil {
		return Paths{}, domainerrors.Storage("could not encode csv", err)
	}

	// filtered goes first so a reader that sees the raw file can rely on
	// its companion existing
	for _, f := range []struct {
		path string
		data []byte
	}{
		{paths.Filtered, filteredJSON},
		{paths.CSV, csvData},
		{paths.Raw, rawJSON},
	} {
		if err := writeAtomic(f.path, f.data); err != nil {
			return Paths{}, domainerrors.Storage("could not write "+f.path, err)
		}
	}

	w.log.Info("💾 Snapshot saved",
		zap.String("raw", paths.Raw),
		zap.Int("raw_count", len(raw)),
		zap.String("filtered", paths.Filtered),
		zap.Int("filtered_count", len(filtered)),
		zap.String("csv", paths.CSV))
	return paths, nil
}

func encodeJSON(listings []models.Listing) ([]byte, error) {
	if listings == nil {
		listings = []models.Listing{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(listings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV(listings []models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	// UTF-8 BOM for Excel
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}
	for _, l := range listings {
		posted := ""
		if l.PostedDate != nil {
			posted = *l.PostedDate
		}
		row := []string{
			l.Title, l.URL, l.Budget, l.Client, posted, l.CrawledAt,
			l.DetailDescription, l.CrawledDetailAt, l.GPTReason,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LatestRaw returns the most recently modified raw snapshot in dir.
// Filtered companions are never considered. ErrNoSnapshot is returned when
// dir holds none.
func LatestRaw(dir string) (string, error) {
	return latest(dir, false)
}

// LatestFiltered returns the most recently modified filtered snapshot in dir.
func LatestFiltered(dir string) (string, error) {
	return latest(dir, true)
}

func latest(dir string, filtered bool) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.json"))
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate
	for _, m := range matches {
		if strings.HasSuffix(m, filteredSuffix) != filtered {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, candidate{m, info.ModTime()})
	}
	if len(found) == 0 {
		return "", ErrNoSnapshot
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime.Equal(found[j].modTime) {
			return found[i].path > found[j].path
		}
		return found[i].modTime.After(found[j].modTime)
	})
	return found[0].path, nil
}

// Read decodes a snapshot file.
func Read(path string) ([]models.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return listings, nil
}

// Latest is the reader-side view used by the dashboard API. Any failure to
// locate, read or parse the newest snapshot is reported as "no data yet":
// it returns an empty slice and an empty path.
func Latest(dir string, filtered bool) ([]models.Listing, string) {
	path, err := latest(dir, filtered)
	if err != nil {
		return []models.Listing{}, ""
	}
	listings, err := Read(path)
	if err != nil {
		return []models.Listing{}, ""
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, path
}
