// Package report persists run results: append-only CSV reports, per-device
// dump files and an optional SQLite run history.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CSVSink appends rows to a CSV report, flushing after every row so a
// crashed run still leaves a usable file.
type CSVSink struct {
	path string
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	rows int
}

// OpenCSV opens path for appending and writes header once for this run.
// A nil header writes nothing.
func OpenCSV(path string, header []string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report %s: %w", path, err)
	}
	s := &CSVSink{path: path, file: f, w: csv.NewWriter(f)}
	if header != nil {
		if err := s.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	log.Infof("Writing report to %s", path)
	return s, nil
}

func (s *CSVSink) Path() string { return s.path }

// Rows returns the number of rows written after the header.
func (s *CSVSink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *CSVSink) write(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush report %s: %w", s.path, err)
	}
	return nil
}

func (s *CSVSink) WriteRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(row); err != nil {
		return err
	}
	s.rows++
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}

// Timestamp layouts of report and dump file names.
const (
	DateLayout     = "01_02_2006"
	DateTimeLayout = "01_02_2006_150405"
)

// TimestampedName returns e.g. Discovery_Report_03_01_2024_120000.csv.
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(DateTimeLayout), ext)
}
