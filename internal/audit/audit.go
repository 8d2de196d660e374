// Package audit reads and writes the audit log as CSV for offline review.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tellerline/teller/internal/model"
)

// Header is the CSV header of an audit export.
const Header = "timestamp,actor,action,subject,details"

const (
	numFields    = 5
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colSubject   = 3
	colDetails   = 4
)

// MarshalEntry converts an AuditEntry to a CSV row.
func MarshalEntry(e model.AuditEntry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colSubject] = e.Subject
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an AuditEntry. The export carries no
// IDs, so ID is left empty.
func UnmarshalEntry(record []string) (model.AuditEntry, error) {
	if len(record) != numFields {
		return model.AuditEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return model.AuditEntry{
		Timestamp: ts.UTC(),
		Actor:     record[colActor],
		Action:    record[colAction],
		Subject:   record[colSubject],
		Details:   record[colDetails],
	}, nil
}

// Write writes the header and entries to w.
func Write(w io.Writer, entries []model.AuditEntry) error {
	return write(w, entries, true)
}

func write(w io.Writer, entries []model.AuditEntry, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendFile appends entries to path, writing the header only when the file
// is new or empty.
func AppendFile(path string, entries []model.AuditEntry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	needsHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needsHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit export: %w", err)
	}
	if err := write(f, entries, needsHeader); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses an audit export. An empty input yields no entries.
func Read(r io.Reader) ([]model.AuditEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}
	if got := strings.Join(records[0], ","); got != Header {
		return nil, fmt.Errorf("unexpected header %q", got)
	}

	var entries []model.AuditEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadFile returns all entries from path, or nil if it does not exist.
func ReadFile(path string) ([]model.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit export: %w", err)
	}
	defer f.Close()
	return Read(f)
}
