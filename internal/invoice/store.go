package invoice

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/xuri/excelize/v2"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

const tableSheet = "Sheet1"

// tableColumns are the persisted table's header row, in column order.
var tableColumns = []string{
	"File Name",
	"Invoice Number",
	"Sender Pincode",
	"Receiver Pincode",
	"Delivery/Shipment Charges",
	"Main Date",
}

// TableStore defines the interface for the persisted invoice table
type TableStore interface {
	// Load reads the full table, or an empty slice when no artifact exists
	Load() ([]extraction.Record, error)

	// Merge combines a batch with all previously persisted rows and writes
	// the whole table back. Returns the path actually written.
	Merge(batch []extraction.Record) (string, error)

	// ExportBytes renders the current table as xlsx bytes
	ExportBytes() ([]byte, error)

	// Path returns the primary artifact path
	Path() string
}

// ExcelStore implements TableStore on a single xlsx artifact. Every merge
// rewrites the whole table: the combined rows go to a temporary file in the
// artifact's directory and are renamed onto the primary path, so a failed
// merge never leaves a partial artifact. When the primary path stays locked
// through all retries, the combined table goes to a timestamp-suffixed
// fallback artifact instead of losing the batch.
type ExcelStore struct {
	path       string
	retry      extraction.RetryPolicy
	timeSource TimeSource

	// writeFile is swappable in tests to simulate contention
	writeFile func(path string, records []extraction.Record) error
}

// NewExcelStore creates a new ExcelStore instance
func NewExcelStore(path string, retry extraction.RetryPolicy) *ExcelStore {
	s := &ExcelStore{
		path:       path,
		retry:      retry,
		timeSource: &defaultTimeSource{},
	}
	s.writeFile = s.writeTable
	return s
}

// Path returns the primary artifact path
func (s *ExcelStore) Path() string {
	return s.path
}

// Load reads the full persisted table. A missing artifact is an empty
// table, not an error.
func (s *ExcelStore) Load() ([]extraction.Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return []extraction.Record{}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening table artifact: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(tableSheet)
	if err != nil {
		return nil, fmt.Errorf("reading table rows: %w", err)
	}

	records := make([]extraction.Record, 0)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

// Merge reads the full existing table, appends the batch in arrival order,
// and rewrites the artifact. Deduplication already happened upstream.
func (s *ExcelStore) Merge(batch []extraction.Record) (string, error) {
	existing, err := s.Load()
	if err != nil {
		return "", fmt.Errorf("loading existing table: %w", err)
	}

	combined := make([]extraction.Record, 0, len(existing)+len(batch))
	combined = append(combined, existing...)
	combined = append(combined, batch...)

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err := s.writeFile(s.path, combined)
		if err == nil {
			return s.path, nil
		}
		if !isContention(err) {
			return "", fmt.Errorf("writing table artifact: %w", err)
		}
		lastErr = err
		slog.Warn("table artifact is locked, retrying",
			"path", s.path,
			"attempt", attempt,
			"max_attempts", s.retry.MaxAttempts,
			"error", err,
		)
		if attempt < s.retry.MaxAttempts {
			s.retry.Wait()
		}
	}

	fallback := s.fallbackPath()
	slog.Warn("table artifact stayed locked, writing fallback artifact", "path", fallback, "error", lastErr)
	if err := s.writeFile(fallback, combined); err != nil {
		return "", fmt.Errorf("writing fallback artifact: %w", err)
	}
	return fallback, nil
}

// ExportBytes renders the current table as xlsx bytes
func (s *ExcelStore) ExportBytes() ([]byte, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	f, err := buildWorkbook(records)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("rendering workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ExcelStore) fallbackPath() string {
	dir := filepath.Dir(s.path)
	stamp := s.timeSource.Now().Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("invoice_backup_%s.xlsx", stamp))
}

// writeTable writes the whole table to path via a temp file and rename.
func (s *ExcelStore) writeTable(path string, records []extraction.Record) error {
	f, err := buildWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".invoice-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving workbook: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing artifact: %w", err)
	}
	return nil
}

func buildWorkbook(records []extraction.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	for col, name := range tableColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("naming header cell: %w", err)
		}
		if err := f.SetCellValue(tableSheet, cell, name); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	for i, record := range records {
		values := rowFromRecord(record)
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("naming cell: %w", err)
			}
			if err := f.SetCellValue(tableSheet, cell, value); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", i+1, err)
			}
		}
	}
	return f, nil
}

func rowFromRecord(r extraction.Record) []string {
	return []string{
		r.SourceName,
		r.InvoiceNumber,
		r.SenderPincode,
		r.ReceiverPincode,
		r.DeliveryCharge,
		r.MainDate,
	}
}

func recordFromRow(row []string) extraction.Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return extraction.Record{
		SourceName:      cell(0),
		InvoiceNumber:   cell(1),
		SenderPincode:   cell(2),
		ReceiverPincode: cell(3),
		DeliveryCharge:  cell(4),
		MainDate:        cell(5),
	}
}

// isContention reports whether a write failure looks like another process
// holding the artifact open, which is retryable, as opposed to an
// unexpected I/O error, which is not.
func isContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY) {
		return true
	}
	return strings.Contains(err.Error(), "used by another process")
}
