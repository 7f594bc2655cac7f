package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/saketruia/invoice-insights/internal/bundle"
	"github.com/saketruia/invoice-insights/internal/extraction"
)

// IDGenerator generates unique IDs for batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// BatchResult is what one upload batch produced: the journal entry plus the
// newly admitted records, which the caller gets back even when persistence
// degraded and the rows only exist in memory.
type BatchResult struct {
	Batch    *Batch              `json:"batch"`
	Records  []extraction.Record `json:"records"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Service orchestrates one batch end to end: archive the source document,
// extract with retry, gate against persisted state, merge, journal.
// Documents run strictly sequentially, in submission order.
type Service struct {
	store            TableStore
	extractor        extraction.Extractor
	journal          Journal
	sources          Storage
	extractRetry     extraction.RetryPolicy
	withinBatchDedup bool
	idGenerator      IDGenerator
	timeSource       TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(store TableStore, extractor extraction.Extractor, journal Journal, sources Storage, extractRetry extraction.RetryPolicy, withinBatchDedup bool) *Service {
	return &Service{
		store:            store,
		extractor:        extractor,
		journal:          journal,
		sources:          sources,
		extractRetry:     extractRetry,
		withinBatchDedup: withinBatchDedup,
		idGenerator:      &defaultIDGenerator{},
		timeSource:       &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store TableStore, extractor extraction.Extractor, journal Journal, sources Storage, extractRetry extraction.RetryPolicy, withinBatchDedup bool, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:            store,
		extractor:        extractor,
		journal:          journal,
		sources:          sources,
		extractRetry:     extractRetry,
		withinBatchDedup: withinBatchDedup,
		idGenerator:      idGen,
		timeSource:       timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "invoice"
	}

	return base + ext
}

// ProcessBatch runs every document in the batch to completion, merges the
// admitted records into the persisted table, and journals the outcome. No
// single document's failure aborts the batch: extraction failures degrade
// to sentinel records, and a merge failure returns the records in memory.
func (s *Service) ProcessBatch(ctx context.Context, docs []bundle.Document) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("at least one document is required")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	// Duplicate checks run against persisted state only. A table that
	// cannot be read must not block extraction, so the gate opens wide.
	existing, err := s.store.Load()
	if err != nil {
		slog.Error("reading persisted table failed, duplicate check disabled for this batch",
			"path", s.store.Path(), "error", err)
		existing = nil
	}
	gate := NewGate(existing, s.withinBatchDedup)

	batch := &Batch{
		ID:        id,
		Documents: len(docs),
		CreatedAt: now,
	}
	admitted := make([]extraction.Record, 0, len(docs))

	for _, doc := range docs {
		if s.sources != nil {
			name := fmt.Sprintf("%s_%s", id, sanitizeFilename(doc.Name))
			if _, err := s.sources.Save(name, doc.Data); err != nil {
				slog.Warn("archiving source document failed", "document", doc.Name, "error", err)
			}
		}

		record := extraction.ExtractWithRetry(ctx, s.extractor, s.extractRetry, doc.Name, doc.Data)
		if record.IsFallback() {
			batch.Failures++
		}

		if !gate.Admit(record.InvoiceNumber) {
			batch.Duplicates++
			slog.Info("duplicate invoice skipped", "document", doc.Name, "invoice_number", record.InvoiceNumber)
			continue
		}
		admitted = append(admitted, *record)
	}

	batch.Admitted = len(admitted)

	if len(admitted) > 0 {
		path, err := s.store.Merge(admitted)
		if err != nil {
			slog.Error("persisting batch failed, records retained in memory only",
				"batch", id, "records", len(admitted), "error", err)
		} else {
			batch.Persisted = true
			batch.ArtifactPath = path
		}
	}

	if s.journal != nil {
		if err := s.journal.SaveBatch(batch); err != nil {
			slog.Warn("journaling batch failed", "batch", id, "error", err)
		}
	}

	return &BatchResult{
		Batch:   batch,
		Records: admitted,
	}, nil
}

// ListInvoices returns every persisted record
func (s *Service) ListInvoices() ([]extraction.Record, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading table: %w", err)
	}
	return records, nil
}

// ExportTable renders the persisted table as xlsx bytes
func (s *Service) ExportTable() ([]byte, error) {
	data, err := s.store.ExportBytes()
	if err != nil {
		return nil, fmt.Errorf("exporting table: %w", err)
	}
	return data, nil
}

// GetBatch retrieves one journal entry
func (s *Service) GetBatch(id string) (*Batch, error) {
	batch, err := s.journal.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns all journal entries
func (s *Service) ListBatches() ([]*Batch, error) {
	batches, err := s.journal.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// GetDocument retrieves an archived source document
func (s *Service) GetDocument(name string) ([]byte, error) {
	if s.sources == nil {
		return nil, fmt.Errorf("document archive is not configured")
	}
	data, err := s.sources.Get(name)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return data, nil
}
