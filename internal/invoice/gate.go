package invoice

import (
	"strings"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

// Gate decides whether a candidate invoice number may join the batch.
// Equality is on the normalized (trimmed, uppercased) form. Sentinel and
// empty identifiers are never duplicates: a document whose invoice number
// could not be extracted is always admitted.
type Gate struct {
	index map[string]struct{}

	// TrackAdmitted extends the duplicate check to records admitted earlier
	// in the same batch. Off by default: historically the check ran against
	// the persisted table only, so same-batch duplicates were all admitted.
	TrackAdmitted bool
}

// NewGate builds a gate indexed over the already-persisted records.
func NewGate(existing []extraction.Record, trackAdmitted bool) *Gate {
	index := make(map[string]struct{}, len(existing))
	for _, record := range existing {
		key := normalizeInvoiceNumber(record.InvoiceNumber)
		if key == "" || key == extraction.Sentinel {
			continue
		}
		index[key] = struct{}{}
	}
	return &Gate{index: index, TrackAdmitted: trackAdmitted}
}

// Admit reports whether the candidate may be persisted. When TrackAdmitted
// is set, an admitted identifier also blocks later duplicates in the same
// batch.
func (g *Gate) Admit(invoiceNumber string) bool {
	key := normalizeInvoiceNumber(invoiceNumber)
	if key == "" || key == extraction.Sentinel {
		return true
	}
	if _, exists := g.index[key]; exists {
		return false
	}
	if g.TrackAdmitted {
		g.index[key] = struct{}{}
	}
	return true
}

func normalizeInvoiceNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
