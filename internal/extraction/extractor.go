package extraction

import (
	"context"
	"regexp"
	"strconv"
)

// Sentinel marks a field that could not be read from the source document.
// It is distinct from an empty value: every Record field is always populated,
// and "unknown" is always spelled out.
const Sentinel = "NA"

// DateLayout is the table's date format (DD-MM-YYYY).
const DateLayout = "02-01-2006"

// Record is the extraction result for one invoice PDF.
type Record struct {
	SourceName      string `json:"source_name"`
	InvoiceNumber   string `json:"invoice_number"`
	SenderPincode   string `json:"sender_pincode"`
	ReceiverPincode string `json:"receiver_pincode"`
	DeliveryCharge  string `json:"delivery_charge"`
	MainDate        string `json:"main_date"`
}

// Extractor defines the interface for invoice extraction providers
type Extractor interface {
	// ExtractInvoice analyzes one invoice PDF and extracts its fields
	ExtractInvoice(ctx context.Context, name string, data []byte) (*Record, error)
	// Close closes the extractor and releases resources
	Close() error
}

// FallbackRecord returns the all-sentinel record used when every
// extraction attempt for a document has failed.
func FallbackRecord(sourceName string) *Record {
	return &Record{
		SourceName:      sourceName,
		InvoiceNumber:   Sentinel,
		SenderPincode:   Sentinel,
		ReceiverPincode: Sentinel,
		DeliveryCharge:  Sentinel,
		MainDate:        Sentinel,
	}
}

// IsFallback reports whether every extracted field is the sentinel.
func (r *Record) IsFallback() bool {
	return r.InvoiceNumber == Sentinel &&
		r.SenderPincode == Sentinel &&
		r.ReceiverPincode == Sentinel &&
		r.DeliveryCharge == Sentinel &&
		r.MainDate == Sentinel
}

var chargeNumberPattern = regexp.MustCompile(`\d+\.?\d*`)

// ChargeAmount returns the numeric magnitude of the delivery charge.
// The raw field may embed currency symbols and tax notes; the first decimal
// number found wins. Sentinel or number-free values yield zero, for
// aggregation only - the stored field keeps its raw form.
func (r *Record) ChargeAmount() float64 {
	if r.DeliveryCharge == "" || r.DeliveryCharge == Sentinel {
		return 0
	}
	match := chargeNumberPattern.FindString(r.DeliveryCharge)
	if match == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return amount
}
