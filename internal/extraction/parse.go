package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var pincodePattern = regexp.MustCompile(`^\d{6}$`)

// parseInvoiceJSON parses the raw model response into a Record.
// The response is free text that may wrap the JSON payload in prose or
// markdown fences, so only the span from the first '{' to the last '}' is
// parsed. Anything malformed inside that span is an attempt failure for the
// caller to retry, not something to paper over.
func parseInvoiceJSON(text string) (*Record, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var record Record
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	record.InvoiceNumber = normalizeField(record.InvoiceNumber)
	record.SenderPincode = normalizePincode(record.SenderPincode)
	record.ReceiverPincode = normalizePincode(record.ReceiverPincode)
	record.DeliveryCharge = normalizeField(record.DeliveryCharge)
	record.MainDate = normalizeField(record.MainDate)

	return &record, nil
}

// normalizeField trims a field and replaces empty values with the sentinel.
// Absence is always explicit in the record.
func normalizeField(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return Sentinel
	}
	return value
}

// normalizePincode additionally demotes anything that is not a 6-digit
// numeral to the sentinel, so the table only carries valid pincodes.
func normalizePincode(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if value == "" || value == Sentinel {
		return Sentinel
	}
	if !pincodePattern.MatchString(value) {
		return Sentinel
	}
	return value
}
