// Package bundle turns uploaded files into individual invoice documents.
// A .pdf passes through; a .zip is expanded and filtered to its PDF
// entries; anything else is rejected with a warning. A corrupt archive
// contributes zero documents without aborting the rest of the batch.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Document is one invoice PDF ready for extraction
type Document struct {
	Name string
	Data []byte
}

// Expand converts one uploaded file into zero or more documents. Warnings
// describe everything that was rejected or skipped, with enough context for
// the operator to re-upload.
func Expand(name string, data []byte) ([]Document, []string) {
	var warnings []string

	switch {
	case hasSuffix(name, ".pdf"):
		if !mimetype.Detect(data).Is("application/pdf") {
			warnings = append(warnings, fmt.Sprintf("%s: content is not a PDF, skipping", name))
			return nil, warnings
		}
		return []Document{{Name: name, Data: data}}, nil

	case hasSuffix(name, ".zip"):
		return expandArchive(name, data)

	default:
		warnings = append(warnings, fmt.Sprintf("%s: unsupported file type, only .pdf and .zip are accepted", name))
		return nil, warnings
	}
}

func expandArchive(name string, data []byte) ([]Document, []string) {
	var warnings []string

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Error("opening archive failed", "archive", name, "error", err)
		warnings = append(warnings, fmt.Sprintf("%s: unreadable archive, no documents extracted", name))
		return nil, warnings
	}

	var docs []Document
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || isJunkEntry(entry.Name) {
			continue
		}
		if !hasSuffix(entry.Name, ".pdf") {
			warnings = append(warnings, fmt.Sprintf("%s: skipping non-PDF entry %q", name, entry.Name))
			continue
		}

		entryData, err := readEntry(entry)
		if err != nil {
			slog.Error("reading archive entry failed", "archive", name, "entry", entry.Name, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: could not read entry %q", name, entry.Name))
			continue
		}
		if !mimetype.Detect(entryData).Is("application/pdf") {
			warnings = append(warnings, fmt.Sprintf("%s: entry %q content is not a PDF, skipping", name, entry.Name))
			continue
		}
		docs = append(docs, Document{Name: entry.Name, Data: entryData})
	}
	return docs, warnings
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func hasSuffix(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), suffix)
}

// isJunkEntry filters macOS resource-fork entries and hidden files that
// archives from phones and laptops commonly carry.
func isJunkEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	base := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		base = name[idx+1:]
	}
	return strings.HasPrefix(base, ".")
}
