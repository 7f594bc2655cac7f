package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/saketruia/invoice-insights/internal/analytics"
	"github.com/saketruia/invoice-insights/internal/bundle"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleUploadBatch accepts one or more .pdf/.zip files, expands them into
// documents, and runs the batch through the pipeline. The response carries
// the newly admitted records even when persistence degraded, plus every
// warning the unpacker produced.
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			errorMsg = fmt.Sprintf("Upload is too large. Maximum size is %dMB.", s.maxUploadBytes>>20)
		}
		writeJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSONError(w, "No files were selected. Please choose PDF or ZIP files to upload.", http.StatusBadRequest)
		return
	}

	var docs []bundle.Document
	var warnings []string
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded file", "filename", header.Filename, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: could not read upload", header.Filename))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading uploaded file", "filename", header.Filename, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s: could not read upload", header.Filename))
			continue
		}

		expanded, expandWarnings := bundle.Expand(header.Filename, data)
		warnings = append(warnings, expandWarnings...)
		docs = append(docs, expanded...)
	}

	if len(docs) == 0 {
		writeJSONError(w, "No processable documents in upload", http.StatusBadRequest)
		return
	}

	result, err := s.service.ProcessBatch(r.Context(), docs)
	if err != nil {
		slog.Error("Error processing batch", "error", err)
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result.Warnings = warnings

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListInvoices returns every persisted record
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleExportTable returns the persisted table as an xlsx download
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportTable()
	if err != nil {
		slog.Error("Error exporting table", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="extracted_data.xlsx"`)
	w.Write(data)
}

// handleAnalytics returns the summary metrics over the current table
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error loading table for analytics", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(analytics.Summarize(records)); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleReport returns the PDF summary report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error loading table for report", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice_report.pdf"`)
	if err := analytics.WriteReport(w, records, s.service.timeSource.Now()); err != nil {
		slog.Error("Error writing report", "error", err)
	}
}

// handleListBatches returns all journal entries
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if batches == nil {
		batches = []*Batch{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batches); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetBatch returns a single journal entry
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Batch ID required", http.StatusBadRequest)
		return
	}
	batch, err := s.service.GetBatch(id)
	if err != nil {
		corsError(w, "Batch not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batch); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetDocument returns an archived source document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		corsError(w, "Document name required", http.StatusBadRequest)
		return
	}
	// The path value may carry encoded separators; anything that is not a
	// bare filename must not reach the archive lookup.
	if filepath.Base(name) != name || name == "." || name == ".." {
		corsError(w, "Invalid document name", http.StatusBadRequest)
		return
	}
	data, err := s.service.GetDocument(name)
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}
