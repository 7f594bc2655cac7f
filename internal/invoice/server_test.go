package invoice

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

func multipartUpload(filenames map[string][]byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range filenames {
		part, err := writer.CreateFormFile("files", name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).NotTo(HaveOccurred())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		store     *mockStore
		extractor *mockExtractor
		journal   *mockJournal
		sources   *mockStorage
		basicAuth BasicAuth
		server    *Server
	)

	BeforeEach(func() {
		store = &mockStore{path: "invoice.xlsx"}
		extractor = &mockExtractor{
			records: map[string]*extraction.Record{
				"a.pdf": {
					InvoiceNumber:   "INV-001",
					SenderPincode:   "560001",
					ReceiverPincode: "110001",
					DeliveryCharge:  "50",
					MainDate:        "15-01-2024",
				},
			},
			failFor: map[string]bool{},
		}
		journal = &mockJournal{}
		sources = newMockStorage()
		basicAuth = BasicAuth{}
	})

	JustBeforeEach(func() {
		retry := extraction.RetryPolicy{MaxAttempts: 1, Sleep: func(time.Duration) {}}
		service := NewServiceWithDeps(store, extractor, journal, sources, retry, false,
			&mockIDGenerator{id: "batch-1"},
			&mockTimeSource{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)},
		)
		server = NewServer(service, basicAuth)
	})

	Describe("POST /api/batches", func() {
		When("a PDF is uploaded", func() {
			It("should process the batch and return the records", func() {
				body, contentType := multipartUpload(map[string][]byte{
					"a.pdf": []byte("%PDF-1.4 fake invoice"),
				})
				req := httptest.NewRequest("POST", "/api/batches", body)
				req.Header.Set("Content-Type", contentType)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusCreated))
				var result BatchResult
				Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
				Expect(result.Records).To(HaveLen(1))
				Expect(result.Records[0].InvoiceNumber).To(Equal("INV-001"))
				Expect(result.Batch.Persisted).To(BeTrue())
			})
		})

		When("no files are attached", func() {
			It("returns a 400", func() {
				body, contentType := multipartUpload(map[string][]byte{})
				req := httptest.NewRequest("POST", "/api/batches", body)
				req.Header.Set("Content-Type", contentType)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("the request body exceeds the upload cap", func() {
			It("returns a 400 naming the limit", func() {
				server.maxUploadBytes = 1 << 10
				body, contentType := multipartUpload(map[string][]byte{
					"a.pdf": bytes.Repeat([]byte("x"), 4<<10),
				})
				req := httptest.NewRequest("POST", "/api/batches", body)
				req.Header.Set("Content-Type", contentType)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring("too large"))
			})
		})

		When("nothing in the upload is processable", func() {
			It("returns a 400 with the warnings swallowed", func() {
				body, contentType := multipartUpload(map[string][]byte{
					"notes.txt": []byte("not an invoice"),
				})
				req := httptest.NewRequest("POST", "/api/batches", body)
				req.Header.Set("Content-Type", contentType)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring("No processable documents"))
			})
		})
	})

	Describe("GET /api/invoices", func() {
		BeforeEach(func() {
			store.records = []extraction.Record{{InvoiceNumber: "INV-001"}}
		})

		It("should return the persisted records", func() {
			req := httptest.NewRequest("GET", "/api/invoices", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var records []extraction.Record
			Expect(json.Unmarshal(rec.Body.Bytes(), &records)).To(Succeed())
			Expect(records).To(HaveLen(1))
		})
	})

	Describe("GET /api/invoices/export", func() {
		It("should return an xlsx attachment", func() {
			req := httptest.NewRequest("GET", "/api/invoices/export", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("extracted_data.xlsx"))
		})
	})

	Describe("GET /api/analytics", func() {
		BeforeEach(func() {
			store.records = []extraction.Record{
				{InvoiceNumber: "INV-001", DeliveryCharge: "50"},
				{InvoiceNumber: "NA"},
			}
		})

		It("should return the summary metrics", func() {
			req := httptest.NewRequest("GET", "/api/analytics", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var summary map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &summary)).To(Succeed())
			Expect(summary).To(HaveKey("total_orders"))
		})
	})

	Describe("GET /api/analytics/report", func() {
		It("should return a PDF attachment", func() {
			req := httptest.NewRequest("GET", "/api/analytics/report", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(rec.Body.String()).To(HavePrefix("%PDF"))
		})
	})

	Describe("GET /api/batches", func() {
		When("no batches exist", func() {
			It("should return an empty JSON array", func() {
				req := httptest.NewRequest("GET", "/api/batches", nil)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(MatchJSON("[]"))
			})
		})
	})

	Describe("GET /api/batches/{id}", func() {
		When("the batch does not exist", func() {
			It("returns a 404", func() {
				req := httptest.NewRequest("GET", "/api/batches/nonexistent", nil)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusNotFound))
			})
		})

		When("the batch exists", func() {
			BeforeEach(func() {
				journal.saved = []*Batch{{ID: "batch-1", Admitted: 2}}
			})

			It("should return the journal entry", func() {
				req := httptest.NewRequest("GET", "/api/batches/batch-1", nil)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusOK))
				var batch Batch
				Expect(json.Unmarshal(rec.Body.Bytes(), &batch)).To(Succeed())
				Expect(batch.Admitted).To(Equal(2))
			})
		})
	})

	Describe("GET /api/documents/{name}", func() {
		BeforeEach(func() {
			sources.saved["batch-1_a.pdf"] = []byte("%PDF-archived")
		})

		It("should return the archived document", func() {
			req := httptest.NewRequest("GET", "/api/documents/batch-1_a.pdf", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("%PDF-archived"))
		})

		It("returns a 404 for a missing document", func() {
			req := httptest.NewRequest("GET", "/api/documents/missing.pdf", nil)
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		When("the name tries to escape the archive directory", func() {
			It("rejects an encoded parent-directory reference", func() {
				req := httptest.NewRequest("GET", "/api/documents/..%2Fsecret.txt", nil)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			basicAuth = BasicAuth{Username: "admin", Password: "secret"}
		})

		When("credentials are missing", func() {
			It("returns a 401 with a challenge", func() {
				req := httptest.NewRequest("GET", "/api/invoices", nil)
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusUnauthorized))
				Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("credentials are wrong", func() {
			It("returns a 401", func() {
				req := httptest.NewRequest("GET", "/api/invoices", nil)
				req.SetBasicAuth("admin", "wrong")
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			})
		})

		When("credentials match", func() {
			It("should serve the request", func() {
				req := httptest.NewRequest("GET", "/api/invoices", nil)
				req.SetBasicAuth("admin", "secret")
				rec := httptest.NewRecorder()

				server.ServeHTTP(rec, req)

				Expect(rec.Code).To(Equal(http.StatusOK))
			})
		})
	})
})
