package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

var _ = Describe("Gate", func() {
	var (
		existing      []extraction.Record
		trackAdmitted bool
		gate          *Gate
	)

	BeforeEach(func() {
		existing = []extraction.Record{
			{InvoiceNumber: "INV-001"},
			{InvoiceNumber: "inv-002"},
			{InvoiceNumber: "NA"},
			{InvoiceNumber: ""},
		}
		trackAdmitted = false
	})

	JustBeforeEach(func() {
		gate = NewGate(existing, trackAdmitted)
	})

	When("the candidate matches a persisted invoice number", func() {
		It("should reject an exact match", func() {
			Expect(gate.Admit("INV-001")).To(BeFalse())
		})

		It("should reject case-insensitively", func() {
			Expect(gate.Admit("inv-001")).To(BeFalse())
			Expect(gate.Admit("INV-002")).To(BeFalse())
		})

		It("should reject despite surrounding whitespace", func() {
			Expect(gate.Admit("  INV-001  ")).To(BeFalse())
		})
	})

	When("the candidate is new", func() {
		It("should admit it", func() {
			Expect(gate.Admit("INV-003")).To(BeTrue())
		})
	})

	When("the candidate is the sentinel", func() {
		It("should always admit it", func() {
			Expect(gate.Admit("NA")).To(BeTrue())
			Expect(gate.Admit("NA")).To(BeTrue())
		})

		It("should always admit the empty identifier", func() {
			Expect(gate.Admit("")).To(BeTrue())
		})
	})

	When("within-batch tracking is off", func() {
		It("should admit the same new identifier twice", func() {
			Expect(gate.Admit("INV-100")).To(BeTrue())
			Expect(gate.Admit("INV-100")).To(BeTrue())
		})
	})

	When("within-batch tracking is on", func() {
		BeforeEach(func() {
			trackAdmitted = true
		})

		It("should reject the second occurrence in the same batch", func() {
			Expect(gate.Admit("INV-100")).To(BeTrue())
			Expect(gate.Admit("INV-100")).To(BeFalse())
			Expect(gate.Admit("inv-100")).To(BeFalse())
		})

		It("should still always admit the sentinel", func() {
			Expect(gate.Admit("NA")).To(BeTrue())
			Expect(gate.Admit("NA")).To(BeTrue())
		})
	})
})
