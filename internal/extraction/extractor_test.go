package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Record", func() {
	Describe("ChargeAmount", func() {
		var record Record

		When("the charge embeds a currency symbol and tax note", func() {
			BeforeEach(func() {
				record.DeliveryCharge = "₹123.45 incl. GST"
			})

			It("should extract the first decimal number", func() {
				Expect(record.ChargeAmount()).To(Equal(123.45))
			})
		})

		When("the charge is a plain integer", func() {
			BeforeEach(func() {
				record.DeliveryCharge = "Rs. 99"
			})

			It("should return the integer magnitude", func() {
				Expect(record.ChargeAmount()).To(Equal(99.0))
			})
		})

		When("the charge holds several numbers", func() {
			BeforeEach(func() {
				record.DeliveryCharge = "40.00 (incl. 18% GST)"
			})

			It("should use only the first", func() {
				Expect(record.ChargeAmount()).To(Equal(40.0))
			})
		})

		When("the charge is the sentinel", func() {
			BeforeEach(func() {
				record.DeliveryCharge = Sentinel
			})

			It("should return zero", func() {
				Expect(record.ChargeAmount()).To(BeZero())
			})
		})

		When("the charge is empty", func() {
			BeforeEach(func() {
				record.DeliveryCharge = ""
			})

			It("should return zero", func() {
				Expect(record.ChargeAmount()).To(BeZero())
			})
		})

		When("the charge holds no number", func() {
			BeforeEach(func() {
				record.DeliveryCharge = "free shipping"
			})

			It("should return zero", func() {
				Expect(record.ChargeAmount()).To(BeZero())
			})
		})
	})

	Describe("IsFallback", func() {
		It("should be true for the fallback record", func() {
			Expect(FallbackRecord("doc.pdf").IsFallback()).To(BeTrue())
		})

		It("should be false once any field carries data", func() {
			record := FallbackRecord("doc.pdf")
			record.InvoiceNumber = "INV-001"
			Expect(record.IsFallback()).To(BeFalse())
		})
	})
})
