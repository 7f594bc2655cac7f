package analytics

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

// WriteReport renders the downloadable summary report as a PDF. Amounts are
// printed with an "Rs." prefix because the built-in fonts carry no rupee
// glyph.
func WriteReport(w io.Writer, records []extraction.Record, generatedAt time.Time) error {
	summary := Summarize(records)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, "Invoice Analysis Report", "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 10, "Generated on: "+generatedAt.Format("January 2, 2006 at 3:04 PM"), "", 1, "C", false, 0, "")
		pdf.Ln(10)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}
	line := func(text string) {
		pdf.CellFormat(0, 6, text, "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Executive Summary", "", 1, "L", false, 0, "")
	pdf.Ln(5)

	heading("Key Metrics")
	metrics := [][2]string{
		{"Total Orders", fmt.Sprintf("%d", summary.TotalOrders)},
		{"Total Delivery Spent", fmt.Sprintf("Rs.%.2f", summary.TotalDeliverySpent)},
		{"Average Delivery Charge", fmt.Sprintf("Rs.%.2f", summary.AverageCharge)},
		{"Median Delivery Charge", fmt.Sprintf("Rs.%.2f", summary.MedianCharge)},
		{"Minimum Delivery Charge", fmt.Sprintf("Rs.%.2f", summary.MinCharge)},
		{"Maximum Delivery Charge", fmt.Sprintf("Rs.%.2f", summary.MaxCharge)},
		{"Orders with NA Charges", fmt.Sprintf("%d (%.1f%%)", summary.NACount, summary.NAPercentage)},
	}
	for _, m := range metrics {
		pdf.CellFormat(80, 8, m[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, m[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	if len(summary.ChargeRanges) > 0 {
		heading("Delivery Charges Distribution")
		for _, r := range summary.ChargeRanges {
			line(fmt.Sprintf("%s: %d orders (%.1f%%)", r.Label, r.Orders, r.Percentage))
		}
		pdf.Ln(5)
	}

	heading("Top Sender Pincodes")
	writePincodes(pdf, summary.TopSenderPincodes, summary.TotalOrders, "No valid sender pincodes found")
	pdf.Ln(5)

	heading("Top Receiver Pincodes")
	writePincodes(pdf, summary.TopReceiverPincodes, summary.TotalOrders, "No valid receiver pincodes found")
	pdf.Ln(10)

	if len(summary.Monthly) > 0 {
		heading("Monthly Summary")
		for _, m := range summary.Monthly {
			line(fmt.Sprintf("%s: %d orders, Rs.%.2f total delivery", m.Month, m.Orders, m.TotalDelivery))
		}
		pdf.Ln(10)
	}

	heading("Key Insights")
	insights := buildInsights(summary)
	for _, insight := range insights {
		line("- " + insight)
	}
	if len(insights) == 0 {
		line("- Data appears well-distributed across different pincodes and charge ranges")
	}
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "I", 8)
	line("Note: Detailed data can be downloaded separately in Excel format.")

	return pdf.Output(w)
}

func writePincodes(pdf *fpdf.Fpdf, pincodes []PincodeCount, totalOrders int, emptyText string) {
	if len(pincodes) == 0 {
		pdf.CellFormat(0, 6, emptyText, "", 1, "L", false, 0, "")
		return
	}
	for i, p := range pincodes {
		percentage := float64(p.Orders) / float64(totalOrders) * 100
		pdf.CellFormat(0, 6, fmt.Sprintf("%d. %s: %d orders (%.1f%%)", i+1, p.Pincode, p.Orders, percentage), "", 1, "L", false, 0, "")
	}
}

// buildInsights mirrors the dashboard's rule-of-thumb commentary: data
// quality, cost outliers, and pincode concentration. Capped at six lines to
// fit the page.
func buildInsights(summary Summary) []string {
	var insights []string

	if summary.NAPercentage > 20 {
		insights = append(insights, fmt.Sprintf("High percentage of missing delivery charges (%.1f%%) - consider data quality improvement", summary.NAPercentage))
	} else if summary.TotalOrders > 0 && summary.NAPercentage < 5 {
		insights = append(insights, fmt.Sprintf("Excellent data quality with only %.1f%% missing delivery charges", summary.NAPercentage))
	}

	if summary.AverageCharge > 0 {
		insights = append(insights, fmt.Sprintf("Average delivery cost is Rs.%.2f per order", summary.AverageCharge))
		if summary.MaxCharge > summary.AverageCharge*3 {
			insights = append(insights, fmt.Sprintf("Some orders have unusually high delivery charges (max: Rs.%.2f)", summary.MaxCharge))
		}
	}

	if concentration, ok := pincodeConcentration(summary.TopSenderPincodes, summary.TotalOrders); ok {
		insights = append(insights, fmt.Sprintf("High concentration from sender pincode %s (%.1f%% of orders)", summary.TopSenderPincodes[0].Pincode, concentration))
	}
	if concentration, ok := pincodeConcentration(summary.TopReceiverPincodes, summary.TotalOrders); ok {
		insights = append(insights, fmt.Sprintf("High concentration to receiver pincode %s (%.1f%% of orders)", summary.TopReceiverPincodes[0].Pincode, concentration))
	}

	if len(insights) > 6 {
		insights = insights[:6]
	}
	return insights
}

func pincodeConcentration(pincodes []PincodeCount, totalOrders int) (float64, bool) {
	if len(pincodes) == 0 || totalOrders == 0 {
		return 0, false
	}
	percentage := float64(pincodes[0].Orders) / float64(totalOrders) * 100
	return percentage, percentage > 30
}
