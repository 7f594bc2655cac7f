// Package analytics computes summary metrics over the persisted invoice
// table. Everything here is a pure, read-only consumer of a table snapshot;
// presentation is left to the caller.
package analytics

import (
	"sort"
	"time"

	"github.com/saketruia/invoice-insights/internal/extraction"
)

// PincodeCount is one pincode's order count
type PincodeCount struct {
	Pincode string `json:"pincode"`
	Orders  int    `json:"orders"`
}

// ChargeRange is one bucket of the delivery-charge distribution
type ChargeRange struct {
	Label      string  `json:"label"`
	Orders     int     `json:"orders"`
	Percentage float64 `json:"percentage"`
}

// MonthlySummary is one month's order count and delivery spend
type MonthlySummary struct {
	Month         string  `json:"month"` // YYYY-MM
	Orders        int     `json:"orders"`
	TotalDelivery float64 `json:"total_delivery"`
}

// Summary holds every metric the dashboard and report consume
type Summary struct {
	TotalOrders         int              `json:"total_orders"`
	TotalDeliverySpent  float64          `json:"total_delivery_spent"`
	NACount             int              `json:"na_count"`
	NAPercentage        float64          `json:"na_percentage"`
	AverageCharge       float64          `json:"average_charge"`
	MedianCharge        float64          `json:"median_charge"`
	MinCharge           float64          `json:"min_charge"`
	MaxCharge           float64          `json:"max_charge"`
	TopSenderPincodes   []PincodeCount   `json:"top_sender_pincodes"`
	TopReceiverPincodes []PincodeCount   `json:"top_receiver_pincodes"`
	ChargeRanges        []ChargeRange    `json:"charge_ranges"`
	Monthly             []MonthlySummary `json:"monthly"`
}

// Summarize computes the full summary over a table snapshot.
func Summarize(records []extraction.Record) Summary {
	summary := Summary{TotalOrders: len(records)}

	var validCharges []float64
	for _, r := range records {
		amount := r.ChargeAmount()
		summary.TotalDeliverySpent += amount
		if r.DeliveryCharge == "" || r.DeliveryCharge == extraction.Sentinel {
			summary.NACount++
		}
		if amount > 0 {
			validCharges = append(validCharges, amount)
		}
	}
	if summary.TotalOrders > 0 {
		summary.NAPercentage = float64(summary.NACount) / float64(summary.TotalOrders) * 100
	}

	if len(validCharges) > 0 {
		sort.Float64s(validCharges)
		var total float64
		for _, c := range validCharges {
			total += c
		}
		summary.AverageCharge = total / float64(len(validCharges))
		summary.MedianCharge = median(validCharges)
		summary.MinCharge = validCharges[0]
		summary.MaxCharge = validCharges[len(validCharges)-1]
	}

	summary.TopSenderPincodes = topPincodes(records, func(r extraction.Record) string { return r.SenderPincode })
	summary.TopReceiverPincodes = topPincodes(records, func(r extraction.Record) string { return r.ReceiverPincode })
	summary.ChargeRanges = chargeRanges(validCharges)
	summary.Monthly = monthlySummaries(records)

	return summary
}

// median expects charges sorted ascending
func median(charges []float64) float64 {
	n := len(charges)
	if n%2 == 1 {
		return charges[n/2]
	}
	return (charges[n/2-1] + charges[n/2]) / 2
}

// topPincodes counts non-sentinel pincodes and returns the top 10, ties
// broken by pincode so the order is stable.
func topPincodes(records []extraction.Record, field func(extraction.Record) string) []PincodeCount {
	counts := make(map[string]int)
	for _, r := range records {
		pincode := field(r)
		if pincode == "" || pincode == extraction.Sentinel {
			continue
		}
		counts[pincode]++
	}

	result := make([]PincodeCount, 0, len(counts))
	for pincode, orders := range counts {
		result = append(result, PincodeCount{Pincode: pincode, Orders: orders})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Orders != result[j].Orders {
			return result[i].Orders > result[j].Orders
		}
		return result[i].Pincode < result[j].Pincode
	})
	if len(result) > 10 {
		result = result[:10]
	}
	return result
}

// chargeRanges buckets the valid (non-zero) charges into fixed ranges.
// Empty buckets are omitted.
func chargeRanges(validCharges []float64) []ChargeRange {
	if len(validCharges) == 0 {
		return nil
	}

	buckets := []struct {
		label string
		min   float64
		max   float64
	}{
		{"Rs.0 - Rs.50", 0, 50},
		{"Rs.51 - Rs.100", 50, 100},
		{"Rs.101 - Rs.200", 100, 200},
		{"Rs.201 - Rs.500", 200, 500},
		{"Above Rs.500", 500, -1},
	}

	var ranges []ChargeRange
	for _, b := range buckets {
		count := 0
		for _, c := range validCharges {
			if c > b.min && (b.max < 0 || c <= b.max) {
				count++
			}
		}
		if count > 0 {
			ranges = append(ranges, ChargeRange{
				Label:      b.label,
				Orders:     count,
				Percentage: float64(count) / float64(len(validCharges)) * 100,
			})
		}
	}
	return ranges
}

// monthlySummaries groups records by month of the main date. Records whose
// date is the sentinel or unparseable are left out rather than bucketed
// into an epoch month.
func monthlySummaries(records []extraction.Record) []MonthlySummary {
	type rollup struct {
		orders int
		total  float64
	}
	months := make(map[string]*rollup)
	for _, r := range records {
		if r.MainDate == "" || r.MainDate == extraction.Sentinel {
			continue
		}
		date, err := time.Parse(extraction.DateLayout, r.MainDate)
		if err != nil {
			continue
		}
		key := date.Format("2006-01")
		if months[key] == nil {
			months[key] = &rollup{}
		}
		months[key].orders++
		months[key].total += r.ChargeAmount()
	}

	result := make([]MonthlySummary, 0, len(months))
	for month, r := range months {
		result = append(result, MonthlySummary{Month: month, Orders: r.orders, TotalDelivery: r.total})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result
}
