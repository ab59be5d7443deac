package service

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/overdue/domain"
)

// summarize maps grouped bill totals onto overdue summaries, keeping their order.
func summarize(totals []billingdomain.OverdueTotals) []domain.Summary {
	out := make([]domain.Summary, 0, len(totals))
	for _, t := range totals {
		out = append(out, domain.Summary{
			ConsumerID:        t.ConsumerID,
			OverdueCount:      t.BillCount,
			TotalUnpaidAmount: t.TotalAmount,
			LatestDueDate:     t.LatestDueDate,
		})
	}
	return out
}

// summaryFor builds the summary of a single consumer regardless of threshold.
func summaryFor(consumerID snowflake.ID, bills []*billingdomain.Bill, today time.Time) domain.Summary {
	s := domain.Summary{ConsumerID: consumerID, TotalUnpaidAmount: decimal.Zero}
	for _, bill := range bills {
		if bill == nil || bill.ConsumerID != consumerID || bill.IsPaid || !bill.DueDate.Before(today) {
			continue
		}
		s.OverdueCount++
		s.TotalUnpaidAmount = s.TotalUnpaidAmount.Add(bill.TotalAmount)
		if bill.DueDate.After(s.LatestDueDate) {
			s.LatestDueDate = bill.DueDate
		}
	}
	return s
}
