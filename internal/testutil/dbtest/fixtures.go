package dbtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ConsumerSeed struct {
	ID            snowflake.ID
	FirstName     string
	LastName      string
	ContactNumber string
	AccountNumber string
	Disconnected  bool
}

func SeedConsumer(t testing.TB, db *gorm.DB, seed ConsumerSeed) *consumerdomain.Consumer {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &consumerdomain.Consumer{
		ID:            seed.ID,
		FirstName:     seed.FirstName,
		LastName:      seed.LastName,
		ContactNumber: seed.ContactNumber,
		Status:        consumerdomain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if seed.AccountNumber != "" {
		account := seed.AccountNumber
		c.AccountNumber = &account
	}
	if seed.Disconnected {
		c.Status = consumerdomain.StatusDisconnected
		c.IsDisconnected = true
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

type BillSeed struct {
	ID          snowflake.ID
	ConsumerID  snowflake.ID
	DueDate     time.Time
	TotalAmount string
	AmountDue   string
	IsPaid      bool
}

func SeedBill(t testing.TB, db *gorm.DB, seed BillSeed) *billingdomain.Bill {
	t.Helper()
	total := decimal.RequireFromString(seed.TotalAmount)
	due := total
	if seed.AmountDue != "" {
		due = decimal.RequireFromString(seed.AmountDue)
	}
	b := &billingdomain.Bill{
		ID:          seed.ID,
		ConsumerID:  seed.ConsumerID,
		DueDate:     seed.DueDate.UTC(),
		TotalAmount: total,
		AmountDue:   due,
		IsPaid:      seed.IsPaid,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
