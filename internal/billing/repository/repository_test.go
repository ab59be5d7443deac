package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeOverdueGroupsInQuery(t *testing.T) {
	db := dbtest.Open(t)
	seed := func(id, consumer int64, amount string, day int, paid bool) {
		dbtest.SeedBill(t, db, dbtest.BillSeed{
			ID:          snowflake.ID(id),
			ConsumerID:  snowflake.ID(consumer),
			DueDate:     dbtest.Date(2024, 3, day),
			TotalAmount: amount,
			IsPaid:      paid,
		})
	}
	seed(1, 7, "10.00", 1, false)
	seed(2, 7, "12.50", 9, false)
	seed(3, 7, "99.00", 5, true)
	seed(4, 8, "40.00", 2, false)
	seed(5, 8, "40.00", 20, false)
	seed(6, 9, "1.00", 3, false)

	got, err := Provide().SummarizeOverdue(context.Background(), db, dbtest.Date(2024, 3, 20), 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, snowflake.ID(7), got[0].ConsumerID)
	assert.Equal(t, 2, got[0].BillCount)
	assert.True(t, decimal.RequireFromString("22.50").Equal(got[0].TotalAmount))
	assert.Equal(t, dbtest.Date(2024, 3, 9), got[0].LatestDueDate.UTC())

	all, err := Provide().SummarizeOverdue(context.Background(), db, dbtest.Date(2024, 3, 21), 1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []snowflake.ID{7, 8, 9}, []snowflake.ID{all[0].ConsumerID, all[1].ConsumerID, all[2].ConsumerID})
}
