package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billings (id, consumer_id, due_date, total_amount, amount_due, is_paid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bill.ID,
		bill.ConsumerID,
		bill.DueDate,
		bill.TotalAmount,
		bill.AmountDue,
		bill.IsPaid,
		bill.CreatedAt,
	).Error
}

func (r *repo) SummarizeOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, minBills int) ([]domain.OverdueTotals, error) {
	rows, err := db.WithContext(ctx).Raw(
		`SELECT consumer_id, COUNT(*) AS bill_count, SUM(total_amount) AS total_amount, MAX(due_date) AS latest_due_date
		 FROM billings
		 WHERE is_paid = ? AND due_date < ?
		 GROUP BY consumer_id
		 HAVING COUNT(*) >= ?
		 ORDER BY consumer_id ASC`,
		false, asOf, minBills,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.OverdueTotals{}
	for rows.Next() {
		var (
			row    domain.OverdueTotals
			latest aggregateTime
		)
		if err := rows.Scan(&row.ConsumerID, &row.BillCount, &row.TotalAmount, &latest); err != nil {
			return nil, err
		}
		row.TotalAmount = row.TotalAmount.Round(2)
		row.LatestDueDate = latest.Time
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repo) CountUnpaidOverdue(ctx context.Context, db *gorm.DB, consumerID snowflake.ID, asOf time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("consumer_id = ? AND is_paid = ? AND due_date < ?", consumerID, false, asOf).
		Count(&count).Error
	return count, err
}

func (r *repo) ListUnpaidByConsumers(ctx context.Context, db *gorm.DB, consumerIDs []snowflake.ID) ([]*domain.Bill, error) {
	if len(consumerIDs) == 0 {
		return []*domain.Bill{}, nil
	}
	var bills []*domain.Bill
	err := db.WithContext(ctx).
		Where("consumer_id IN ? AND is_paid = ?", consumerIDs, false).
		Order("consumer_id asc, due_date asc, id asc").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}
