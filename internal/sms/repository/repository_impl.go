package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertMany(ctx context.Context, db *gorm.DB, rows []*domain.SmsLog) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SmsLog, error) {
	var row domain.SmsLog
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.SmsLog{}).
		Where("id = ? AND status = ?", id, domain.StatusQueued).
		Updates(map[string]any{
			"status":     domain.StatusSending,
			"claimed_at": &at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Finalize(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome domain.Outcome) (bool, error) {
	at := outcome.At
	res := db.WithContext(ctx).
		Model(&domain.SmsLog{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":           outcome.Status,
			"is_success":       outcome.Success,
			"response_message": outcome.Response,
			"sent_at":          &at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListLatest(ctx context.Context, db *gorm.DB, limit int) ([]*domain.SmsLog, error) {
	var rows []*domain.SmsLog
	err := db.WithContext(ctx).
		Order("COALESCE(sent_at, queued_at) desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListStaleQueued(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]*domain.SmsLog, error) {
	var rows []*domain.SmsLog
	err := db.WithContext(ctx).
		Where("(status = ? AND queued_at < ?) OR (status = ? AND claimed_at < ?)",
			domain.StatusQueued, before, domain.StatusSending, before).
		Order("queued_at asc, id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) TouchQueued(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.SmsLog{}).
		Where("id IN ? AND status IN ?", ids, []domain.Status{domain.StatusQueued, domain.StatusSending}).
		Updates(map[string]any{
			"status":     domain.StatusQueued,
			"queued_at":  at,
			"claimed_at": nil,
		}).Error
}

const recipientsFrom = `
FROM consumers c
JOIN billings b ON b.consumer_id = c.id AND b.is_paid = ?
WHERE (? = '' OR LOWER(c.first_name) LIKE ? OR LOWER(c.last_name) LIKE ?)`

func (r *repo) ListRecipientIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	rows, err := db.WithContext(ctx).
		Raw(`SELECT DISTINCT c.id`+recipientsFrom+`
ORDER BY c.id ASC`, false, "", "%", "%").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []snowflake.ID{}
	for rows.Next() {
		var id snowflake.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repo) ListRecipients(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Recipient, int64, error) {
	search = strings.ToLower(strings.TrimSpace(search))
	like := "%" + search + "%"
	args := []any{false, search, like, like}

	var total int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(DISTINCT c.id)`+recipientsFrom, args...).
		Scan(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []domain.Recipient
	err = db.WithContext(ctx).
		Raw(`SELECT c.id AS consumer_id, c.first_name, c.last_name, c.contact_number,
	COALESCE(c.account_number, '') AS account_number, COUNT(b.id) AS unpaid_bills`+recipientsFrom+`
GROUP BY c.id, c.first_name, c.last_name, c.contact_number, c.account_number
ORDER BY c.last_name ASC, c.first_name ASC, c.id ASC
LIMIT ? OFFSET ?`, append(args, limit, offset)...).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
