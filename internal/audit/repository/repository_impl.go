package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/tirta/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditTrail) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_trails (id, action, performed_by, details, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Action,
		entry.PerformedBy,
		entry.Details,
		entry.Metadata,
		entry.Timestamp,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditTrail, error) {
	var rows []*domain.AuditTrail
	stmt := db.WithContext(ctx).Model(&domain.AuditTrail{})

	if filter.Action != "" {
		stmt = stmt.Where("action = ?", filter.Action)
	}
	if actor := strings.TrimSpace(filter.PerformedBy); actor != "" {
		stmt = stmt.Where("LOWER(performed_by) = ?", strings.ToLower(actor))
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(timestamp < ?) OR (timestamp = ? AND id < ?)",
			filter.Cursor.Timestamp,
			filter.Cursor.Timestamp,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("timestamp desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
