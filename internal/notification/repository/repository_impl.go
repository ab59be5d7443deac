package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/notification/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertMany(ctx context.Context, db *gorm.DB, rows []*domain.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var row domain.Notification
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Notification, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("is_archived = ?", filter.Archived)
	if filter.ConsumerID != nil {
		stmt = stmt.Where("consumer_id = ?", *filter.ConsumerID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("(LOWER(title) LIKE ? OR LOWER(message) LIKE ?)", like, like)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*domain.Notification
	err := stmt.
		Order("created_at desc, id desc").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repo) SetFlag(ctx context.Context, db *gorm.DB, id snowflake.ID, flag domain.Flag, value bool) (bool, error) {
	switch flag {
	case domain.FlagRead, domain.FlagArchived:
	default:
		return false, errors.New("unknown notification flag")
	}
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Update(string(flag), value)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM notifications WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
