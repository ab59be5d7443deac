package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/disconnection/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, row *domain.Disconnection) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO disconnections (id, consumer_id, date_disconnected, date_reconnected, is_reconnected,
		 remarks, action, performed_by, reconnected_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.ConsumerID,
		row.DateDisconnected,
		row.DateReconnected,
		row.IsReconnected,
		row.Remarks,
		row.Action,
		row.PerformedBy,
		row.ReconnectedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Disconnection, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindLatestOpen(ctx context.Context, db *gorm.DB, consumerID snowflake.ID) (*domain.Disconnection, error) {
	return first(db.WithContext(ctx).
		Where("consumer_id = ? AND is_reconnected = ?", consumerID, false).
		Order("date_disconnected desc, id desc"))
}

func first(stmt *gorm.DB) (*domain.Disconnection, error) {
	var row domain.Disconnection
	err := stmt.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) MarkReconnected(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, by string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE disconnections SET is_reconnected = ?, date_reconnected = ?, reconnected_by = ?
		 WHERE id = ? AND is_reconnected = ?`,
		true, at, by, id, false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByConsumer(ctx context.Context, db *gorm.DB, consumerID snowflake.ID) ([]*domain.Disconnection, error) {
	var rows []*domain.Disconnection
	err := db.WithContext(ctx).
		Where("consumer_id = ?", consumerID).
		Order("date_disconnected desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
