package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/consumer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, consumer *domain.Consumer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consumers (id, first_name, last_name, contact_number, account_number, address,
		 status, is_disconnected, active_disconnection_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		consumer.ID,
		consumer.FirstName,
		consumer.LastName,
		consumer.ContactNumber,
		consumer.AccountNumber,
		consumer.Address,
		consumer.Status,
		consumer.IsDisconnected,
		consumer.ActiveDisconnectionID,
		consumer.CreatedAt,
		consumer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Consumer, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Consumer, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Consumer, error) {
	var consumer domain.Consumer
	err := stmt.Where("id = ?", id).First(&consumer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &consumer, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Consumer, error) {
	if len(ids) == 0 {
		return []*domain.Consumer{}, nil
	}
	var consumers []*domain.Consumer
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&consumers).Error
	if err != nil {
		return nil, err
	}
	return consumers, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]*domain.Consumer, error) {
	var consumers []*domain.Consumer
	if err := db.WithContext(ctx).Order("id asc").Find(&consumers).Error; err != nil {
		return nil, err
	}
	return consumers, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.StatusUpdate) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE consumers SET status = ?, is_disconnected = ?, active_disconnection_id = ?, updated_at = ?
		 WHERE id = ?`,
		update.Status,
		update.Status == domain.StatusDisconnected,
		update.ActiveDisconnectionID,
		update.UpdatedAt,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
