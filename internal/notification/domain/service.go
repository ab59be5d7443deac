package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	ConsumerID string `json:"consumer_id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

type BroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type BroadcastResult struct {
	Count int `json:"count"`
}

type ListRequest struct {
	Search   string
	Archived bool
	Page     int
	PageSize int
}

type ListResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

type Service interface {
	// Emit writes one unread notification through db, usually the caller's transaction.
	Emit(ctx context.Context, db *gorm.DB, consumerID snowflake.ID, title, message string) (*Notification, error)
	EmitMany(ctx context.Context, db *gorm.DB, drafts []Draft) ([]*Notification, error)

	Create(ctx context.Context, req CreateRequest) (Notification, error)
	BroadcastAll(ctx context.Context, req BroadcastRequest) (BroadcastResult, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	ListForConsumer(ctx context.Context, consumerID string, page pagination.Page) (ListResponse, error)

	MarkAsRead(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Unarchive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidConsumer = errors.New("invalid_consumer")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidMessage  = errors.New("invalid_message")
	ErrNotFound        = errors.New("not_found")
	ErrNoConsumers     = errors.New("no_consumers")
)
