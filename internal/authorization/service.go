package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Service interface {
	// Authorize checks role against object/action and returns ErrForbidden when denied.
	Authorize(ctx context.Context, role, object, action string) error
}
