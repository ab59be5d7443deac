package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/authorization"
	disconnectiondomain "github.com/smallbiznis/tirta/internal/disconnection/domain"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	overduedomain "github.com/smallbiznis/tirta/internal/overdue/domain"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, ratelimit.ErrDispatchInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "another bulk dispatch is in progress",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    rootError(err).Error(),
			Message: unprocessableMessage(err),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, smsdomain.ErrTransportUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, overduedomain.ErrInvalidID),
		errors.Is(err, disconnectiondomain.ErrInvalidID),
		errors.Is(err, notificationdomain.ErrInvalidID),
		errors.Is(err, notificationdomain.ErrInvalidConsumer),
		errors.Is(err, notificationdomain.ErrInvalidTitle),
		errors.Is(err, notificationdomain.ErrInvalidMessage),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		smsdomain.IsValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, overduedomain.ErrNotFound),
		errors.Is(err, disconnectiondomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, disconnectiondomain.ErrIneligible),
		errors.Is(err, disconnectiondomain.ErrAlreadyDisconnected),
		errors.Is(err, disconnectiondomain.ErrNotDisconnected),
		errors.Is(err, smsdomain.ErrNoRecipients),
		errors.Is(err, notificationdomain.ErrNoConsumers):
		return true
	default:
		return false
	}
}

func unprocessableMessage(err error) string {
	switch {
	case errors.Is(err, disconnectiondomain.ErrIneligible):
		return "consumer is not eligible for this action"
	case errors.Is(err, disconnectiondomain.ErrAlreadyDisconnected):
		return "consumer is already disconnected"
	case errors.Is(err, disconnectiondomain.ErrNotDisconnected):
		return "consumer is not disconnected"
	case errors.Is(err, smsdomain.ErrNoRecipients):
		return "no selected consumer has a contact number"
	default:
		return "no consumers found"
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, smsdomain.ErrEmptySelection):
		return "invalid_consumer_ids"
	default:
		return rootError(err).Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_consumer_ids":
		return "select at least one consumer"
	default:
		return "invalid value"
	}
}

func rootError(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
