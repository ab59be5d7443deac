package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("consumer_id", "42"),
		attribute.String("contact_number", "09171234567"),
		attribute.String("message", "Hello Juan"),
	)

	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("consumer_id"), attrs[0].Key)
}

func TestSafeErrorReturnsInnermostMessage(t *testing.T) {
	root := errors.New("connection refused")
	wrapped := fmt.Errorf("insert sms log 09171234567: %w", root)

	assert.EqualError(t, SafeError(wrapped), "connection refused")
	assert.Nil(t, SafeError(nil))
}
