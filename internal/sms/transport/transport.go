// Package transport sends one SMS and reports the provider's answer.
package transport

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=transport

import (
	"context"
	"fmt"

	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/zap"
)

// Result is the provider reply for an accepted message.
type Result struct {
	MessageID string
	Response  string
}

type Transport interface {
	Send(ctx context.Context, to, body string) (Result, error)
	Name() string
}

// New selects the transport named by SMS_PROVIDER.
func New(cfg config.Config, log *zap.Logger) (Transport, error) {
	switch cfg.SMS.Provider {
	case config.SMSProviderSemaphore:
		return NewSemaphore(cfg.SMS, log)
	case config.SMSProviderLog, "":
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}
}
