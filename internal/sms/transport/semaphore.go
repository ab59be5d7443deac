package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxResponseBytes = 64 << 10

var ErrMissingAPIKey = errors.New("semaphore_api_key_missing")

type semaphoreMessage struct {
	MessageID json.Number `json:"message_id"`
	Status    string      `json:"status"`
	Recipient string      `json:"recipient"`
}

// Semaphore sends through the Semaphore messages API.
type Semaphore struct {
	baseURL    string
	apiKey     string
	senderName string
	client     *http.Client
	log        *zap.Logger
}

func NewSemaphore(cfg config.SMSConfig, log *zap.Logger) (*Semaphore, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Semaphore{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		senderName: cfg.SenderName,
		client:     &http.Client{Timeout: timeout},
		log:        log.Named("sms.transport.semaphore"),
	}, nil
}

func (t *Semaphore) Name() string { return "semaphore" }

func (t *Semaphore) Send(ctx context.Context, to, body string) (res Result, err error) {
	ctx, span := tracing.Start(ctx, "sms.transport.send", attribute.String("provider", t.Name()))
	defer func() { tracing.End(span, err) }()

	values := url.Values{}
	values.Set("apikey", t.apiKey)
	values.Set("number", to)
	values.Set("message", body)
	if t.senderName != "" {
		values.Set("sendername", t.senderName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", strings.NewReader(values.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("semaphore request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read semaphore response: %w", err)
	}
	text := strings.TrimSpace(string(raw))

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{Response: text}, fmt.Errorf("semaphore status %d: %s", resp.StatusCode, text)
	}

	var messages []semaphoreMessage
	if err := json.Unmarshal(raw, &messages); err != nil || len(messages) == 0 {
		// Validation failures come back as 200 with an error object instead of a list.
		return Result{Response: text}, fmt.Errorf("semaphore rejected message: %s", text)
	}
	msg := messages[0]
	if strings.EqualFold(msg.Status, "failed") || strings.EqualFold(msg.Status, "refunded") {
		return Result{MessageID: msg.MessageID.String(), Response: text}, fmt.Errorf("semaphore status %s", msg.Status)
	}

	t.log.Debug("sms accepted", zap.String("message_id", msg.MessageID.String()), zap.String("status", msg.Status))
	return Result{MessageID: msg.MessageID.String(), Response: text}, nil
}
