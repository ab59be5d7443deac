package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSemaphore(t *testing.T, handler http.HandlerFunc) *Semaphore {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewSemaphore(config.SMSConfig{
		APIKey:     "secret",
		SenderName: "SANTAFE",
		BaseURL:    srv.URL + "/",
		Timeout:    time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestSemaphoreSendPostsForm(t *testing.T) {
	s := newSemaphore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("apikey"))
		assert.Equal(t, "09171234567", r.PostForm.Get("number"))
		assert.Equal(t, "hello", r.PostForm.Get("message"))
		assert.Equal(t, "SANTAFE", r.PostForm.Get("sendername"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"message_id":1234,"status":"Pending","recipient":"639171234567"}]`))
	})

	res, err := s.Send(context.Background(), "09171234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "1234", res.MessageID)
	assert.Contains(t, res.Response, "Pending")
}

func TestSemaphoreSendReportsProviderErrors(t *testing.T) {
	s := newSemaphore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	})

	res, err := s.Send(context.Background(), "0917", "hello")
	require.Error(t, err)
	assert.Contains(t, res.Response, "invalid api key")
}

func TestSemaphoreSendRejectsValidationBody(t *testing.T) {
	s := newSemaphore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number":["The number format is invalid."]}`))
	})

	res, err := s.Send(context.Background(), "abc", "hello")
	require.Error(t, err)
	assert.Contains(t, res.Response, "number format")
}

func TestSemaphoreSendFailedStatus(t *testing.T) {
	s := newSemaphore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"message_id":"77","status":"Failed"}]`))
	})

	res, err := s.Send(context.Background(), "0917", "hello")
	require.Error(t, err)
	assert.Equal(t, "77", res.MessageID)
}

func TestNewSelectsProvider(t *testing.T) {
	log := zaptest.NewLogger(t)

	tr, err := New(config.Config{SMS: config.SMSConfig{Provider: config.SMSProviderLog}}, log)
	require.NoError(t, err)
	assert.Equal(t, "log", tr.Name())

	_, err = New(config.Config{SMS: config.SMSConfig{Provider: config.SMSProviderSemaphore}}, log)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(config.Config{SMS: config.SMSConfig{Provider: "carrier-pigeon"}}, log)
	assert.Error(t, err)
}

func TestLogTransportAccepts(t *testing.T) {
	res, err := NewLog(zaptest.NewLogger(t)).Send(context.Background(), "0917", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	p := config.DefaultPolicy()
	p.SMS.BreakerThreshold = 3
	p.SMS.BreakerCooldown = time.Minute
	b := NewBreaker(fake, config.NewStaticPolicyHolder(p))

	assert.False(t, b.Record(false))
	assert.False(t, b.Record(true))
	assert.Equal(t, 0, b.Failures())

	assert.False(t, b.Record(false))
	assert.False(t, b.Record(false))
	assert.True(t, b.Record(false))
	assert.True(t, b.Open())

	fake.Advance(59 * time.Second)
	assert.True(t, b.Open())
	fake.Advance(time.Second)
	assert.False(t, b.Open())
}

func TestNilBreakerIsClosed(t *testing.T) {
	var b *Breaker
	assert.False(t, b.Open())
	assert.False(t, b.Record(false))
}
