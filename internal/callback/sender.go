// ABOUTME: Signed webhook delivery of finished jobs
// ABOUTME: HMAC-SHA256 over "timestamp.body", retried with exponential backoff on 5xx and network errors

package callback

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clementeaf/ai-assistants/internal/retry"
	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

// Header names sent with every callback.
const (
	HeaderTimestamp = "X-Callback-Timestamp"
	HeaderSignature = "X-Callback-Signature"
	HeaderRequestID = "X-Request-Id"
	HeaderProjectID = "X-Project-Id"
)

// Defaults for delivery.
const (
	DefaultMaxRetries  = 3
	DefaultTimeout     = 5 * time.Second
	DefaultBaseBackoff = 200 * time.Millisecond
)

// Config configures a Sender. An empty URL disables delivery.
type Config struct {
	URL    string
	Secret string
	// MaxRetries is the number of attempts after the first. Negative means none.
	MaxRetries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Sender posts job results to a configured URL.
type Sender struct {
	url         string
	secret      []byte
	maxRetries  int
	timeout     time.Duration
	baseBackoff time.Duration
	client      *http.Client
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a Sender.
func New(cfg Config) *Sender {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		url:         cfg.URL,
		secret:      []byte(cfg.Secret),
		maxRetries:  cfg.MaxRetries,
		timeout:     cfg.Timeout,
		baseBackoff: cfg.BaseBackoff,
		client:      cfg.HTTPClient,
		now:         time.Now,
		logger:      logger.With("component", "callback"),
	}
}

// Enabled reports whether a callback URL is configured.
func (s *Sender) Enabled() bool {
	return s.url != ""
}

// Payload encodes job as the callback body. Keys are sorted and empty
// optional fields are null, so equal records always encode identically.
func Payload(job *store.JobRecord) ([]byte, error) {
	return json.Marshal(map[string]any{
		"job_id":          job.JobID,
		"status":          string(job.Status),
		"conversation_id": job.ConversationID,
		"message_id":      nullable(job.MessageID),
		"response_text":   nullable(job.ResponseText),
		"error_text":      nullable(job.ErrorText),
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Sign returns the signature header value for body sent at timestamp.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header in constant time.
func Verify(secret []byte, timestamp string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}

// statusError is a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("callback returned status %d", e.code)
}

// retryable reports whether err is worth another attempt: server errors,
// timeouts and transport failures are; client errors are not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

// Notify delivers job to the callback URL. Failures are logged and never
// returned.
func (s *Sender) Notify(ctx context.Context, job *store.JobRecord) {
	if !s.Enabled() || job == nil {
		return
	}
	logger := trace.Logger(ctx, s.logger).With("job_id", job.JobID, "status", job.Status)

	body, err := Payload(job)
	if err != nil {
		logger.Error("failed to encode callback payload", "error", err)
		return
	}

	attempts := 0
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  s.maxRetries + 1,
		InitialDelay: s.baseBackoff,
		MaxDelay:     retry.DefaultConfig.MaxDelay,
		ShouldRetry:  retryable,
		Logger:       logger,
	}, func() error {
		attempts++
		return s.post(ctx, body)
	})
	if err != nil {
		logger.Warn("callback delivery failed", "attempts", attempts, "error", err)
		return
	}
	logger.Debug("callback delivered", "attempts", attempts)
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	ts := strconv.FormatInt(s.now().Unix(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	if len(s.secret) > 0 {
		req.Header.Set(HeaderSignature, Sign(s.secret, ts, body))
	}
	if id := trace.RequestID(ctx); id != "" {
		req.Header.Set(HeaderRequestID, id)
	}
	if id := trace.ProjectID(ctx); id != "" {
		req.Header.Set(HeaderProjectID, id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}
