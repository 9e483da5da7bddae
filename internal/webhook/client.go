package webhook

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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/chartflow/internal/id"
)

const (
	HeaderSignature = "X-Chartflow-Signature"
	HeaderTimestamp = "X-Chartflow-Timestamp"
	HeaderEvent     = "X-Chartflow-Event"
	HeaderDelivery  = "X-Chartflow-Delivery"
)

const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Envelope is the JSON body of every delivery. ID is shared by all attempts
// of one delivery so receivers can drop duplicates.
type Envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient *http.Client
	secret     string
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		secret:     cfg.SigningSecret,
		attempts:   max(1, cfg.MaxAttempts),
		backoff:    cfg.InitialBackoff,
		maxBackoff: max(cfg.MaxBackoff, cfg.InitialBackoff),
	}
}

// Send posts event to endpoint, retrying transport errors, 5xx, 408 and 429
// with exponential backoff. An empty endpoint is a no-op.
func (c *Client) Send(ctx context.Context, endpoint, event string, data any) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	env := Envelope{ID: id.New(), Event: event, CreatedAt: time.Now().UTC(), Data: data}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	timestamp := strconv.FormatInt(env.CreatedAt.Unix(), 10)
	signature := Sign(c.secret, timestamp, body)

	wait := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		res := c.deliver(ctx, endpoint, env, timestamp, signature, body)
		if res.err == nil {
			return nil
		}
		lastErr = res.err
		if !res.retry {
			return fmt.Errorf("webhook delivery failed on attempt %d: %w", attempt, lastErr)
		}
		if attempt == c.attempts {
			break
		}

		delay := wait
		if res.retryAfter > 0 {
			delay = res.retryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(delay, c.maxBackoff)):
		}
		wait = min(wait*2, c.maxBackoff)
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.attempts, lastErr)
}

type attemptResult struct {
	err        error
	retry      bool
	retryAfter time.Duration
}

func (c *Client) deliver(ctx context.Context, endpoint string, env Envelope, timestamp, signature string, body []byte) attemptResult {
	if err := ctx.Err(); err != nil {
		return attemptResult{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptResult{err: fmt.Errorf("build webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, env.Event)
	req.Header.Set(HeaderDelivery, env.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return attemptResult{err: err, retry: ctx.Err() == nil}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return attemptResult{}
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return attemptResult{
			err:        fmt.Errorf("webhook returned status=%d", code),
			retry:      true,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return attemptResult{err: fmt.Errorf("webhook rejected delivery status=%d", code)}
	}
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Sign computes the signature header value for a delivery:
// "sha256=" + hex(HMAC-SHA256(secret, timestamp + "." + body)).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received delivery against the shared secret, rejecting
// timestamps further than tolerance from now.
func Verify(secret, signature, timestamp string, body []byte, tolerance time.Duration, now time.Time) error {
	sent, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if tolerance > 0 {
		skew := now.Sub(time.Unix(sent, 0))
		if skew < -tolerance || skew > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(secret, timestamp, body))) {
		return ErrInvalidSignature
	}
	return nil
}
