package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/config"
	apperrors "github.com/frostdev-ops/alert-engine/pkg/errors"
)

const maxResponseBody = 4 << 10

// Poster sends JSON POSTs with retry, behind one circuit breaker per host
type Poster struct {
	name       string
	httpClient *http.Client
	retry      *apperrors.RetryExecutor
	cfg        config.WebhookConfig
	logger     *logrus.Logger

	mu       sync.Mutex
	breakers map[string]*apperrors.CircuitBreaker
}

// PostResult describes a completed POST
type PostResult struct {
	StatusCode int
	Body       string
	Attempts   int
}

// NewPoster creates a poster; name labels its breakers and log lines
func NewPoster(name string, cfg config.WebhookConfig, logger *logrus.Logger) *Poster {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}

	policy := apperrors.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	policy.InitialDelay = cfg.InitialBackoff

	return &Poster{
		name: name,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry:    apperrors.NewRetryExecutor(policy, logger),
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*apperrors.CircuitBreaker),
	}
}

func (p *Poster) breaker(host string) *apperrors.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb, ok := p.breakers[host]
	if !ok {
		cb = apperrors.NewCircuitBreaker(apperrors.CircuitBreakerConfig{
			Name:         p.name + ":" + host,
			MaxFailures:  p.cfg.BreakerFailures,
			ResetTimeout: p.cfg.BreakerResetTime,
			Logger:       p.logger,
		})
		p.breakers[host] = cb
	}
	return cb
}

// PostJSON marshals body and POSTs it to target. 5xx, 429 and network
// failures are retried; other non-2xx statuses fail at once.
func (p *Poster) PostJSON(ctx context.Context, target string, headers map[string]string, body interface{}) (*PostResult, error) {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", target)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	result := &PostResult{}
	err = p.breaker(parsed.Host).Execute(ctx, func() error {
		attempts, err := p.retry.Execute(ctx, p.name+" POST "+parsed.Host, func() error {
			return p.post(ctx, target, headers, payload, result)
		})
		result.Attempts = attempts
		return err
	})
	return result, err
}

func (p *Poster) post(ctx context.Context, target string, headers map[string]string, payload []byte, result *PostResult) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "alert-engine")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Retryable(fmt.Errorf("failed to perform request: %w", err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	result.StatusCode = resp.StatusCode
	result.Body = string(data)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.Retryable(fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	default:
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
}
