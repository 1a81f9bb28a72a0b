// Package ai produces per-file summaries through an OpenAI-compatible
// chat-completions endpoint. The client is resilient by construction:
// retrying transport, token-bucket rate limit, and a circuit breaker so a
// dead endpoint stops costing a round-trip per file.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/logging"
	"github.com/satchelworks/satchel/internal/resilience"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("summarizer not configured")

// maxPromptBytes bounds how much of a file body is sent per request.
const maxPromptBytes = 16 * 1024

// Client talks to one chat-completions endpoint.
type Client struct {
	resty       *resty.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	model       string
	maxParallel int
	logger      *logging.Logger
}

// NewClient builds a summarizer client from configuration. A client with
// an empty BaseURL is valid but reports Enabled() == false.
func NewClient(cfg config.AIConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	rc.SetTransport(retryClient.HTTPClient.Transport)
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	breaker := resilience.New("ai-summarizer", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	parallel := cfg.MaxParallel
	if parallel < 1 {
		parallel = 1
	}

	return &Client{
		resty:       rc,
		limiter:     limiter,
		breaker:     breaker,
		model:       cfg.Model,
		maxParallel: parallel,
		logger:      logger.Scoped("ai"),
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.resty.BaseURL != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Summarize produces a short summary of one file body. It blocks on the
// rate limiter and fails fast when the breaker is open.
func (c *Client) Summarize(ctx context.Context, relPath string, content []byte) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := content
	if len(body) > maxPromptBytes {
		body = body[:maxPromptBytes]
	}

	var summary string
	err := c.breaker.Do(func() error {
		req := chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{
					Role:    "system",
					Content: "You summarize source files in one or two sentences. Reply with the summary only.",
				},
				{
					Role:    "user",
					Content: fmt.Sprintf("File: %s\n\n%s", relPath, body),
				},
			},
			MaxTokens: 120,
		}

		var out chatResponse
		resp, err := c.resty.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/chat/completions")
		if err != nil {
			return err
		}
		if resp.IsError() {
			if out.Error != nil {
				return fmt.Errorf("summarize %s: %s", relPath, out.Error.Message)
			}
			return fmt.Errorf("summarize %s: status %d", relPath, resp.StatusCode())
		}
		if len(out.Choices) == 0 {
			return fmt.Errorf("summarize %s: empty response", relPath)
		}

		summary = strings.TrimSpace(out.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}

// Request pairs a path with the body to summarize.
type Request struct {
	RelPath string
	Content []byte
}

// SummarizeAll summarizes a batch concurrently, bounded by MaxParallel.
// Per-file failures are logged and leave an empty string; the returned
// slice always has one entry per request, in order.
func (c *Client) SummarizeAll(ctx context.Context, reqs []Request) []string {
	summaries := make([]string, len(reqs))
	if !c.Enabled() || len(reqs) == 0 {
		return summaries
	}

	var failed sync.Map
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			summary, err := c.Summarize(gctx, req.RelPath, req.Content)
			if err != nil {
				failed.Store(req.RelPath, err)
				return nil
			}
			summaries[i] = summary
			return nil
		})
	}
	g.Wait()

	failed.Range(func(key, value any) bool {
		c.logger.Warn("summary failed",
			zap.String("path", key.(string)),
			zap.Error(value.(error)))
		return true
	})

	return summaries
}
