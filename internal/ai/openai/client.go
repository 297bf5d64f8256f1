// Package openai implements the resilient client for the chat-completions
// decomposition endpoint: per-attempt timeout, retry with exponential
// backoff, and a shared circuit breaker.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smallbiznis/taskforge/internal/ai/breaker"
	"github.com/smallbiznis/taskforge/internal/ai/domain"
	"github.com/smallbiznis/taskforge/internal/config"
	"github.com/smallbiznis/taskforge/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ClientParam struct {
	fx.In

	Cfg     config.Config
	AICfg   *config.AIConfigHolder
	Log     *zap.Logger
	Breaker *breaker.Breaker
	Metrics *metrics.Metrics `optional:"true"`
}

type Client struct {
	http    *http.Client
	cfg     config.Config
	aicfg   *config.AIConfigHolder
	log     *zap.Logger
	breaker *breaker.Breaker
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(p ClientParam) domain.Generator {
	return &Client{
		http:    &http.Client{},
		cfg:     p.Cfg,
		aicfg:   p.AICfg,
		log:     p.Log.Named("ai.openai"),
		breaker: p.Breaker,
		metrics: p.Metrics,
		sleep:   sleepCtx,
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.AIConfigured()
}

func (c *Client) GenerateSubTasks(ctx context.Context, req domain.Request) ([]domain.SubTask, error) {
	if !c.Enabled() {
		return nil, domain.ErrNotConfigured
	}

	cfg := c.aicfg.Get()
	if domain.TooAmbiguous(req.BaseText(), cfg.MinChars, cfg.MinWords) {
		c.log.Info("skipping generation for ambiguous input",
			zap.Int("chars", len(req.BaseText())))
		return nil, nil
	}

	if !c.breaker.Allow() {
		c.log.Warn("circuit open, skipping generation")
		return nil, domain.ErrCircuitOpen
	}

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	maxAttempts := cfg.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		items, err := c.attempt(ctx, cfg, body)
		if err == nil {
			c.breaker.RecordSuccess()
			if c.metrics != nil {
				c.metrics.BreakerOpen.Set(0)
			}
			return c.filter(req, items, cfg.MaxChildren), nil
		}

		lastErr = err
		c.log.Warn("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		if c.metrics != nil {
			c.metrics.GenerationRetries.Inc()
		}
		if err := c.sleep(ctx, backoff(cfg, attempt)); err != nil {
			lastErr = err
			break
		}
	}

	if opened := c.breaker.RecordFailure(); opened {
		c.log.Warn("circuit opened after sustained failures",
			zap.Int("failures", c.breaker.Failures()))
		if c.metrics != nil {
			c.metrics.BreakerOpen.Set(1)
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailed, lastErr)
}

func (c *Client) attempt(ctx context.Context, cfg config.AIConfig, body []byte) ([]domain.SubTask, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.OpenAIEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion status %d", resp.StatusCode)
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return nil, nil
	}
	return parseChildren(envelope.Choices[0].Message.Content), nil
}

// filter drops proposals that echo the parent back and caps fan-out.
func (c *Client) filter(req domain.Request, items []domain.SubTask, maxChildren int) []domain.SubTask {
	parentTitle := domain.Normalize(req.Title)
	parentDesc := domain.Normalize(req.Description)

	out := make([]domain.SubTask, 0, len(items))
	for _, item := range items {
		title := domain.Normalize(item.Title)
		desc := domain.Normalize(item.Description)
		if parentTitle != "" && (title == parentTitle || desc == parentTitle) {
			continue
		}
		if parentDesc != "" && (title == parentDesc || desc == parentDesc) {
			continue
		}
		out = append(out, item)
		if len(out) == maxChildren {
			break
		}
	}
	return out
}

func backoff(cfg config.AIConfig, attempt int) time.Duration {
	d := cfg.InitialBackoff << (attempt - 1)
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
