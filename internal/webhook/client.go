package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperlyzer/analysis-service/internal/config"
	"github.com/paperlyzer/analysis-service/internal/domain"
	"github.com/paperlyzer/analysis-service/internal/observability"
)

// Endpoint names used in logs and metrics labels.
const (
	EndpointKeywords       = "keywords"
	EndpointClassification = "classification"
)

// authHeader carries the shared webhook token n8n validates.
const authHeader = "X-Webhook-Token"

// maxResponseBytes caps webhook response bodies read into memory.
const maxResponseBytes = 4 << 20

// KeywordRequest is the payload for the keyword extraction webhook.
type KeywordRequest struct {
	PaperID string `json:"paper_id"`
	Text    string `json:"text"`
}

// KeywordResponse is the keyword extraction result.
type KeywordResponse struct {
	Keywords []string `json:"keywords"`
}

// SentenceInput is one sentence submitted for classification.
type SentenceInput struct {
	SentenceID string `json:"sentence_id"`
	Text       string `json:"text"`
}

// ClassificationRequest is the payload for the OD/CD classification webhook.
type ClassificationRequest struct {
	PaperID   string          `json:"paper_id"`
	Sentences []SentenceInput `json:"sentences"`
}

// ClassificationResult is the label assigned to one submitted sentence.
type ClassificationResult struct {
	SentenceID     string  `json:"sentence_id"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// ClassificationResponse is the classification webhook result.
type ClassificationResponse struct {
	Results []ClassificationResult `json:"results"`
}

// ProbeResult is the outcome of a wiring probe against one endpoint.
type ProbeResult struct {
	Endpoint   string
	URL        string
	Reachable  bool
	StatusCode int
	Latency    time.Duration
	Error      string
}

// Client calls the n8n webhook workflows. It applies rate limiting before
// every request and never retries; retry policy belongs to the pipeline.
type Client struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	cfg         config.WebhookConfig
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewClient creates a webhook client from configuration.
// metrics may be nil; probe and request metrics are then skipped.
func NewClient(cfg config.WebhookConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ratePerSecond := cfg.RateLimit
	if ratePerSecond == 0 {
		ratePerSecond = 5
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = 5
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: NewRateLimiter(ratePerSecond, burst),
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger.With().Str("component", "webhook").Logger(),
	}
}

// ExtractKeywords calls the keyword extraction webhook.
func (c *Client) ExtractKeywords(ctx context.Context, req KeywordRequest) (*KeywordResponse, error) {
	url := c.cfg.KeywordURL()
	if url == "" {
		return nil, domain.NewValidationError("base_url", "webhook base URL is not configured")
	}

	var resp KeywordResponse
	if err := c.post(ctx, EndpointKeywords, url, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClassifyDefinitions calls the OD/CD classification webhook.
func (c *Client) ClassifyDefinitions(ctx context.Context, req ClassificationRequest) (*ClassificationResponse, error) {
	url := c.cfg.ClassificationURL()
	if url == "" {
		return nil, domain.NewValidationError("base_url", "webhook base URL is not configured")
	}
	if len(req.Sentences) == 0 {
		return nil, domain.NewValidationError("sentences", "at least one sentence is required")
	}

	var resp ClassificationResponse
	if err := c.post(ctx, EndpointClassification, url, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe checks whether both webhook endpoints answer HTTP at all. Any HTTP
// status counts as reachable; n8n answers 404 for unregistered webhook
// paths, which the wiring diagnostic reports separately from a down host.
func (c *Client) Probe(ctx context.Context) []ProbeResult {
	endpoints := []struct {
		name string
		url  string
	}{
		{EndpointKeywords, c.cfg.KeywordURL()},
		{EndpointClassification, c.cfg.ClassificationURL()},
	}

	results := make([]ProbeResult, 0, len(endpoints))
	for _, ep := range endpoints {
		results = append(results, c.probeOne(ctx, ep.name, ep.url))
	}
	return results
}

func (c *Client) probeOne(ctx context.Context, endpoint, url string) ProbeResult {
	result := ProbeResult{Endpoint: endpoint, URL: url}
	if url == "" {
		result.Error = "webhook URL is not configured"
		c.recordProbe(endpoint, "unconfigured", 0)
		return result
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		c.recordProbe(endpoint, "unreachable", result.Latency.Seconds())
		c.logger.Warn().Str("endpoint", endpoint).Err(err).Msg("webhook probe failed")
		return result
	}
	defer drainAndClose(resp.Body)

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	c.recordProbe(endpoint, "reachable", result.Latency.Seconds())
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("latency", result.Latency).
		Msg("webhook probe completed")
	return result
}

func (c *Client) post(ctx context.Context, endpoint, url string, payload, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.recordProbe(endpoint, "error", elapsed.Seconds())
		return domain.NewExternalAPIError("n8n", 0, "request failed", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.recordProbe(endpoint, "error", elapsed.Seconds())
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewExternalAPIError("n8n", resp.StatusCode, string(msg), domain.ErrServiceUnavailable)
	}

	c.recordProbe(endpoint, "ok", elapsed.Seconds())

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return domain.NewExternalAPIError("n8n", resp.StatusCode, "failed to decode response", err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Paperlyzer-AnalysisService/1.0")
	if c.cfg.AuthToken != "" {
		req.Header.Set(authHeader, c.cfg.AuthToken)
	}
}

func (c *Client) recordProbe(endpoint, outcome string, seconds float64) {
	if c.metrics != nil {
		c.metrics.RecordWebhookProbe(endpoint, outcome, seconds)
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}
