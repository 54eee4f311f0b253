package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/audio"
)

// Client provides HTTP client functionality for the external synthesis
// backend with bounded concurrency, retries, and request statistics.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Concurrency cap toward the backend

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains synthesis client configuration
type Config struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int
	DefaultVoice    string
	DefaultLanguage string
}

// synthesisRequest is the JSON body sent to the backend
type synthesisRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language,omitempty"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// statusError marks an HTTP status failure so retry logic can distinguish
// server-side failures from client mistakes
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}

// NewClient creates a new synthesis backend client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	if config.DefaultVoice == "" {
		config.DefaultVoice = "default"
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Synthesize requests the complete waveform for req from the backend
func (c *Client) Synthesize(ctx context.Context, req Request) (*Take, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		take, err := c.doRequest(ctx, req)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return take, nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, &SynthesisError{
		Detail: fmt.Sprintf("engine request failed after %d attempts", c.config.MaxRetries+1),
		Err:    lastErr,
	}
}

// SynthesizeStream produces the waveform as fixed-size chunks. The backend
// returns complete takes, so the full waveform is generated first and
// chunked lazily toward the caller.
func (c *Client) SynthesizeStream(ctx context.Context, req Request, chunkSize int) (<-chan []byte, <-chan error) {
	take, err := c.Synthesize(ctx, req)
	if err != nil {
		return failStream(err)
	}
	return streamTake(ctx, take, chunkSize)
}

// doRequest performs a single HTTP request against the backend
func (c *Client) doRequest(ctx context.Context, req Request) (*Take, error) {
	if req.Voice == "" {
		req.Voice = c.config.DefaultVoice
	}
	if req.Language == "" {
		req.Language = c.config.DefaultLanguage
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	body, err := json.Marshal(synthesisRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Language: req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")
	httpReq.Header.Set("User-Agent", "tonev-server/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(respBody)
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return nil, &statusError{code: resp.StatusCode, body: detail}
	}

	samples, sampleRate, err := audio.DecodeWAV(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode engine response: %w", err)
	}

	return &Take{Samples: samples, SampleRate: sampleRate}, nil
}

// isRetryableError reports whether a request should be attempted again.
// Client mistakes (4xx) are final; transport failures and server errors
// are retried.
func (c *Client) isRetryableError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := 0.0
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests)
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	c.successRequests++
	c.mu.Unlock()
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()
}

func (c *Client) updateAvgResponseTime(d time.Duration) {
	c.mu.Lock()
	if c.avgResponseTime == 0 {
		c.avgResponseTime = d
	} else {
		c.avgResponseTime = (c.avgResponseTime + d) / 2
	}
	c.mu.Unlock()
}
