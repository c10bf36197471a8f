package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RemoteConfig configures the HTTP transcription client.
type RemoteConfig struct {
	// Endpoint is the full URL of an OpenAI-compatible
	// /v1/audio/transcriptions endpoint
	Endpoint string
	// APIKey is sent as a Bearer token; empty disables the header for
	// local servers that do not authenticate
	APIKey string
	// Model is the transcription model name (e.g. "whisper-1")
	Model string
	// Language is an optional ISO-639-1 hint
	Language string
	Timeout  time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// MaxConcurrent caps in-flight requests
	MaxConcurrent int
}

// RemoteClient sends audio to an OpenAI-compatible transcription endpoint
// with bounded concurrency and exponential-backoff retries.
type RemoteClient struct {
	config     RemoteConfig
	httpClient *http.Client
	semaphore  chan struct{}

	mu              sync.RWMutex
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
}

// Stats is a snapshot of client counters.
type Stats struct {
	TotalRequests   uint64
	SuccessRequests uint64
	FailedRequests  uint64
	TotalRetries    uint64
}

// NewRemoteClient creates a remote transcription client.
func NewRemoteClient(config RemoteConfig) (*RemoteClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &RemoteClient{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// apiResponse is the JSON body of a successful transcription.
type apiResponse struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// httpError carries the status code so retry decisions do not depend on
// message text.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.status, e.body)
}

// Transcribe sends the blob and returns the recognized text.
func (c *RemoteClient) Transcribe(ctx context.Context, blob []byte, filename string) (Result, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	c.count(func() { c.totalRequests++ })

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.count(func() { c.totalRetries++ })

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, blob, filename)
		if err == nil {
			c.count(func() { c.successRequests++ })
			return Result{
				Text:     strings.TrimSpace(resp.Text),
				Language: resp.Language,
				Latency:  time.Since(start),
			}, nil
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	c.count(func() { c.failedRequests++ })
	return Result{}, fmt.Errorf("transcription failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *RemoteClient) doRequest(ctx context.Context, blob []byte, filename string) (*apiResponse, error) {
	body, contentType, err := c.createMultipartRequest(blob, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
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
		return nil, &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return &parsed, nil
}

func (c *RemoteClient) createMultipartRequest(blob []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if filename == "" {
		filename = "audio.wav"
	}
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(blob); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"model":           c.config.Model,
		"response_format": "json",
	}
	if c.config.Language != "" {
		fields["language"] = c.config.Language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// isRetryable reports whether a failed attempt is worth repeating: server
// errors, rate limiting and transport-level failures are; client errors such
// as a bad API key are not.
func isRetryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 500 || he.status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused")
}

func (c *RemoteClient) count(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

// GetStats returns current client counters.
func (c *RemoteClient) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		TotalRetries:    c.totalRetries,
	}
}

// Close waits for all in-flight requests to complete.
func (c *RemoteClient) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
