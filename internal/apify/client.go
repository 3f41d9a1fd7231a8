package apify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/config"
	"github.com/vindash/internal/metrics"
	"github.com/vindash/internal/utils"
)

// RunClient is the interface the orchestration layer depends on for
// starting and tracking actor runs.
type RunClient interface {
	StartRun(ctx context.Context, input *RunInput) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetRunResults(ctx context.Context, runID string) ([]*DatasetItem, error)
	PollRun(ctx context.Context, runID string) (*Run, error)
	RunAndWait(ctx context.Context, input *RunInput) ([]*DatasetItem, error)
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
}

// Client talks to the Apify platform API
type Client struct {
	httpClient  *resty.Client
	config      *config.ApifyConfig
	rateLimiter *utils.RateLimiter
	metrics     *metrics.Metrics
}

// NewClient creates a new Apify client
func NewClient(cfg *config.ApifyConfig, httpCfg *config.HTTPConfig, m *metrics.Metrics) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(httpCfg.Timeout)
	client.SetRetryCount(httpCfg.RetryAttempts)
	client.SetRetryWaitTime(httpCfg.RetryDelay)
	client.SetRetryMaxWaitTime(httpCfg.RetryDelay * 2)

	// Set default headers
	client.SetHeaders(map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"User-Agent":   "VinDash/1.0",
	})

	// Add authentication
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		httpClient:  client,
		config:      cfg,
		rateLimiter: utils.NewRateLimiter(cfg.RateLimit, time.Minute),
		metrics:     m,
	}
}

// configured reports whether the client can reach the platform at all.
func (c *Client) configured() bool {
	return c.config.APIKey != "" && c.config.ActorID != ""
}

// StartRun starts an actor run with the given input
func (c *Client) StartRun(ctx context.Context, input *RunInput) (*Run, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	c.rateLimiter.Wait()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(input).
		Post(fmt.Sprintf("/acts/%s/runs", c.config.ActorID))

	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return nil, remoteError(resp)
	}

	var envelope runEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse run response: %w", err)
	}

	logrus.Infof("Started run %s for %d VINs", envelope.Data.ID, len(input.VINs))
	return &envelope.Data, nil
}

// GetRun retrieves the current state of a run
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	c.rateLimiter.Wait()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/actor-runs/%s", runID))

	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, remoteError(resp)
	}

	var envelope runEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse run response: %w", err)
	}

	return &envelope.Data, nil
}

// GetRunResults retrieves the items from a run's default dataset. The
// dataset endpoint returns a bare JSON array, not the usual envelope.
func (c *Client) GetRunResults(ctx context.Context, runID string) ([]*DatasetItem, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	c.rateLimiter.Wait()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/actor-runs/%s/dataset/items", runID))

	if err != nil {
		return nil, fmt.Errorf("failed to get run results: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, remoteError(resp)
	}

	var items []*DatasetItem
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("failed to parse dataset items: %w", err)
	}

	return items, nil
}

// PollRun polls a run at the configured interval until it reaches a
// terminal status or the attempt budget is exhausted. Waiting respects
// context cancellation.
func (c *Client) PollRun(ctx context.Context, runID string) (*Run, error) {
	for attempt := 1; attempt <= c.config.MaxPollAttempts; attempt++ {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll run %s: %w", runID, err)
		}

		if IsTerminalStatus(run.Status) {
			logrus.Infof("Run %s reached status %s after %d polls", runID, run.Status, attempt)
			c.metrics.RecordPollAttempts(attempt)
			return run, nil
		}

		logrus.Debugf("Run %s status %s, attempt %d/%d", runID, run.Status, attempt, c.config.MaxPollAttempts)

		if attempt == c.config.MaxPollAttempts {
			break
		}

		timer := time.NewTimer(c.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.metrics.RecordPollAttempts(c.config.MaxPollAttempts)
	return nil, &PollTimeoutError{RunID: runID, Attempts: c.config.MaxPollAttempts}
}

// RunAndWait starts a run, waits for it to finish and returns its
// dataset items. Runs that finish in any terminal status other than
// SUCCEEDED produce a RunFailedError and the dataset is never fetched.
func (c *Client) RunAndWait(ctx context.Context, input *RunInput) ([]*DatasetItem, error) {
	run, err := c.StartRun(ctx, input)
	if err != nil {
		return nil, err
	}

	finished, err := c.PollRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	if finished.Status != StatusSucceeded {
		return nil, &RunFailedError{RunID: finished.ID, Status: finished.Status}
	}

	return c.GetRunResults(ctx, finished.ID)
}

// GetAccountInfo fetches the account the API key belongs to. Used by the
// connection test endpoint.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	c.rateLimiter.Wait()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/users/me")

	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, remoteError(resp)
	}

	var envelope accountEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}

	return &envelope.Data, nil
}

func remoteError(resp *resty.Response) error {
	var errorResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &errorResp); err == nil && errorResp.Error.Message != "" {
		return &RemoteError{StatusCode: resp.StatusCode(), Message: errorResp.Error.Message}
	}
	return &RemoteError{StatusCode: resp.StatusCode()}
}
