// Package inference serves the classifier and cluster model from a remote model server. The
// preprocessor and lookup tables stay local; only the two fitted estimators are remote.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// ModelInfo is the metadata a model server reports for one model.
type ModelInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Classes     []string `json:"classes,omitempty"`
	NumClusters int      `json:"num_clusters,omitempty"`
}

// Client talks to the model server. Every call is rate limited and guarded by a circuit
// breaker shared across models.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient creates a new model server client
func NewClient(config domain.InferenceConfig, logger *logrus.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid inference base URL %q: %w", config.BaseURL, err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 50
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "ModelServer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}, nil
}

// ModelInfo fetches metadata for the named model.
func (c *Client) ModelInfo(ctx context.Context, model string) (*ModelInfo, error) {
	var info ModelInfo
	if err := c.call(ctx, http.MethodGet, "/v1/models/"+url.PathEscape(model), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// predictRequest is the wire form of a single-instance prediction.
type predictRequest struct {
	Instances []any `json:"instances"`
}

func (c *Client) predict(ctx context.Context, model string, instance any, out any) error {
	path := "/v1/models/" + url.PathEscape(model) + "/predict"
	return c.call(ctx, http.MethodPost, path, predictRequest{Instances: []any{instance}}, out)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	if err != nil {
		return fmt.Errorf("model server %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
