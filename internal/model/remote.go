package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Brownie44l1/braintumor-api/internal/preprocess"
)

const maxErrorBody = 512

// RemoteClient queries a model server speaking the JSON
// instances/predictions protocol (TensorFlow Serving REST style).
type RemoteClient struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

type RemoteOption func(*RemoteClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(c *RemoteClient) { c.http = client }
}

// WithTimeout bounds each inference call. Zero means no limit.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteClient) { c.timeout = d }
}

func NewRemoteClient(endpoint string, opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		endpoint: endpoint,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RemoteClient) Endpoint() string {
	return c.endpoint
}

func (c *RemoteClient) Predict(ctx context.Context, img *preprocess.Tensor) ([]float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(InferenceRequest{Instances: []*preprocess.Tensor{img}})
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.upstreamError(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.upstreamError(0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, c.upstreamError(resp.StatusCode, errors.New(msg))
	}

	var result InferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.upstreamError(0, fmt.Errorf("decode response: %w", err))
	}

	if len(result.Predictions) == 0 || len(result.Predictions[0]) == 0 {
		return nil, c.upstreamError(0, errors.New("response contains no predictions"))
	}

	return result.Predictions[0], nil
}

// CheckHealth reports whether the model server answers at all. TF Serving
// exposes model status on the endpoint without the ":predict" verb.
func (c *RemoteClient) CheckHealth(ctx context.Context) error {
	statusURL := strings.TrimSuffix(c.endpoint, ":predict")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return c.upstreamError(0, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.upstreamError(0, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return c.upstreamError(resp.StatusCode, errors.New("model server unhealthy"))
	}

	return nil
}

func (c *RemoteClient) upstreamError(status int, err error) *UpstreamError {
	return &UpstreamError{URL: c.endpoint, StatusCode: status, Err: err}
}
