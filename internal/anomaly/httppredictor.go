package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPredictor calls an out-of-process inference service for the next-step
// prediction. Network failures and timeouts degrade to ErrUnavailable; a
// malformed prediction shape is an invariant violation.
type HTTPPredictor struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

type predictRequest struct {
	Window [][]float64 `json:"window"`
}

type predictResponse struct {
	Predicted []float64 `json:"predicted"`
}

// NewHTTPPredictor wires the client for the given inference endpoint. The
// timeout bounds every call, on top of whatever deadline the caller carries.
func NewHTTPPredictor(url string, timeout time.Duration) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPPredictor{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPredictor) PredictNext(ctx context.Context, window [][]float64) ([]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	body, err := json.Marshal(predictRequest{Window: window})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal window: %v", ErrInvariant, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: inference returned %d: %s", ErrUnavailable, resp.StatusCode, b)
	}
	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: decode prediction: %v", ErrUnavailable, err)
	}
	if len(pr.Predicted) != FeatureCount {
		return nil, fmt.Errorf("%w: prediction has %d features, want %d", ErrInvariant, len(pr.Predicted), FeatureCount)
	}
	return pr.Predicted, nil
}
