package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type remoteRequest struct {
	ProductID string    `json:"product_id"`
	Series    []float64 `json:"series"`
	Horizons  []int     `json:"horizons"`
}

type remoteResponse struct {
	Next7Days        float64   `json:"next_7_days"`
	Next14Days       float64   `json:"next_14_days"`
	Next30Days       float64   `json:"next_30_days"`
	Confidence       string    `json:"confidence"`
	DailyPredictions []float64 `json:"daily_predictions"`
}

// Remote calls an external learned model over HTTP
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a client for the model endpoint
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return ModelLearned }

func (r *Remote) Forecast(ctx context.Context, req Request) (Result, error) {
	if r.endpoint == "" {
		return Result{}, fmt.Errorf("forecast model endpoint not configured")
	}

	body, err := json.Marshal(remoteRequest{
		ProductID: req.ProductID,
		Series:    req.Daily,
		Horizons:  []int{7, 14, 30},
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode forecast request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/forecast", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build forecast request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call forecast model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("forecast model returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode forecast response: %w", err)
	}

	return Result{
		Next7Days:        out.Next7Days,
		Next14Days:       out.Next14Days,
		Next30Days:       out.Next30Days,
		Confidence:       out.Confidence,
		ModelType:        ModelLearned,
		DailyPredictions: out.DailyPredictions,
	}, nil
}
