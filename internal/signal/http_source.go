package signal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/retry"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPSource - клиент внешнего сервиса прогнозов
//
// POST {url} {"symbol","timeframe","lookback"} →
// {"prediction","confidence","targets":{"short_term","medium_term","stop_loss"},"reason"}
type HTTPSource struct {
	url        string
	timeframe  string
	lookback   int
	httpClient *http.Client
	retryCfg   retry.Config
	now        func() time.Time
}

// NewHTTPSource создаёт клиента сервиса прогнозов
func NewHTTPSource(url string, httpClient *http.Client) *HTTPSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		url:        url,
		timeframe:  "1h",
		lookback:   100,
		httpClient: httpClient,
		retryCfg:   retry.SignalConfig(),
		now:        time.Now,
	}
}

type predictRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Lookback  int    `json:"lookback"`
}

type predictResponse struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Targets    struct {
		ShortTerm  float64 `json:"short_term"`
		MediumTerm float64 `json:"medium_term"`
		StopLoss   float64 `json:"stop_loss"`
	} `json:"targets"`
}

// GetSignal запрашивает прогноз и приводит его к Signal
//
// Ответы 5xx и сетевые ошибки повторяются (retry.SignalConfig) в пределах ctx,
// остальные ошибки возвращаются сразу.
func (h *HTTPSource) GetSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	body, err := json.Marshal(predictRequest{Symbol: symbol, Timeframe: h.timeframe, Lookback: h.lookback})
	if err != nil {
		return nil, err
	}

	pr, err := retry.DoWithResult(ctx, func() (*predictResponse, error) {
		return h.fetch(ctx, symbol, body)
	}, h.retryCfg)
	if err != nil {
		return nil, err
	}

	return h.toSignal(symbol, pr)
}

// fetch выполняет один запрос к сервису прогнозов
func (h *HTTPSource) fetch(ctx context.Context, symbol string, body []byte) (*predictResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("predict %s: status %d", symbol, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("predict %s: status %d", symbol, resp.StatusCode))
	}

	var pr predictResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode prediction %s: %w", symbol, err))
	}
	return &pr, nil
}

// toSignal проверяет прогноз и строит Signal
func (h *HTTPSource) toSignal(symbol string, pr *predictResponse) (*models.Signal, error) {
	action := strings.ToUpper(pr.Prediction)
	if !models.IsValidAction(action) {
		return nil, fmt.Errorf("predict %s: unknown action %q", symbol, pr.Prediction)
	}
	if pr.Confidence < 0 || pr.Confidence > 1 {
		return nil, fmt.Errorf("predict %s: confidence %v out of range", symbol, pr.Confidence)
	}

	return &models.Signal{
		Symbol:      symbol,
		Action:      action,
		Confidence:  pr.Confidence,
		StopLoss:    pr.Targets.StopLoss,
		TakeProfit:  pr.Targets.ShortTerm,
		TargetPrice: pr.Targets.MediumTerm,
		Reason:      pr.Reason,
		GeneratedAt: h.now(),
	}, nil
}
