package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/models"

	jsoniter "github.com/json-iterator/go"
)

const (
	binanceBaseURL        = "https://api.binance.com"
	binanceTestnetBaseURL = "https://testnet.binance.vision"
	binanceRecvWindow     = "5000"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BinanceClient реализует Client для spot REST API Binance
//
// Цена: GET /api/v3/ticker/price, ордер: POST /api/v3/order (MARKET, FULL ответ).
type BinanceClient struct {
	apiKey    string
	secretKey string
	baseURL   string

	httpClient *http.Client
	now        func() time.Time
}

// NewBinanceClient создаёт клиента (пустой baseURL → testnet)
func NewBinanceClient(apiKey, secretKey, baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = binanceTestnetBaseURL
	}
	return &BinanceClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: GetGlobalHTTPClient(),
		now:        time.Now,
	}
}

// GetName возвращает имя биржи
func (b *BinanceClient) GetName() string {
	return "binance"
}

// sign создаёт HMAC-SHA256 подпись строки запроса
func (b *BinanceClient) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Binance API
//
// Для подписанных запросов добавляет timestamp, recvWindow и signature в query.
func (b *BinanceClient) doRequest(ctx context.Context, method, endpoint string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	if signed {
		params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))
		params.Set("recvWindow", binanceRecvWindow)
	}

	query := params.Encode()
	if signed {
		query += "&signature=" + b.sign(query)
	}

	reqURL := b.baseURL + endpoint
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: b.GetName(), Message: "request failed", Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Msg == "" {
			return nil, &ExchangeError{
				Exchange: b.GetName(),
				Code:     strconv.Itoa(resp.StatusCode),
				Message:  http.StatusText(resp.StatusCode),
			}
		}
		return nil, &ExchangeError{
			Exchange: b.GetName(),
			Code:     strconv.Itoa(apiErr.Code),
			Message:  apiErr.Msg,
		}
	}

	return body, nil
}

// GetPrice получает последнюю цену символа
func (b *BinanceClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/ticker/price", params, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode ticker %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("invalid price %q for %s", resp.Price, symbol)
	}
	return price, nil
}

// PlaceMarketOrder размещает рыночный ордер
//
// Цена исполнения - средневзвешенная по fills (или cummulativeQuoteQty / executedQty).
func (b *BinanceClient) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.OrderFill, error) {
	if side != models.OrderSideBuy && side != models.OrderSideSell {
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("invalid order quantity %v", qty)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")

	body, err := b.doRequest(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID             int64  `json:"orderId"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		TransactTime        int64  `json:"transactTime"`
		Fills               []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	fill := &models.OrderFill{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		FilledAt: b.now(),
	}
	if resp.TransactTime > 0 {
		fill.FilledAt = time.UnixMilli(resp.TransactTime)
	}

	fill.FilledQuantity, _ = strconv.ParseFloat(resp.ExecutedQty, 64)

	// Средняя цена по fills
	var notional, filled float64
	for _, f := range resp.Fills {
		p, _ := strconv.ParseFloat(f.Price, 64)
		q, _ := strconv.ParseFloat(f.Qty, 64)
		notional += p * q
		filled += q
	}
	switch {
	case filled > 0:
		fill.FilledPrice = notional / filled
	case fill.FilledQuantity > 0:
		quote, _ := strconv.ParseFloat(resp.CummulativeQuoteQty, 64)
		fill.FilledPrice = quote / fill.FilledQuantity
	}

	return fill, nil
}
