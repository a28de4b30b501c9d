package exchange

import (
	"context"

	"autotrader/internal/models"
	"autotrader/pkg/ratelimit"
)

// Категории запросов для rate limiting
const (
	categoryMarket = "market"
	categoryOrder  = "order"
)

// RateLimitedClient - декоратор, ограничивающий частоту запросов к бирже
//
// Рыночные данные и ордера лимитируются отдельно: ордерам достаётся
// половина общего лимита, чтобы массовые запросы цен не задерживали закрытия.
type RateLimitedClient struct {
	inner   Client
	limiter *ratelimit.MultiLimiter
}

// NewRateLimitedClient оборачивает клиента (rate <= 0 - без ограничений)
func NewRateLimitedClient(inner Client, rate, burst float64) *RateLimitedClient {
	ml := ratelimit.NewMultiLimiter()
	if rate > 0 {
		orderBurst := burst / 2
		if orderBurst < 1 {
			orderBurst = 1
		}
		ml.Add(categoryMarket, rate, burst)
		ml.Add(categoryOrder, rate/2, orderBurst)
	}
	return &RateLimitedClient{inner: inner, limiter: ml}
}

// GetName возвращает имя обёрнутой биржи
func (c *RateLimitedClient) GetName() string {
	return c.inner.GetName()
}

// GetPrice ждёт токен категории market и запрашивает цену
func (c *RateLimitedClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx, categoryMarket); err != nil {
		return 0, err
	}
	return c.inner.GetPrice(ctx, symbol)
}

// PlaceMarketOrder ждёт токен категории order и размещает ордер
func (c *RateLimitedClient) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.OrderFill, error) {
	if err := c.limiter.Wait(ctx, categoryOrder); err != nil {
		return nil, err
	}
	return c.inner.PlaceMarketOrder(ctx, symbol, side, qty)
}
