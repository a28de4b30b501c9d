package bot

import (
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// pctEpsilon - погрешность float при сравнении PNL% с порогом
const pctEpsilon = 1e-9

// ExitDecision - результат проверки условий выхода для позиции
type ExitDecision struct {
	Triggered  bool
	Reason     string  // FORCED_LIQUIDATION, STOP_LOSS, TAKE_PROFIT
	Pnl        float64 // нереализованный PNL по текущей цене (не округлён)
	PnlPercent float64
}

// EvaluateExit проверяет условия выхода по текущей цене
//
// Порядок проверки (срабатывает первое совпадение):
//  1. FORCED_LIQUIDATION: PNL% ниже forcedLiquidationPct
//  2. STOP_LOSS: LONG price ≤ SL, SHORT price ≥ SL
//  3. FORCED_LIQUIDATION: PNL% ровно на пороге (с точностью pctEpsilon)
//  4. TAKE_PROFIT: LONG price ≥ TP, SHORT price ≤ TP
//
// На самом пороге сработавший стоп-лосс имеет приоритет.
// SL/TP равные 0 считаются незаданными. Сравнения - по неокруглённым значениям.
func EvaluateExit(pos models.Position, price, forcedLiquidationPct float64) ExitDecision {
	pnl := utils.CalculatePNL(pos.Side, pos.EntryPrice, price, pos.Quantity)
	pnlPct := utils.CalculatePNLPercent(pnl, pos.EntryPrice, pos.Quantity)

	d := ExitDecision{Pnl: pnl, PnlPercent: pnlPct}

	hasNotional := pos.Notional() > 0

	switch {
	case hasNotional && pnlPct < forcedLiquidationPct-pctEpsilon:
		d.Reason = models.CloseReasonForcedLiquidation
	case stopLossHit(pos, price):
		d.Reason = models.CloseReasonStopLoss
	case hasNotional && pnlPct <= forcedLiquidationPct+pctEpsilon:
		d.Reason = models.CloseReasonForcedLiquidation
	case takeProfitHit(pos, price):
		d.Reason = models.CloseReasonTakeProfit
	default:
		return d
	}

	d.Triggered = true
	return d
}

func stopLossHit(pos models.Position, price float64) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	if pos.Side == models.SideShort {
		return price >= pos.StopLoss
	}
	return price <= pos.StopLoss
}

func takeProfitHit(pos models.Position, price float64) bool {
	if pos.TakeProfit <= 0 {
		return false
	}
	if pos.Side == models.SideShort {
		return price <= pos.TakeProfit
	}
	return price >= pos.TakeProfit
}
