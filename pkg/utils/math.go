package utils

import (
	"math"
	"strings"
)

// math.go - математические утилиты для расчёта PNL
//
// Назначение:
// Вспомогательные функции для торговых операций.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - CalculatePNL: PNL позиции в валюте котировки
// - CalculatePNLPercent: PNL в процентах от стоимости входа
// - RoundTo / Round2: округление для отчётов и логов

// CalculatePNL рассчитывает PNL позиции.
//
// Формула:
//   - LONG PNL = (P_exit - P_entry) × qty
//   - SHORT PNL = (P_entry - P_exit) × qty
//
// Параметры:
//   - side: "LONG" или "SHORT" (регистр не важен)
//   - entryPrice: цена входа
//   - exitPrice: текущая/выходная цена
//   - quantity: объём позиции
//
// Возвращает:
//   - PNL в валюте котировки (обычно USDT), 0 для неизвестной стороны
func CalculatePNL(side string, entryPrice, exitPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch strings.ToUpper(side) {
	case "LONG":
		// Лонг: прибыль если цена выросла
		return (exitPrice - entryPrice) * quantity
	case "SHORT":
		// Шорт: прибыль если цена упала
		return (entryPrice - exitPrice) * quantity
	default:
		return 0
	}
}

// CalculatePNLPercent возвращает PNL в процентах от стоимости входа.
//
// pnlPercent = pnl / (entryPrice × quantity) × 100
//
// Если стоимость входа нулевая, возвращает 0 (без деления на ноль).
func CalculatePNLPercent(pnl, entryPrice, quantity float64) float64 {
	notional := entryPrice * quantity
	if notional <= 0 {
		return 0
	}
	return pnl / notional * 100
}

// RoundTo округляет значение до decimals знаков после запятой.
//
// Только для отображения: сравнения с порогами делаются по неокруглённым значениям.
func RoundTo(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(value*pow) / pow
}

// Round2 - округление до центов (2 знака)
func Round2(value float64) float64 {
	return RoundTo(value, 2)
}

// Abs возвращает модуль числа
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
