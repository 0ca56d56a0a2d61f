package backtest

import (
	"math"

	"aquant/internal/market"
	"aquant/internal/signal"
)

const tradingDaysPerYear = 252

// buildResult derives the full statistics block from the finished run.
func (e *Engine) buildResult(strategy signal.Strategy, series market.Series, trades []Trade, curve []EquityPoint, capital float64) *Result {
	res := &Result{
		Strategy:    strategy,
		Trades:      trades,
		TradeCount:  len(trades),
		FinalValue:  e.cfg.InitialCapital,
		EquityCurve: curve,
	}
	if len(trades) == 0 {
		return res
	}

	res.FinalValue = capital
	res.TotalReturn = (capital/e.cfg.InitialCapital - 1) * 100
	res.StartDate = series[0].Date
	res.EndDate = series[len(series)-1].Date
	res.TotalDays = series.Span()
	res.AnnualReturn = annualize(res.TotalReturn, res.TotalDays)

	var winPct, lossPct, winAbs, lossAbs float64
	for _, tr := range trades {
		res.TradingDays += tr.HoldDays
		if tr.ReturnPct > 0 {
			res.WinCount++
			winPct += tr.ReturnPct
			winAbs += tr.ReturnAbs
		} else {
			res.LossCount++
			lossPct += tr.ReturnPct
			lossAbs += tr.ReturnAbs
		}
	}
	res.WinRate = float64(res.WinCount) / float64(res.TradeCount) * 100
	if res.WinCount > 0 {
		res.AvgWin = winPct / float64(res.WinCount)
	}
	if res.LossCount > 0 {
		res.AvgLoss = lossPct / float64(res.LossCount)
	}
	if totalLoss := math.Abs(lossAbs); totalLoss > 0 {
		res.ProfitFactor = winAbs / totalLoss
	}
	res.AvgHoldDays = float64(res.TradingDays) / float64(res.TradeCount)
	res.MaxDrawdown = maxDrawdown(curve)
	res.SharpeRatio = e.sharpeRatio(curve)
	return res
}

// annualize compounds a whole-period percentage return to a yearly one.
func annualize(totalReturnPct float64, totalDays int) float64 {
	if totalDays <= 0 {
		return 0
	}
	return (math.Pow(1+totalReturnPct/100, 365/float64(totalDays)) - 1) * 100
}

// maxDrawdown returns the deepest peak-to-trough decline of the curve
// as a positive percentage.
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Value
	var maxDD float64
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// sharpeRatio computes the annualized Sharpe ratio over the curve's daily
// returns. 标准差取总体口径；样本不足或波动为零时返回0。
func (e *Engine) sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev > 0 {
			returns = append(returns, (curve[i].Value-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)))
	if std == 0 {
		return 0
	}

	riskFreeDaily := e.cfg.RiskFreeRate / tradingDaysPerYear
	return (mean - riskFreeDaily) / std * math.Sqrt(tradingDaysPerYear)
}
