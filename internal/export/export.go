// Package export writes research datasets to disk: daily bars and flat
// backtest summaries as Parquet, the batch watch list as CSV.
// 输出目录按日期分层 exports/<YYYY-MM-DD>/。
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"aquant/internal/backtest"
	"aquant/internal/batch"
	"aquant/internal/market"
	"aquant/internal/signal"
)

// Config sets the export root directory
type Config struct {
	Dir string
}

// Exporter writes datasets under Dir
type Exporter struct {
	dir string
}

// NewExporter creates an exporter rooted at cfg.Dir
func NewExporter(cfg Config) *Exporter {
	dir := cfg.Dir
	if dir == "" {
		dir = "exports"
	}
	return &Exporter{dir: dir}
}

// barRow is the Parquet row layout for daily bars
type barRow struct {
	TsCode string  `parquet:"ts_code"`
	Date   string  `parquet:"trade_date"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
	Amount float64 `parquet:"amount"`
}

// summaryRow is the Parquet row layout for flattened backtest results
type summaryRow struct {
	TsCode       string  `parquet:"ts_code"`
	Strategy     string  `parquet:"strategy"`
	TradeCount   int32   `parquet:"trade_count"`
	TotalReturn  float64 `parquet:"total_return"`
	AnnualReturn float64 `parquet:"annual_return"`
	WinRate      float64 `parquet:"win_rate"`
	ProfitFactor float64 `parquet:"profit_factor"`
	MaxDrawdown  float64 `parquet:"max_drawdown"`
	SharpeRatio  float64 `parquet:"sharpe_ratio"`
	AvgHoldDays  float64 `parquet:"avg_hold_days"`
}

// WriteBars writes one instrument's daily bars to a Parquet file and
// returns its path.
func (e *Exporter) WriteBars(tsCode string, series market.Series) (string, error) {
	rows := make([]barRow, len(series))
	for i, bar := range series {
		rows[i] = barRow{
			TsCode: bar.TsCode,
			Date:   bar.Date.Format("2006-01-02"),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
			Amount: bar.Amount,
		}
	}

	path, err := e.datedPath(fileNameFor(tsCode, "bars", "parquet"))
	if err != nil {
		return "", err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write bars parquet: %w", err)
	}
	return path, nil
}

// WriteBacktests flattens per-strategy results for one instrument into a
// Parquet summary file.
func (e *Exporter) WriteBacktests(tsCode string, results map[signal.Strategy]*backtest.Result) (string, error) {
	rows := make([]summaryRow, 0, len(results))
	for _, strat := range signal.All() {
		res, ok := results[strat]
		if !ok || res == nil {
			continue
		}
		rows = append(rows, summaryRow{
			TsCode:       tsCode,
			Strategy:     string(strat),
			TradeCount:   int32(res.TradeCount),
			TotalReturn:  res.TotalReturn,
			AnnualReturn: res.AnnualReturn,
			WinRate:      res.WinRate,
			ProfitFactor: res.ProfitFactor,
			MaxDrawdown:  res.MaxDrawdown,
			SharpeRatio:  res.SharpeRatio,
			AvgHoldDays:  res.AvgHoldDays,
		})
	}

	path, err := e.datedPath(fileNameFor(tsCode, "backtests", "parquet"))
	if err != nil {
		return "", err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write backtest parquet: %w", err)
	}
	return path, nil
}

// WriteWatchListCSV writes a batch job's buy-point candidates as CSV and
// returns the file path.
func (e *Exporter) WriteWatchListCSV(report *batch.Report) (string, error) {
	path, err := e.datedPath("watchlist_" + report.JobID.String() + ".csv")
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create watch list file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ts_code", "name", "score", "grade", "reasons"}); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, entry := range report.WatchList {
		record := []string{
			entry.TsCode,
			entry.Name,
			strconv.FormatFloat(entry.Score, 'f', 1, 64),
			entry.Grade,
			strings.Join(entry.Reasons, "; "),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return path, nil
}

// datedPath ensures exports/<date>/ exists and returns the full path for
// name inside it.
func (e *Exporter) datedPath(name string) (string, error) {
	dir := filepath.Join(e.dir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// fileNameFor keeps instrument codes filesystem-safe
func fileNameFor(tsCode, kind, ext string) string {
	code := strings.NewReplacer("/", "_", ".", "_", ":", "_").Replace(tsCode)
	return fmt.Sprintf("%s_%s.%s", code, kind, ext)
}
