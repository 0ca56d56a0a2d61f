package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aquant/internal/market"
)

// UpsertDailyBars batch-inserts daily bars, overwriting rows that already
// exist for the same (ts_code, trade_date). 全部写入在一个事务内完成。
func (db *DB) UpsertDailyBars(ctx context.Context, bars []market.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_bars (ts_code, trade_date, open, high, low, close, volume, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ts_code, trade_date) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume, amount = EXCLUDED.amount
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, bar.TsCode, bar.Date,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Amount); err != nil {
			return fmt.Errorf("failed to upsert bar %s %s: %w",
				bar.TsCode, bar.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}
	return nil
}

// GetDailyBars returns the stored bars of one instrument between the given
// dates inclusive, oldest first.
func (db *DB) GetDailyBars(ctx context.Context, tsCode string, start, end time.Time) (market.Series, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ts_code, trade_date, open, high, low, close, volume, amount
		FROM daily_bars
		WHERE ts_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`, tsCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bars: %w", err)
	}
	defer rows.Close()

	var series market.Series
	for rows.Next() {
		var bar market.PriceBar
		if err := rows.Scan(&bar.TsCode, &bar.Date,
			&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		bar.Date = market.Day(bar.Date)
		series = append(series, bar)
	}
	return series, rows.Err()
}

// LatestBarDate returns the most recent stored trade date for the
// instrument; ok is false when no bars exist.
func (db *DB) LatestBarDate(ctx context.Context, tsCode string) (time.Time, bool, error) {
	var date time.Time
	err := db.QueryRowContext(ctx,
		`SELECT MAX(trade_date) FROM daily_bars WHERE ts_code = $1`, tsCode).Scan(&date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to query latest bar date: %w", err)
	}
	if date.IsZero() {
		return time.Time{}, false, nil
	}
	return market.Day(date), true, nil
}

// UpsertStockInfo stores or refreshes listing information
func (db *DB) UpsertStockInfo(ctx context.Context, infos []market.StockInfo) error {
	if len(infos) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_info (ts_code, name, industry, market, list_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ts_code) DO UPDATE SET
			name = EXCLUDED.name, industry = EXCLUDED.industry,
			market = EXCLUDED.market, list_date = EXCLUDED.list_date
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stock upsert: %w", err)
	}
	defer stmt.Close()

	for _, info := range infos {
		if _, err := stmt.ExecContext(ctx, info.TsCode, info.Name,
			info.Industry, info.Market, info.ListDate); err != nil {
			return fmt.Errorf("failed to upsert stock %s: %w", info.TsCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock upsert: %w", err)
	}
	return nil
}

// SearchStocks matches by code or name prefix, at most limit rows.
func (db *DB) SearchStocks(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts_code, name, COALESCE(industry, ''), COALESCE(market, ''), COALESCE(list_date, '')
		FROM stock_info
		WHERE ts_code LIKE $1 || '%' OR name LIKE $1 || '%'
		ORDER BY ts_code ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search stocks: %w", err)
	}
	defer rows.Close()

	var out []market.StockInfo
	for rows.Next() {
		var info market.StockInfo
		if err := rows.Scan(&info.TsCode, &info.Name, &info.Industry, &info.Market, &info.ListDate); err != nil {
			return nil, fmt.Errorf("failed to scan stock info: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// GetStockInfo returns listing information for one code
func (db *DB) GetStockInfo(ctx context.Context, tsCode string) (*market.StockInfo, error) {
	var info market.StockInfo
	err := db.QueryRowContext(ctx, `
		SELECT ts_code, name, COALESCE(industry, ''), COALESCE(market, ''), COALESCE(list_date, '')
		FROM stock_info WHERE ts_code = $1
	`, tsCode).Scan(&info.TsCode, &info.Name, &info.Industry, &info.Market, &info.ListDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stock info: %w", err)
	}
	return &info, nil
}

// ReportRecord is one persisted analysis outcome. Payload holds the full
// report JSON as produced by the analysis service.
type ReportRecord struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	TsCode         string          `json:"ts_code" db:"ts_code"`
	Grade          string          `json:"grade" db:"grade"`
	TotalScore     float64         `json:"total_score" db:"total_score"`
	Action         string          `json:"action" db:"action"`
	CombinedSignal int             `json:"combined_signal" db:"combined_signal"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// InsertReport persists one analysis report
func (db *DB) InsertReport(ctx context.Context, rec *ReportRecord) error {
	if rec.ID == (uuid.UUID{}) {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO analysis_reports (id, ts_code, grade, total_score, action, combined_signal, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.TsCode, rec.Grade, rec.TotalScore, rec.Action, rec.CombinedSignal, rec.Payload, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// LatestReport returns the newest stored report for a code, nil when none
func (db *DB) LatestReport(ctx context.Context, tsCode string) (*ReportRecord, error) {
	rec := &ReportRecord{}
	err := db.QueryRowContext(ctx, `
		SELECT id, ts_code, grade, total_score, action, combined_signal, payload, created_at
		FROM analysis_reports WHERE ts_code = $1
		ORDER BY created_at DESC LIMIT 1
	`, tsCode).Scan(&rec.ID, &rec.TsCode, &rec.Grade, &rec.TotalScore,
		&rec.Action, &rec.CombinedSignal, &rec.Payload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return rec, nil
}

// JobRecord is the persisted state of one batch analysis job
type JobRecord struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Status     string     `json:"status" db:"status"`
	Total      int        `json:"total" db:"total"`
	Succeeded  int        `json:"succeeded" db:"succeeded"`
	Failed     int        `json:"failed" db:"failed"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// CreateJob registers a new batch job in pending state
func (db *DB) CreateJob(ctx context.Context, id uuid.UUID, total int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO batch_jobs (id, status, total, succeeded, failed, started_at)
		VALUES ($1, 'running', $2, 0, 0, NOW())
	`, id, total)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJobProgress updates the running counters of a job
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE batch_jobs SET succeeded = $2, failed = $3 WHERE id = $1
	`, id, succeeded, failed)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// FinishJob marks the job terminal state
func (db *DB) FinishJob(ctx context.Context, id uuid.UUID, status string, succeeded, failed int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE batch_jobs SET status = $2, succeeded = $3, failed = $4, finished_at = NOW()
		WHERE id = $1
	`, id, status, succeeded, failed)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// GetJob returns one batch job, nil when unknown
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error) {
	rec := &JobRecord{}
	err := db.QueryRowContext(ctx, `
		SELECT id, status, total, succeeded, failed, started_at, finished_at
		FROM batch_jobs WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Status, &rec.Total, &rec.Succeeded, &rec.Failed,
		&rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return rec, nil
}
