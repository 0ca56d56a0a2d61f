// Package provider 对接外部行情数据源。核心计算不做任何IO，取数失败只
// 影响单只标的的分析请求。
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aquant/internal/market"
)

// 数据源错误
var (
	// ErrNotFound 数据源查无此标的
	ErrNotFound = errors.New("provider: instrument not found")
	// ErrAuth 数据源令牌无效或权限不足
	ErrAuth = errors.New("provider: authentication failed")
)

// DataProvider supplies daily history and basic listing data for one
// market. Implementations must be safe for concurrent use.
type DataProvider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// Daily returns daily bars between start and end inclusive, oldest
	// first. A code the provider does not know yields ErrNotFound.
	Daily(ctx context.Context, tsCode string, start, end time.Time) (market.Series, error)

	// Info returns listing information for one code, nil when unknown
	Info(ctx context.Context, tsCode string) (*market.StockInfo, error)

	// Search matches instruments by code or name prefix
	Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error)

	// Latest returns the most recent traded price
	Latest(ctx context.Context, tsCode string) (*market.Quote, error)

	Close() error
}

// Error wraps a provider failure with its source and API name so batch
// results can report which upstream call failed.
type Error struct {
	Provider string
	API      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.API, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(provider, api string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, API: api, Err: err}
}
