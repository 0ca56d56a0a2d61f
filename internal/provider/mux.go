package provider

import (
	"context"
	"strings"
	"time"

	"aquant/internal/market"
)

// Mux routes requests between the A-share provider and an optional crypto
// quote provider. 币对形如 BTC/USDT，按分隔符分流；其余走股票数据源。
type Mux struct {
	stock  DataProvider
	crypto DataProvider
}

// NewMux combines a stock provider with a crypto quote provider. crypto
// may be nil, everything then routes to stock.
func NewMux(stock, crypto DataProvider) *Mux {
	return &Mux{stock: stock, crypto: crypto}
}

// Name implements DataProvider
func (m *Mux) Name() string {
	if m.crypto == nil {
		return m.stock.Name()
	}
	return m.stock.Name() + "+" + m.crypto.Name()
}

// pick selects the provider responsible for the symbol
func (m *Mux) pick(symbol string) DataProvider {
	if m.crypto != nil && strings.Contains(symbol, "/") {
		return m.crypto
	}
	return m.stock
}

// Daily implements DataProvider
func (m *Mux) Daily(ctx context.Context, symbol string, start, end time.Time) (market.Series, error) {
	return m.pick(symbol).Daily(ctx, symbol, start, end)
}

// Info implements DataProvider
func (m *Mux) Info(ctx context.Context, symbol string) (*market.StockInfo, error) {
	return m.pick(symbol).Info(ctx, symbol)
}

// Search implements DataProvider: stock matches first, crypto pairs fill
// the remaining slots. 币源查询失败不影响股票结果。
func (m *Mux) Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	infos, err := m.stock.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if m.crypto == nil || len(infos) >= limit {
		return infos, nil
	}
	pairs, err := m.crypto.Search(ctx, query, limit-len(infos))
	if err != nil {
		return infos, nil
	}
	return append(infos, pairs...), nil
}

// Latest implements DataProvider
func (m *Mux) Latest(ctx context.Context, symbol string) (*market.Quote, error) {
	return m.pick(symbol).Latest(ctx, symbol)
}

// Close implements DataProvider, closing both backends
func (m *Mux) Close() error {
	err := m.stock.Close()
	if m.crypto != nil {
		if cerr := m.crypto.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
