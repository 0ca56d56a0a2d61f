package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banbox/banexg"
	"github.com/banbox/banexg/bex"

	"aquant/internal/market"
)

// BanexgConfig configures the crypto quote provider
type BanexgConfig struct {
	Exchange  string
	APIKey    string
	APISecret string
	Env       string // test, prod
}

// BanexgQuotes serves spot quotes and symbol search for crypto pairs via
// the banexg exchange client. 只覆盖报价与搜索，不提供日线历史。
type BanexgQuotes struct {
	exchange banexg.BanExchange
	name     string
}

// NewBanexgQuotes creates a quote provider backed by the configured
// exchange.
func NewBanexgQuotes(cfg BanexgConfig) (*BanexgQuotes, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "binance"
	}

	options := map[string]interface{}{
		banexg.OptMarketType: banexg.MarketSpot,
	}
	if cfg.APIKey != "" {
		options[banexg.OptApiKey] = cfg.APIKey
		options[banexg.OptApiSecret] = cfg.APISecret
	}
	if cfg.Env == "test" {
		options[banexg.OptEnv] = "test"
	}

	exg, err := bex.New(cfg.Exchange, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create banexg exchange: %w", err)
	}

	return &BanexgQuotes{exchange: exg, name: "banexg:" + cfg.Exchange}, nil
}

// Name implements DataProvider
func (b *BanexgQuotes) Name() string { return b.name }

// Daily implements DataProvider. Crypto daily history is out of scope for
// the advisory pipeline; the quote provider only answers Latest/Search.
func (b *BanexgQuotes) Daily(ctx context.Context, symbol string, start, end time.Time) (market.Series, error) {
	return nil, wrapErr(b.name, "daily", fmt.Errorf("daily history not supported for crypto symbols"))
}

// Info implements DataProvider
func (b *BanexgQuotes) Info(ctx context.Context, symbol string) (*market.StockInfo, error) {
	mkt, err := b.exchange.GetMarket(symbol)
	if err != nil {
		return nil, wrapErr(b.name, "get_market", fmt.Errorf("%w: %s", ErrNotFound, symbol))
	}
	return &market.StockInfo{
		TsCode: mkt.Symbol,
		Name:   mkt.Base + "/" + mkt.Quote,
		Market: "crypto",
	}, nil
}

// Search implements DataProvider over the loaded market table
func (b *BanexgQuotes) Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	markets, err := b.exchange.LoadMarkets(false, nil)
	if err != nil {
		return nil, wrapErr(b.name, "load_markets", err)
	}

	query = strings.ToUpper(strings.TrimSpace(query))
	var out []market.StockInfo
	for _, mkt := range markets {
		if len(out) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToUpper(mkt.Symbol), query) ||
			strings.HasPrefix(strings.ToUpper(mkt.Base), query) {
			out = append(out, market.StockInfo{
				TsCode: mkt.Symbol,
				Name:   mkt.Base + "/" + mkt.Quote,
				Market: "crypto",
			})
		}
	}
	return out, nil
}

// Latest implements DataProvider
func (b *BanexgQuotes) Latest(ctx context.Context, symbol string) (*market.Quote, error) {
	ticker, err := b.exchange.FetchTicker(symbol, nil)
	if err != nil {
		return nil, wrapErr(b.name, "fetch_ticker", err)
	}
	return &market.Quote{
		Symbol: symbol,
		Price:  ticker.Last,
		Time:   time.Now(),
	}, nil
}

// Close implements DataProvider
func (b *BanexgQuotes) Close() error {
	if b.exchange == nil {
		return nil
	}
	if err := b.exchange.Close(); err != nil {
		return err
	}
	return nil
}
