package export

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"aquant/internal/backtest"
	"aquant/internal/batch"
	"aquant/internal/signal"
	"aquant/internal/testutils"
)

func TestWriteWatchListCSV(t *testing.T) {
	exporter := NewExporter(Config{Dir: t.TempDir()})

	report := &batch.Report{
		JobID: uuid.New(),
		WatchList: []batch.WatchEntry{
			{TsCode: "600036.SH", Name: "招商银行", Score: 78.5, Grade: "B+", Reasons: []string{"综合信号为买入", "评分达标"}},
			{TsCode: "000001.SZ", Name: "平安银行", Score: 66.0, Grade: "B", Reasons: []string{"均线多头排列"}},
		},
	}

	path, err := exporter.WriteWatchListCSV(report)
	if err != nil {
		t.Fatalf("WriteWatchListCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	if records[0][0] != "ts_code" || records[0][4] != "reasons" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "600036.SH" || records[1][2] != "78.5" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if !strings.Contains(records[1][4], "; ") {
		t.Errorf("reasons not joined: %q", records[1][4])
	}
}

func TestWriteBarsRoundTrip(t *testing.T) {
	exporter := NewExporter(Config{Dir: t.TempDir()})

	mock := testutils.NewMockData(9)
	series := mock.TrendingBars("600036.SH", 50, 30, 0.001)

	path, err := exporter.WriteBars("600036.SH", series)
	if err != nil {
		t.Fatalf("WriteBars failed: %v", err)
	}
	if !strings.HasSuffix(path, "600036_SH_bars.parquet") {
		t.Errorf("unexpected file name: %s", path)
	}

	rows, err := parquet.ReadFile[barRow](path)
	if err != nil {
		t.Fatalf("failed to read parquet back: %v", err)
	}
	if len(rows) != len(series) {
		t.Fatalf("expected %d rows, got %d", len(series), len(rows))
	}
	if rows[0].TsCode != "600036.SH" || rows[0].Close != series[0].Close {
		t.Errorf("first row mismatch: %+v", rows[0])
	}
}

func TestWriteBacktests(t *testing.T) {
	exporter := NewExporter(Config{Dir: t.TempDir()})

	results := map[signal.Strategy]*backtest.Result{
		signal.MaMacd:   {Strategy: signal.MaMacd, TradeCount: 8, TotalReturn: 0.21, WinRate: 0.625},
		signal.Combined: {Strategy: signal.Combined, TradeCount: 5, TotalReturn: 0.15, WinRate: 0.6},
	}

	path, err := exporter.WriteBacktests("600036.SH", results)
	if err != nil {
		t.Fatalf("WriteBacktests failed: %v", err)
	}

	rows, err := parquet.ReadFile[summaryRow](path)
	if err != nil {
		t.Fatalf("failed to read parquet back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 strategy rows, got %d", len(rows))
	}
	// 行序跟随signal.All()的固定顺序
	if rows[0].Strategy != string(signal.MaMacd) {
		t.Errorf("expected MA+MACD first, got %s", rows[0].Strategy)
	}
	if rows[0].TradeCount != 8 || rows[0].WinRate != 0.625 {
		t.Errorf("row values mismatch: %+v", rows[0])
	}
}

func TestExporterDefaultDir(t *testing.T) {
	exporter := NewExporter(Config{})
	if exporter.dir != "exports" {
		t.Errorf("expected default dir exports, got %s", exporter.dir)
	}
}
