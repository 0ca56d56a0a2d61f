package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"aquant/internal/batch"
	"aquant/internal/export"
	"aquant/internal/logger"
)

// DailyScan analyzes every code in the watch-list file after market close
// and exports the buy-point candidates as CSV.
type DailyScan struct {
	codesFile string
	years     int
	runner    *batch.Runner
	exporter  *export.Exporter
	log       logger.Logger
}

// NewDailyScan creates the daily scan task
func NewDailyScan(codesFile string, years int, runner *batch.Runner, exporter *export.Exporter, log logger.Logger) *DailyScan {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &DailyScan{
		codesFile: codesFile,
		years:     years,
		runner:    runner,
		exporter:  exporter,
		log:       log,
	}
}

// Handle implements TaskHandler
func (d *DailyScan) Handle(ctx context.Context) error {
	codes, err := readCodesFile(d.codesFile)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		d.log.Warn("Daily scan skipped: watch list file empty", "file", d.codesFile)
		return nil
	}

	report, err := d.runner.Run(ctx, codes, d.years, nil)
	if err != nil {
		return fmt.Errorf("daily scan batch failed: %w", err)
	}

	if d.exporter != nil && len(report.WatchList) > 0 {
		path, err := d.exporter.WriteWatchListCSV(report)
		if err != nil {
			return fmt.Errorf("daily scan export failed: %w", err)
		}
		d.log.Info("Daily scan exported watch list",
			"path", path, "candidates", len(report.WatchList))
	}

	d.log.Info("Daily scan finished",
		"total", report.Total, "succeeded", report.Succeeded,
		"failed", report.Failed, "watch", len(report.WatchList))
	return nil
}

// readCodesFile reads one code per line, #开头为注释行。
func readCodesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open codes file: %w", err)
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read codes file: %w", err)
	}
	return codes, nil
}
