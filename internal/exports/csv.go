package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// Writer materializes the cashflow baseline as a CSV file for
// treasury's spreadsheet workflows. Files are written atomically via a
// temp file so a crashed run never leaves a half-written export behind.
type Writer struct {
	dir    string
	logger *logger.Logger
}

// NewWriter creates an export writer rooted at dir
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{dir: dir, logger: log}
}

// Result describes one produced export file
type Result struct {
	Path string
	Rows int
}

var header = []string{
	"contract_id", "as_of_date", "currency",
	"projected_usd", "final_usd", "settlement_date",
	"methodology", "quality_flags", "data_incomplete",
}

// WriteCashflowBaseline writes the baseline for one date. The file name
// is derived from the date, so re-exporting the same date overwrites
// the previous file with identical content.
func (w *Writer) WriteCashflowBaseline(ctx context.Context, asOf time.Time, items []*contracts.CashflowBaselineItem) (*Result, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("cashflow_baseline_%s.csv", contracts.Day(asOf).Format(contracts.DateOnly))
	finalPath := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(header); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write export header: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return nil, err
		}
		if err := cw.Write(itemRecord(item)); err != nil {
			tmp.Close()
			return nil, fmt.Errorf("write export row for %s: %w", item.ContractID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("flush export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return nil, fmt.Errorf("finalize export file: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"path": finalPath,
		"rows": len(items),
	}).Info("Cashflow baseline exported")

	return &Result{Path: finalPath, Rows: len(items)}, nil
}

func itemRecord(item *contracts.CashflowBaselineItem) []string {
	formatMoney := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', 2, 64)
	}

	settlement := ""
	if item.SettlementDate != nil {
		settlement = item.SettlementDate.Format(contracts.DateOnly)
	}

	flags := ""
	for i, f := range item.QualityFlags {
		if i > 0 {
			flags += ";"
		}
		flags += f
	}

	return []string{
		item.ContractID,
		item.AsOfDate.Format(contracts.DateOnly),
		item.Currency,
		formatMoney(item.ProjectedUSD),
		formatMoney(item.FinalUSD),
		settlement,
		item.Methodology,
		flags,
		strconv.FormatBool(item.DataIncomplete),
	}
}
