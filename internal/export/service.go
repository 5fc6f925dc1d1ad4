package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

const (
	ReceiptsSheet = "Receipts"
	TaxSheet      = "Tax Breakdown"
)

// Row is one extracted document to export.
type Row struct {
	SourceRef string
	Result    entity.ExtractionResult
}

// Service produces XLSX bytes for extraction results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

var receiptHeaders = []string{
	"Source",
	"Merchant",
	"Date",
	"Time",
	"Currency",
	"Subtotal",
	"Tax Total",
	"Total",
	"Payment Method",
	"Receipt Number",
	"Document Type",
	"Confidence",
	"Needs Verification",
	"Warnings",
}

var taxHeaders = []string{"Source", "Rate %", "Amount", "Taxable Amount", "Gross Amount"}

// ExportXLSX returns a workbook with one row per result on the Receipts sheet
// and one row per tax rate on the Tax Breakdown sheet.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// Results without a parseable date are kept only when no window is given.
func (s *Service) ExportXLSX(ctx context.Context, rows []Row, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := window(from, to)
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ReceiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(TaxSheet); err != nil {
		return nil, err
	}
	writeHeaders(f, ReceiptsSheet, receiptHeaders)
	writeHeaders(f, TaxSheet, taxHeaders)

	row, taxRow := 2, 2
	exported := 0
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !inWindow(r.Result.Date, fromDate, toDate) {
			continue
		}
		res := r.Result
		write := func(sheet string, col, row int, v any) {
			if v == nil {
				return
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(ReceiptsSheet, 1, row, r.SourceRef)
		write(ReceiptsSheet, 2, row, str(res.MerchantName))
		write(ReceiptsSheet, 3, row, str(res.Date))
		write(ReceiptsSheet, 4, row, str(res.Time))
		write(ReceiptsSheet, 5, row, str(res.Currency))
		write(ReceiptsSheet, 6, row, num(res.Subtotal))
		write(ReceiptsSheet, 7, row, num(res.TaxTotal))
		write(ReceiptsSheet, 8, row, num(res.Total))
		write(ReceiptsSheet, 9, row, str(res.PaymentMethod))
		write(ReceiptsSheet, 10, row, str(res.ReceiptNumber))
		write(ReceiptsSheet, 11, row, string(res.DocumentType))
		write(ReceiptsSheet, 12, row, res.Confidence)
		write(ReceiptsSheet, 13, row, res.NeedsVerification)
		write(ReceiptsSheet, 14, row, truncate(strings.Join(res.Warnings, "; "), 140))
		row++

		for _, b := range res.TaxBreakdown {
			write(TaxSheet, 1, taxRow, r.SourceRef)
			write(TaxSheet, 2, taxRow, b.Rate)
			write(TaxSheet, 3, taxRow, b.Amount)
			write(TaxSheet, 4, taxRow, num(b.TaxableAmount))
			write(TaxSheet, 5, taxRow, num(b.GrossAmount))
			taxRow++
		}
		exported++
	}

	// Widen a few columns
	_ = f.SetColWidth(ReceiptsSheet, "A", "A", 40) // source
	_ = f.SetColWidth(ReceiptsSheet, "B", "B", 28) // merchant
	_ = f.SetColWidth(ReceiptsSheet, "C", "E", 12)
	_ = f.SetColWidth(ReceiptsSheet, "F", "H", 14) // amounts
	_ = f.SetColWidth(ReceiptsSheet, "N", "N", 60) // warnings
	_ = f.SetColWidth(TaxSheet, "A", "A", 40)
	_ = f.SetColWidth(TaxSheet, "B", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", exported,
		"skipped", len(rows)-exported,
		"tax_rows", taxRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

// window normalizes the bounds to UTC dates.
func window(from, to *time.Time) (*time.Time, *time.Time) {
	day := func(t time.Time) *time.Time {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	var fromDate, toDate *time.Time
	if from != nil {
		fromDate = day(*from)
	}
	if to != nil {
		toDate = day(*to)
	}
	if fromDate != nil && toDate == nil {
		toDate = day(time.Now().UTC())
	}
	return fromDate, toDate
}

func inWindow(date *string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if date == nil {
		return false
	}
	d, err := time.Parse("2006-01-02", *date)
	if err != nil {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	return to == nil || !d.After(*to)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// num leaves the cell empty for missing amounts.
func num(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
