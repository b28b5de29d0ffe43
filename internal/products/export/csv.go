package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"farmtrace/marketplace-backend/internal/catalog"
)

// CSVOptions configures CSV export
type CSVOptions struct {
	Delimiter       rune   `json:"delimiter"`
	UseCRLF         bool   `json:"use_crlf"`
	TimestampFormat string `json:"timestamp_format"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		TimestampFormat: DefaultExcelOptions().TimestampFormat,
	}
}

// WriteProductsCSV writes the same columns as the spreadsheet, header first
func WriteProductsCSV(w io.Writer, products []catalog.Product, options CSVOptions) error {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF
	cellOpts := ExcelOptions{TimestampFormat: options.TimestampFormat}

	if err := writer.Write(Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(productColumns))
	for r := range products {
		for i, c := range productColumns {
			record[i] = formatCell(c.value(&products[r], cellOpts))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
