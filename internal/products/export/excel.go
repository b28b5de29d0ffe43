package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"farmtrace/marketplace-backend/internal/catalog"
)

// ExcelOptions configures the product spreadsheet
type ExcelOptions struct {
	SheetName       string `json:"sheet_name"`
	FreezeHeader    bool   `json:"freeze_header"`
	AutoFilter      bool   `json:"auto_filter"`
	TimestampFormat string `json:"timestamp_format"`
	HeaderFill      string `json:"header_fill"`
	HeaderFontColor string `json:"header_font_color"`
}

// DefaultExcelOptions returns default spreadsheet options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:       "Products",
		FreezeHeader:    true,
		AutoFilter:      true,
		TimestampFormat: "2006-01-02 15:04",
		HeaderFill:      "2E7D32",
		HeaderFontColor: "FFFFFF",
	}
}

type column struct {
	label string
	width float64
	value func(*catalog.Product, ExcelOptions) interface{}
}

var productColumns = []column{
	{"ID", 38, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.ID }},
	{"Sản phẩm", 24, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Name }},
	{"Nông dân", 22, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.FarmerName }},
	{"Danh mục", 14, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Category }},
	{"Mã vùng trồng", 16, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.RegionCode }},
	{"Địa chỉ", 36, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Location.Address }},
	{"Vĩ độ", 11, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Location.Lat }},
	{"Kinh độ", 11, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Location.Lng }},
	{"Diện tích (ha)", 14, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.Area }},
	{"Sản lượng (tấn)", 15, func(p *catalog.Product, _ ExcelOptions) interface{} { return p.ExpectedYield }},
	{"Trạng thái", 12, func(p *catalog.Product, _ ExcelOptions) interface{} { return string(p.Verification.Status) }},
	{"Người duyệt", 20, func(p *catalog.Product, _ ExcelOptions) interface{} { return deref(p.Verification.VerifiedBy) }},
	{"Ngày duyệt", 18, func(p *catalog.Product, o ExcelOptions) interface{} { return formatTime(p.Verification.VerifiedAt, o.TimestampFormat) }},
	{"Ghi chú", 30, func(p *catalog.Product, _ ExcelOptions) interface{} { return deref(p.Verification.Note) }},
	{"Ngày gửi", 18, func(p *catalog.Product, o ExcelOptions) interface{} { return p.SubmittedAt.Format(o.TimestampFormat) }},
}

// Columns returns the header labels in sheet order
func Columns() []string {
	labels := make([]string, len(productColumns))
	for i, c := range productColumns {
		labels[i] = c.label
	}
	return labels
}

// ExcelExporter writes products to an xlsx workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// NewExcelExporter creates a workbook with a single product sheet
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	if options.SheetName == "" {
		options.SheetName = DefaultExcelOptions().SheetName
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = DefaultExcelOptions().TimestampFormat
	}
	file := excelize.NewFile()
	_ = file.SetSheetName("Sheet1", options.SheetName)
	return &ExcelExporter{file: file, options: options}
}

// WriteProducts writes the header and one row per product, in the given order
func (e *ExcelExporter) WriteProducts(products []catalog.Product) error {
	sheet := e.options.SheetName

	headerStyle, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: e.options.HeaderFontColor},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{e.options.HeaderFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range productColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, c.label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = e.file.SetColWidth(sheet, colName, colName, c.width)
	}
	last, _ := excelize.CoordinatesToCellName(len(productColumns), 1)
	_ = e.file.SetCellStyle(sheet, "A1", last, headerStyle)

	for r := range products {
		p := &products[r]
		for i, c := range productColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := e.file.SetCellValue(sheet, cell, c.value(p, e.options)); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
		}
	}

	if e.options.FreezeHeader {
		_ = e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(products) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(productColumns), len(products)+1)
		if err := e.file.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return fmt.Errorf("failed to add auto filter: %w", err)
		}
	}
	return nil
}

// WriteTo writes the workbook
func (e *ExcelExporter) WriteTo(w io.Writer) (int64, error) {
	return e.file.WriteTo(w)
}

// Close releases the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// ExportProducts writes products as an xlsx workbook with default options
func ExportProducts(w io.Writer, products []catalog.Product) error {
	e := NewExcelExporter(DefaultExcelOptions())
	defer e.Close()
	if err := e.WriteProducts(products); err != nil {
		return err
	}
	if _, err := e.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
