package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"farmtrace/marketplace-backend/internal/catalog"
)

// PDFOptions configures the traceability sheet
type PDFOptions struct {
	PageSize    string   `json:"page_size"`
	FontFamily  string   `json:"font_family"`
	DateFormat  string   `json:"date_format"`
	HeaderColor PDFColor `json:"header_color"`
	StripeColor PDFColor `json:"stripe_color"`
	Margins     float64  `json:"margins"`

	// UTF8FontFile is a TTF file with Vietnamese glyphs. Without it text is
	// written with the core font and diacritics are stripped.
	UTF8FontFile string `json:"utf8_font_file,omitempty"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DefaultPDFOptions returns default traceability sheet options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:    "A4",
		FontFamily:  "Arial",
		DateFormat:  "2006-01-02 15:04",
		HeaderColor: PDFColor{R: 46, G: 125, B: 50},
		StripeColor: PDFColor{R: 241, G: 248, B: 233},
		Margins:     15,
	}
}

// PDFGenerator renders one product's traceability sheet
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
	text    func(string) string
}

// NewPDFGenerator creates a portrait generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	if options.PageSize == "" {
		options.PageSize = "A4"
	}
	if options.DateFormat == "" {
		options.DateFormat = DefaultPDFOptions().DateFormat
	}
	pdf := gofpdf.New("P", "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins, options.Margins, options.Margins)
	pdf.SetAutoPageBreak(true, options.Margins)

	g := &PDFGenerator{pdf: pdf, options: options, text: ASCIIFold}
	if options.UTF8FontFile != "" {
		pdf.AddUTF8Font("trace", "", options.UTF8FontFile)
		pdf.AddUTF8Font("trace", "B", options.UTF8FontFile)
		g.options.FontFamily = "trace"
		g.text = func(s string) string { return s }
	}
	if g.options.FontFamily == "" {
		g.options.FontFamily = "Arial"
	}
	return g
}

// Traceability writes the sheet: product details, verification, farming
// timeline and certificates
func (g *PDFGenerator) Traceability(p *catalog.Product, generatedAt time.Time) error {
	g.pdf.SetTitle(g.text(p.Name), true)
	g.pdf.AddPage()

	g.pdf.SetFont(g.options.FontFamily, "B", 16)
	g.pdf.CellFormat(0, 10, g.text("Truy xuất nguồn gốc: "+p.Name), "", 1, "L", false, 0, "")
	g.pdf.SetFont(g.options.FontFamily, "", 9)
	g.pdf.CellFormat(0, 6, g.text("Tạo lúc "+generatedAt.Format(g.options.DateFormat)), "", 1, "L", false, 0, "")
	g.pdf.Ln(4)

	g.section("Thông tin sản phẩm")
	g.keyValues([][2]string{
		{"Mã sản phẩm", p.ID},
		{"Nông dân", p.FarmerName},
		{"Danh mục", p.Category},
		{"Mã vùng trồng", p.RegionCode},
		{"Địa chỉ", p.Location.Address},
		{"Tọa độ", fmt.Sprintf("%.6f, %.6f", p.Location.Lat, p.Location.Lng)},
		{"Diện tích", fmt.Sprintf("%.2f ha", p.Area)},
		{"Sản lượng dự kiến", fmt.Sprintf("%.2f tấn", p.ExpectedYield)},
		{"Liên hệ", p.Contact},
	})

	g.section("Kiểm duyệt")
	verification := [][2]string{{"Trạng thái", string(p.Verification.Status)}}
	if p.Verification.VerifiedBy != nil {
		verification = append(verification, [2]string{"Người duyệt", *p.Verification.VerifiedBy})
	}
	if p.Verification.VerifiedAt != nil {
		verification = append(verification, [2]string{"Ngày duyệt", p.Verification.VerifiedAt.Format(g.options.DateFormat)})
	}
	if p.Verification.Note != nil && *p.Verification.Note != "" {
		verification = append(verification, [2]string{"Ghi chú", *p.Verification.Note})
	}
	g.keyValues(verification)

	g.section("Nhật ký canh tác")
	if len(p.Timeline) == 0 {
		g.paragraph("Chưa có nhật ký.")
	} else {
		rows := make([][]string, len(p.Timeline))
		for i, e := range p.Timeline {
			rows[i] = []string{e.Date, e.Stage, e.Description}
		}
		g.table([]string{"Ngày", "Giai đoạn", "Mô tả"}, []float64{28, 40, 0}, rows)
	}

	g.section("Chứng nhận")
	if len(p.Certificates) == 0 {
		g.paragraph("Không có chứng nhận.")
	} else {
		rows := make([][]string, len(p.Certificates))
		for i, c := range p.Certificates {
			rows[i] = []string{c.Type, c.ExpiryDate}
		}
		g.table([]string{"Loại", "Hết hạn"}, []float64{90, 0}, rows)
	}

	return g.pdf.Error()
}

// Output writes the document
func (g *PDFGenerator) Output(w io.Writer) error {
	return g.pdf.Output(w)
}

// WriteTraceability renders p with default options to w
func WriteTraceability(w io.Writer, p *catalog.Product, generatedAt time.Time) error {
	g := NewPDFGenerator(DefaultPDFOptions())
	if err := g.Traceability(p, generatedAt); err != nil {
		return fmt.Errorf("failed to render traceability sheet: %w", err)
	}
	return g.Output(w)
}

func (g *PDFGenerator) section(title string) {
	g.pdf.Ln(3)
	g.pdf.SetFont(g.options.FontFamily, "B", 12)
	g.pdf.SetTextColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.CellFormat(0, 8, g.text(title), "B", 1, "L", false, 0, "")
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.Ln(1)
}

func (g *PDFGenerator) keyValues(pairs [][2]string) {
	g.pdf.SetFont(g.options.FontFamily, "", 10)
	for _, kv := range pairs {
		g.pdf.SetFont(g.options.FontFamily, "B", 10)
		g.pdf.CellFormat(45, 6, g.text(kv[0]), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", 10)
		g.pdf.MultiCell(0, 6, g.text(kv[1]), "", "L", false)
	}
}

func (g *PDFGenerator) paragraph(s string) {
	g.pdf.SetFont(g.options.FontFamily, "", 10)
	g.pdf.MultiCell(0, 6, g.text(s), "", "L", false)
}

// table draws a striped table. A zero width takes the rest of the line.
func (g *PDFGenerator) table(headers []string, widths []float64, rows [][]string) {
	pageW, _ := g.pdf.GetPageSize()
	left, _, right, _ := g.pdf.GetMargins()
	widths = append([]float64(nil), widths...)
	used := 0.0
	for _, w := range widths {
		used += w
	}
	for i, w := range widths {
		if w == 0 {
			widths[i] = pageW - left - right - used
		}
	}

	hc := g.options.HeaderColor
	g.pdf.SetFont(g.options.FontFamily, "B", 10)
	g.pdf.SetFillColor(hc.R, hc.G, hc.B)
	g.pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		g.pdf.CellFormat(widths[i], 7, g.text(h), "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)

	sc := g.options.StripeColor
	g.pdf.SetFont(g.options.FontFamily, "", 9)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.SetFillColor(sc.R, sc.G, sc.B)
	for r, row := range rows {
		for i, cell := range row {
			g.pdf.CellFormat(widths[i], 6, truncate(g.text(cell), 90), "1", 0, "L", r%2 == 1, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// ASCIIFold strips Vietnamese diacritics so text fits the core PDF fonts
func ASCIIFold(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
