package pdf

import (
	"sync"

	"github.com/go-pdf/fpdf"

	"pixelCV/internal/template"
)

// Measurer 用 fpdf 的核心字体度量计算文本宽度（毫米）。
type Measurer struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// NewMeasurer returns a Measurer backed by the core PDF fonts.
func NewMeasurer() *Measurer {
	pdf := fpdf.New("P", "mm", "A4", "")
	return &Measurer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

// TextWidth implements compose.Measurer.
func (m *Measurer) TextWidth(text string, family template.FontFamily, style template.FontStyle, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFont(string(family), string(style), size)
	return m.pdf.GetStringWidth(m.tr(text))
}
