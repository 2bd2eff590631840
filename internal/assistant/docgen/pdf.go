package docgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// writePdf lays the block sequence out on A4 pages.
func writePdf(blocks []Block) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, blk := range blocks {
		switch blk.Kind {
		case BlockHeading:
			size := 18.0 - 2.0*float64(blk.Level-1)
			if size < 11 {
				size = 11
			}
			pdf.SetFont("Arial", "B", size)
			pdf.MultiCell(0, size*0.5, tr(blk.Text), "", "L", false)
			pdf.Ln(2)

		case BlockListItem:
			pdf.SetFont("Arial", "", 11)
			indent := 5.0 * float64(blk.Level)
			pdf.SetX(pdf.GetX() + indent)
			pdf.MultiCell(0, 5.5, tr("- "+blk.Text), "", "L", false)

		case BlockCode:
			pdf.SetFont("Courier", "", 10)
			for _, line := range strings.Split(blk.Text, "\n") {
				pdf.MultiCell(0, 5, tr(line), "", "L", false)
			}
			pdf.Ln(2)

		case BlockRule:
			y := pdf.GetY() + 2
			left, _, right, _ := pdf.GetMargins()
			w, _ := pdf.GetPageSize()
			pdf.Line(left, y, w-right, y)
			pdf.Ln(4)

		default:
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 5.5, tr(blk.Text), "", "L", false)
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
