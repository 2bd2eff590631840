package docgen

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// writeXlsx interprets each row as a line of ';'-separated cells.
func writeXlsx(rows []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, cell := range strings.Split(row, ";") {
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("cell reference (%d,%d): %w", c+1, r+1, err)
			}
			if err := f.SetCellValue(sheetName, ref, strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", ref, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
