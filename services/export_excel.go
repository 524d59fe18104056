package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var excelColumns = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

// GenerateExcel renders a priced tender as an Excel workbook and returns the
// file contents.
func GenerateExcel(data ExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := excelSheetName(data.Title)
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	lastCol := excelColumns[len(excelColumns)-1]
	widths := []float64{8, 12, 44, 8, 12, 6, 14, 14, 16, 16}
	for i, col := range excelColumns {
		if err := f.SetColWidth(sheetName, col, col, widths[i]); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	// ── Styles ──────────────────────────────────────────────────────────

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	subtitleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 11},
	})
	if err != nil {
		return nil, fmt.Errorf("create subtitle style: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#333333"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	amountFmt := "#,##0.00"
	positionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E8E8E8"},
			Pattern: 1,
		},
		Border:       thinBorders(),
		CustomNumFmt: &amountFmt,
	})
	if err != nil {
		return nil, fmt.Errorf("create position style: %w", err)
	}

	lineStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10},
		Border:       thinBorders(),
		CustomNumFmt: &amountFmt,
	})
	if err != nil {
		return nil, fmt.Errorf("create line style: %w", err)
	}

	materialStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10, Italic: true, Color: "#444444"},
		Border:       thinBorders(),
		CustomNumFmt: &amountFmt,
	})
	if err != nil {
		return nil, fmt.Errorf("create material style: %w", err)
	}

	summaryLabelStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, fmt.Errorf("create summary label style: %w", err)
	}

	summaryValueStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Size: 11},
		CustomNumFmt: &amountFmt,
	})
	if err != nil {
		return nil, fmt.Errorf("create summary value style: %w", err)
	}

	// ── Header Rows (1-3) ───────────────────────────────────────────────

	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(sheetName, "A1", sanitizeExcelCell(data.Title))
	f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle)

	if data.ClientName != "" {
		if err := f.MergeCell(sheetName, "A2", lastCol+"2"); err != nil {
			return nil, fmt.Errorf("merge client: %w", err)
		}
		f.SetCellValue(sheetName, "A2", "Client: "+sanitizeExcelCell(data.ClientName))
		f.SetCellStyle(sheetName, "A2", lastCol+"2", subtitleStyle)
	}

	if err := f.MergeCell(sheetName, "A3", lastCol+"3"); err != nil {
		return nil, fmt.Errorf("merge date: %w", err)
	}
	f.SetCellValue(sheetName, "A3", "Date: "+data.CreatedDate+"   Rates: "+formatRates(data.Rates))
	f.SetCellStyle(sheetName, "A3", lastCol+"3", subtitleStyle)

	// ── Row 5: Column Headers ───────────────────────────────────────────

	headers := []string{"#", "Kind", "Description", "Unit", "Qty", "Cur", "Unit Rate", "Delivery", "Total", "Commercial"}
	for i, h := range headers {
		f.SetCellValue(sheetName, fmt.Sprintf("%s5", excelColumns[i]), h)
	}
	f.SetCellStyle(sheetName, "A5", lastCol+"5", headerStyle)

	// ── Data Rows (starting row 6) ──────────────────────────────────────

	row := 6
	for _, r := range data.Rows {
		rowStr := fmt.Sprintf("%d", row)

		desc := r.Description
		if r.Level == 2 {
			desc = "    " + desc
		}
		if r.Note != "" {
			desc += " [" + r.Note + "]"
		}

		f.SetCellValue(sheetName, "A"+rowStr, r.Index)
		f.SetCellValue(sheetName, "B"+rowStr, sanitizeExcelCell(r.Kind))
		f.SetCellValue(sheetName, "C"+rowStr, sanitizeExcelCell(desc))
		f.SetCellValue(sheetName, "D"+rowStr, sanitizeExcelCell(r.Unit))
		f.SetCellValue(sheetName, "E"+rowStr, r.Quantity.InexactFloat64())
		if r.Level > 0 {
			f.SetCellValue(sheetName, "F"+rowStr, string(r.Currency))
			f.SetCellValue(sheetName, "G"+rowStr, r.UnitRate.InexactFloat64())
			f.SetCellValue(sheetName, "H"+rowStr, r.Delivery.InexactFloat64())
		}
		f.SetCellValue(sheetName, "I"+rowStr, r.Total.InexactFloat64())
		f.SetCellValue(sheetName, "J"+rowStr, r.Commercial.InexactFloat64())

		style := lineStyle
		switch r.Level {
		case 0:
			style = positionStyle
		case 2:
			style = materialStyle
		}
		f.SetCellStyle(sheetName, "A"+rowStr, lastCol+rowStr, style)

		row++
	}

	// ── Summary Rows ────────────────────────────────────────────────────

	row++
	summary := []struct {
		label string
		col   string
		value float64
	}{
		{"Base Total (" + string(BaseCurrency) + "):", "I", data.BaseTotal.InexactFloat64()},
		{"Commercial Total (" + string(BaseCurrency) + "):", "J", data.CommercialTotal.InexactFloat64()},
		{fmt.Sprintf("Margin (%s%%):", data.MarginPercent.StringFixed(1)), "J", data.Margin.InexactFloat64()},
	}
	for _, s := range summary {
		rowStr := fmt.Sprintf("%d", row)
		f.SetCellValue(sheetName, "H"+rowStr, s.label)
		f.SetCellStyle(sheetName, "H"+rowStr, "H"+rowStr, summaryLabelStyle)
		f.SetCellValue(sheetName, s.col+rowStr, s.value)
		f.SetCellStyle(sheetName, s.col+rowStr, s.col+rowStr, summaryValueStyle)
		row++
	}

	// ── Write to buffer ─────────────────────────────────────────────────

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}

	return buf.Bytes(), nil
}

// excelSheetName trims a title to Excel's 31 character sheet name limit.
func excelSheetName(title string) string {
	runes := []rune(title)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	if len(runes) == 0 {
		return "BOQ"
	}
	return string(runes)
}

// formatRates renders the configured foreign rates, e.g. "USD 92.5, EUR 99".
func formatRates(rates RateTable) string {
	out := ""
	for _, c := range ForeignCurrencies {
		r, ok := rates[c]
		if !ok || !r.IsPositive() {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += string(c) + " " + r.String()
	}
	if out == "" {
		return "none"
	}
	return out
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
