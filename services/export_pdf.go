package services

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// GeneratePDF renders a priced tender as a landscape A4 PDF using maroto/v2.
func GeneratePDF(data ExportData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)

	addHeader(m, data)
	addTableHeader(m)
	for _, r := range data.Rows {
		addTableRow(m, r)
	}
	addSummary(m, data)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

// addHeader adds the title, client, rates and date to the PDF.
func addHeader(m core.Maroto, data ExportData) {
	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(data.Title, props.Text{
					Size:  16,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
		),
	)

	muted := &props.Color{Red: 80, Green: 80, Blue: 80}
	m.AddRows(
		row.New(8).Add(
			col.New(4).Add(
				text.New(fmt.Sprintf("Client: %s", data.ClientName), props.Text{Size: 9, Align: align.Left, Color: muted}),
			),
			col.New(4).Add(
				text.New(fmt.Sprintf("Rates: %s", formatRates(data.Rates)), props.Text{Size: 9, Align: align.Center, Color: muted}),
			),
			col.New(4).Add(
				text.New(fmt.Sprintf("Date: %s", data.CreatedDate), props.Text{Size: 9, Align: align.Right, Color: muted}),
			),
		),
	)

	m.AddRows(row.New(4))
}

var pdfColumns = []struct {
	title string
	width int
	align align.Type
}{
	{"#", 1, align.Center},
	{"Description", 4, align.Left},
	{"Unit", 1, align.Center},
	{"Qty", 1, align.Right},
	{"Unit Rate", 1, align.Right},
	{"Delivery", 1, align.Right},
	{"Total", 1, align.Right},
	{"Commercial", 2, align.Right},
}

// addTableHeader adds the column header row for the BOQ table.
func addTableHeader(m core.Maroto) {
	headerCell := props.Cell{BackgroundColor: &props.Color{Red: 33, Green: 37, Blue: 41}}
	cols := make([]core.Col, 0, len(pdfColumns))
	for _, c := range pdfColumns {
		cols = append(cols, col.New(c.width).Add(
			text.New(c.title, props.Text{
				Size:  8,
				Style: fontstyle.Bold,
				Align: c.align,
				Color: &props.Color{Red: 255, Green: 255, Blue: 255},
			}),
		).WithStyle(&headerCell))
	}
	m.AddRows(row.New(8).Add(cols...))
}

// addTableRow adds one row styled by its level: positions bold on grey,
// materials indented under their work.
func addTableRow(m core.Maroto, r ExportRow) {
	var cellStyle *props.Cell
	var textSize float64 = 7
	textStyle := fontstyle.Normal
	descPrefix := ""

	switch r.Level {
	case 0:
		textStyle = fontstyle.Bold
		textSize = 8
		cellStyle = &props.Cell{BackgroundColor: &props.Color{Red: 235, Green: 235, Blue: 235}}
	case 2:
		textStyle = fontstyle.Italic
		descPrefix = "    "
	}

	desc := descPrefix + r.Description
	if r.Level > 0 {
		desc = descPrefix + r.Kind + ": " + r.Description
	}
	if r.Note != "" {
		desc += " (" + r.Note + ")"
	}

	unitRate, delivery := "", ""
	if r.Level > 0 {
		unitRate = FormatMoney(r.UnitRate, r.Currency)
		delivery = FormatAmount(r.Delivery)
	}

	values := []string{
		r.Index,
		desc,
		r.Unit,
		FormatQuantity(r.Quantity),
		unitRate,
		delivery,
		FormatAmount(r.Total),
		FormatAmount(r.Commercial),
	}

	cols := make([]core.Col, 0, len(pdfColumns))
	for i, c := range pdfColumns {
		cell := col.New(c.width).Add(text.New(values[i], props.Text{
			Size:  textSize,
			Style: textStyle,
			Align: c.align,
		}))
		if cellStyle != nil {
			cell = cell.WithStyle(cellStyle)
		}
		cols = append(cols, cell)
	}
	m.AddRows(row.New(7).Add(cols...))
}

// addSummary adds the base, commercial and margin totals at the bottom.
func addSummary(m core.Maroto, data ExportData) {
	m.AddRows(row.New(6))

	summaryCell := &props.Cell{BackgroundColor: &props.Color{Red: 240, Green: 240, Blue: 240}}
	bold := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}

	lines := []struct {
		label string
		value string
	}{
		{"Base Total", FormatMoney(data.BaseTotal, BaseCurrency)},
		{"Commercial Total", FormatMoney(data.CommercialTotal, BaseCurrency)},
		{fmt.Sprintf("Margin (%s%%)", data.MarginPercent.StringFixed(1)), FormatMoney(data.Margin, BaseCurrency)},
	}
	for _, l := range lines {
		m.AddRows(
			row.New(8).Add(
				col.New(8).Add(text.New(l.label, bold)).WithStyle(summaryCell),
				col.New(4).Add(text.New(l.value, bold)).WithStyle(summaryCell),
			),
		)
	}

	m.AddRows(row.New(6))
	m.AddRows(
		row.New(6).Add(
			col.New(12).Add(
				text.New(fmt.Sprintf("Generated on %s", data.CreatedDate), props.Text{
					Size:  7,
					Align: align.Left,
					Color: &props.Color{Red: 140, Green: 140, Blue: 140},
				}),
			),
		),
	)
}
