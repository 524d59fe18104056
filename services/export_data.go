package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExportRow is one row of a tender export: a position, a work or unlinked
// line, or a material nested under its work.
type ExportRow struct {
	Level       int    // 0 = position, 1 = line, 2 = linked material
	Index       string // "1", "1.2", "1.2.1"
	Kind        string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	Currency    CurrencyType
	UnitRate    decimal.Decimal
	Delivery    decimal.Decimal
	Total       decimal.Decimal
	Commercial  decimal.Decimal
	Note        string
}

// ExportData holds everything the Excel and PDF renderers need.
type ExportData struct {
	Title           string
	ClientName      string
	CreatedDate     string
	Rates           RateTable
	Rows            []ExportRow
	BaseTotal       decimal.Decimal
	CommercialTotal decimal.Decimal
	Margin          decimal.Decimal
	MarginPercent   decimal.Decimal
	ByCategory      map[MarkupCategory]CategoryTotals
}

// BuildExportData flattens a tender report into export rows. Materials linked
// to a work follow that work; unlinked lines keep their sort order.
func BuildExportData(report TenderReport, policy MarkupPolicy, now time.Time) ExportData {
	data := ExportData{
		Title:           report.Tender.Title,
		ClientName:      report.Tender.ClientName,
		CreatedDate:     now.Format("02 Jan 2006"),
		Rates:           report.Tender.Rates,
		BaseTotal:       report.Totals.BaseTotal,
		CommercialTotal: report.Totals.CommercialTotal,
		Margin:          report.Totals.Margin,
		MarginPercent:   report.Totals.MarginPercent,
		ByCategory:      report.Totals.ByCategory,
	}

	summaries := make(map[string]PositionSummary, len(report.Totals.Positions))
	for _, s := range report.Totals.Positions {
		summaries[s.PositionID] = s
	}

	for pi, p := range report.Positions {
		summary := summaries[p.ID]
		commercial := make(map[string]decimal.Decimal)
		positionCommercial := decimal.Zero
		for _, c := range AllocatePosition(summary, policy) {
			commercial[c.ItemID] = c.Commercial
			positionCommercial = positionCommercial.Add(c.Commercial)
		}

		posIndex := fmt.Sprintf("%d", pi+1)
		data.Rows = append(data.Rows, ExportRow{
			Level:       0,
			Index:       posIndex,
			Kind:        p.Code,
			Description: p.Name,
			Unit:        p.Unit,
			Quantity:    p.Volume,
			Currency:    BaseCurrency,
			Total:       summary.Total,
			Commercial:  positionCommercial,
		})

		lines := make(map[string]LineCost, len(summary.Lines))
		nested := make(map[string][]string)
		for _, l := range summary.Lines {
			lines[l.ItemID] = l
			if l.LinkedWorkID != "" {
				nested[l.LinkedWorkID] = append(nested[l.LinkedWorkID], l.ItemID)
			}
		}
		failed := make(map[string]error, len(summary.Failures))
		for _, f := range summary.Failures {
			failed[f.ItemID] = f.Err
		}

		items := report.Items[p.ID]
		byID := make(map[string]BOQItem, len(items))
		for _, it := range items {
			byID[it.ID] = it
		}

		n := 0
		for _, it := range items {
			if l, ok := lines[it.ID]; ok && l.LinkedWorkID != "" {
				continue
			}
			n++
			lineIndex := fmt.Sprintf("%s.%d", posIndex, n)
			data.Rows = append(data.Rows, exportLine(1, lineIndex, it, lines, commercial, failed))
			for m, materialID := range nested[it.ID] {
				data.Rows = append(data.Rows, exportLine(2, fmt.Sprintf("%s.%d", lineIndex, m+1),
					byID[materialID], lines, commercial, failed))
			}
		}
	}
	return data
}

func exportLine(level int, index string, it BOQItem, lines map[string]LineCost, commercial map[string]decimal.Decimal, failed map[string]error) ExportRow {
	row := ExportRow{
		Level:       level,
		Index:       index,
		Kind:        it.Kind.Label(),
		Description: it.Description,
		Unit:        it.Unit,
		Quantity:    it.Quantity,
		Currency:    it.CurrencyType,
		UnitRate:    it.UnitRate,
	}
	if l, ok := lines[it.ID]; ok {
		row.Quantity = l.Quantity
		row.Delivery = l.Delivery
		row.Total = l.Total
		row.Commercial = commercial[it.ID]
	}
	if err, ok := failed[it.ID]; ok {
		row.Note = err.Error()
	}
	return row
}
