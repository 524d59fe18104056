package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"tenderestimate/services"
	"tenderestimate/templates"
)

var categoryNames = map[services.MarkupCategory]string{
	services.CategoryWork:              "Works",
	services.CategorySubWork:           "Subcontract works",
	services.CategoryMainMaterial:      "Main materials",
	services.CategoryAuxiliaryMaterial: "Auxiliary materials",
	services.CategorySubMaterial:       "Subcontract materials",
}

// buildSummaryData formats a tender report for the summary view.
func buildSummaryData(report services.TenderReport) templates.TenderSummaryData {
	totals := report.Totals
	data := templates.TenderSummaryData{
		TenderID:        report.Tender.ID,
		Title:           report.Tender.Title,
		ClientName:      report.Tender.ClientName,
		Rates:           formatRates(report.Tender.Rates),
		BaseTotal:       services.FormatMoney(totals.BaseTotal, services.BaseCurrency),
		CommercialTotal: services.FormatMoney(totals.CommercialTotal, services.BaseCurrency),
		Margin:          services.FormatMoney(totals.Margin, services.BaseCurrency),
		MarginPercent:   services.FormatAmount(totals.MarginPercent),
	}

	summaries := make(map[string]services.PositionSummary, len(totals.Positions))
	for _, s := range totals.Positions {
		summaries[s.PositionID] = s
	}

	for _, p := range report.Positions {
		summary := summaries[p.ID]
		lines := make(map[string]services.LineCost, len(summary.Lines))
		for _, l := range summary.Lines {
			lines[l.ItemID] = l
		}
		failed := make(map[string]error, len(summary.Failures))
		for _, f := range summary.Failures {
			failed[f.ItemID] = f.Err
		}

		pos := templates.SummaryPosition{
			ID:    p.ID,
			Code:  p.Code,
			Name:  p.Name,
			Total: services.FormatMoney(summary.Total, services.BaseCurrency),
		}
		for _, it := range report.Items[p.ID] {
			line := templates.SummaryLine{
				Kind:        it.Kind.Label(),
				Description: it.Description,
				Unit:        it.Unit,
				UnitRate:    services.FormatMoney(it.UnitRate, it.CurrencyType),
			}
			if lc, ok := lines[it.ID]; ok {
				line.Quantity = services.FormatQuantity(lc.Quantity)
				line.Total = services.FormatMoney(lc.Total, services.BaseCurrency)
				line.Linked = lc.LinkedWorkID != ""
			} else {
				line.Quantity = services.FormatQuantity(it.Quantity)
				line.Total = "n/a"
				if err, ok := failed[it.ID]; ok {
					line.Note = err.Error()
				}
			}
			pos.Lines = append(pos.Lines, line)
		}
		for _, w := range summary.Warnings {
			pos.Warnings = append(pos.Warnings, w.Error())
		}
		data.Positions = append(data.Positions, pos)
	}

	for _, c := range services.MarkupCategories {
		ct, ok := totals.ByCategory[c]
		if !ok {
			continue
		}
		data.Categories = append(data.Categories, templates.SummaryCategory{
			Name:       categoryNames[c],
			Base:       services.FormatMoney(ct.Base, services.BaseCurrency),
			Commercial: services.FormatMoney(ct.Commercial, services.BaseCurrency),
		})
	}
	return data
}

func formatRates(rates services.RateTable) string {
	var parts []string
	for _, c := range []services.CurrencyType{services.CurrencyUSD, services.CurrencyEUR, services.CurrencyCNY} {
		if r, ok := rates[c]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", c, services.FormatAmount(r)))
		}
	}
	if len(parts) == 0 {
		return "No exchange rates set"
	}
	return strings.Join(parts, " · ")
}

// renderSummary renders the summary partial for HTMX requests and the full
// page otherwise.
func renderSummary(e *core.RequestEvent, data templates.TenderSummaryData) error {
	if e.Request.Header.Get("HX-Request") == "true" {
		return templates.TenderSummaryContent(data).Render(e.Request.Context(), e.Response)
	}
	return templates.TenderSummaryPage(data).Render(e.Request.Context(), e.Response)
}

// HandleTenderSummary renders the tender cost summary.
// Route: GET /tenders/{id}
func HandleTenderSummary(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		tenderID := e.Request.PathValue("id")
		if tenderID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing tender ID")
		}

		report, err := est.TenderReport(e.Request.Context(), tenderID)
		if err != nil {
			return respondError(e, "tender_summary", err)
		}
		return renderSummary(e, buildSummaryData(report))
	}
}

// HandleTenderRates replaces the tender's exchange rates. Existing items keep
// the rate they were saved with.
// Route: POST /tenders/{id}/rates
func HandleTenderRates(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		tenderID := e.Request.PathValue("id")
		if tenderID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing tender ID")
		}

		form, err := bindRatesForm(e.Request)
		if err != nil {
			return respondBindError(e, err)
		}
		if err := est.UpdateRates(e.Request.Context(), tenderID, form.Table()); err != nil {
			return respondError(e, "tender_rates", err)
		}

		SetToast(e, "success", "Exchange rates updated")
		return e.JSON(http.StatusOK, map[string]string{"rates": formatRates(form.Table())})
	}
}

// HandleTenderRecalc re-derives and stores every total of the tender, then
// renders the refreshed summary.
// Route: POST /tenders/{id}/recalc
func HandleTenderRecalc(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		tenderID := e.Request.PathValue("id")
		if tenderID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing tender ID")
		}

		result, err := est.Recalc(e.Request.Context(), tenderID)
		if err != nil {
			return respondError(e, "tender_recalc", err)
		}
		report, err := est.TenderReport(e.Request.Context(), tenderID)
		if err != nil {
			return respondError(e, "tender_recalc", err)
		}

		if len(result.Failures) > 0 {
			SetToast(e, "warning", fmt.Sprintf("%d lines could not be priced", len(result.Failures)))
		} else {
			SetToast(e, "success", fmt.Sprintf("Recalculated %d items", result.Items))
		}
		return renderSummary(e, buildSummaryData(report))
	}
}
