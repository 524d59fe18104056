package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"tenderestimate/services"
)

type lineView struct {
	ItemID       string          `json:"item_id"`
	Kind         string          `json:"kind"`
	Category     string          `json:"category"`
	LinkedWorkID string          `json:"linked_work_id,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitRateBase decimal.Decimal `json:"unit_rate_base"`
	BaseCost     decimal.Decimal `json:"base_cost"`
	Delivery     decimal.Decimal `json:"delivery"`
	Total        decimal.Decimal `json:"total"`
}

type failureView struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

type positionSummaryView struct {
	PositionID string          `json:"position_id"`
	Total      decimal.Decimal `json:"total"`
	Complete   bool            `json:"complete"`
	Lines      []lineView      `json:"lines"`
	Warnings   []string        `json:"warnings"`
	Failures   []failureView   `json:"failures"`
}

func newPositionSummaryView(s services.PositionSummary) positionSummaryView {
	v := positionSummaryView{
		PositionID: s.PositionID,
		Total:      s.Total,
		Complete:   s.Complete(),
		Lines:      make([]lineView, 0, len(s.Lines)),
		Warnings:   make([]string, 0, len(s.Warnings)),
		Failures:   make([]failureView, 0, len(s.Failures)),
	}
	for _, l := range s.Lines {
		v.Lines = append(v.Lines, lineView{
			ItemID:       l.ItemID,
			Kind:         string(l.Kind),
			Category:     string(l.Category),
			LinkedWorkID: l.LinkedWorkID,
			Quantity:     l.Quantity,
			UnitRateBase: l.UnitRateBase,
			BaseCost:     l.BaseCost,
			Delivery:     l.Delivery,
			Total:        l.Total,
		})
	}
	for _, w := range s.Warnings {
		v.Warnings = append(v.Warnings, w.Error())
	}
	for _, f := range s.Failures {
		v.Failures = append(v.Failures, failureView{ItemID: f.ItemID, Error: f.Err.Error()})
	}
	return v
}

// HandlePositionSummary returns a position total re-derived from the current
// items and links.
// Route: GET /positions/{positionId}/summary
func HandlePositionSummary(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		positionID := e.Request.PathValue("positionId")
		if positionID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing position ID")
		}

		summary, err := est.PositionSummary(e.Request.Context(), positionID)
		if err != nil {
			return respondError(e, "position_summary", err)
		}
		return e.JSON(http.StatusOK, newPositionSummaryView(summary))
	}
}
