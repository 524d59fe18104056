package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"tenderestimate/services"
)

// HandleLinkCoefficients changes the coefficients of a link and returns the
// re-derived material.
// Route: PATCH /links/{linkId}
func HandleLinkCoefficients(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		linkID := e.Request.PathValue("linkId")
		if linkID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing link ID")
		}

		form, err := bindCoefficientForm(e.Request)
		if err != nil {
			return respondBindError(e, err)
		}

		material, err := est.UpdateLinkCoefficients(e.Request.Context(), linkID, form.Consumption, form.Conversion)
		if err != nil {
			return respondError(e, "link_coefficients", err)
		}

		triggerPositionChanged(e, material.PositionID)
		SetToast(e, "success", "Coefficients updated")
		return e.JSON(http.StatusOK, newItemView(material))
	}
}

// HandleRelink moves a material to another work, replacing any current link.
// Route: POST /items/{itemId}/relink
func HandleRelink(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		itemID := e.Request.PathValue("itemId")
		if itemID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing item ID")
		}

		form, err := bindCoefficientForm(e.Request)
		if err != nil {
			return respondBindError(e, err)
		}
		if form.WorkItemID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Select the work to link to")
		}

		link, err := est.Graph().Relink(e.Request.Context(), itemID, form.WorkItemID, form.Consumption, form.Conversion)
		if err != nil {
			return respondError(e, "relink", err)
		}

		triggerPositionChanged(e, link.PositionID)
		SetToast(e, "success", "Material linked")
		return e.JSON(http.StatusOK, newLinkView(link))
	}
}
