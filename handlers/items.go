package handlers

import (
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"tenderestimate/services"
)

// HandleItemCreate adds a BOQ item to a position. A material posted with a
// work_item_id is created linked to that work.
// Route: POST /positions/{positionId}/items
func HandleItemCreate(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		positionID := e.Request.PathValue("positionId")
		if positionID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing position ID")
		}

		form, err := bindItemForm(e.Request)
		if err != nil {
			return respondBindError(e, err)
		}
		in, err := form.ToInput()
		if err != nil {
			return respondBindError(e, err)
		}

		item, err := est.CreateItem(e.Request.Context(), positionID, in)
		if err != nil {
			return respondError(e, "item_create", err)
		}

		triggerPositionChanged(e, item.PositionID)
		SetToast(e, "success", "Item added")
		return e.JSON(http.StatusCreated, newItemView(item))
	}
}

// HandleItemPatch applies a partial edit to an item. Only the fields present
// in the form change.
// Route: PATCH /items/{itemId}
func HandleItemPatch(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		itemID := e.Request.PathValue("itemId")
		if itemID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing item ID")
		}

		form, err := bindItemForm(e.Request)
		if err != nil {
			return respondBindError(e, err)
		}
		in, err := form.ToInput()
		if err != nil {
			return respondBindError(e, err)
		}

		item, err := est.UpdateItem(e.Request.Context(), itemID, in)
		if err != nil {
			return respondError(e, "item_patch", err)
		}

		triggerPositionChanged(e, item.PositionID)
		SetToast(e, "success", "Item saved")
		return e.JSON(http.StatusOK, newItemView(item))
	}
}

// HandleItemUnlink turns a linked material into an unlinked one that keeps
// its current quantity.
// Route: POST /items/{itemId}/unlink
func HandleItemUnlink(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		itemID := e.Request.PathValue("itemId")
		if itemID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing item ID")
		}

		item, err := est.Unlink(e.Request.Context(), itemID)
		if err != nil {
			return respondError(e, "item_unlink", err)
		}

		triggerPositionChanged(e, item.PositionID)
		SetToast(e, "success", "Material unlinked")
		return e.JSON(http.StatusOK, newItemView(item))
	}
}

// HandleItemReclassify switches an item between work and sub-work, or between
// material and sub-material.
// Route: POST /items/{itemId}/reclassify
func HandleItemReclassify(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		itemID := e.Request.PathValue("itemId")
		if itemID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing item ID")
		}
		if err := e.Request.ParseForm(); err != nil {
			return ErrorToast(e, http.StatusBadRequest, "Invalid form data")
		}
		kind := services.ItemKind(strings.TrimSpace(e.Request.FormValue("kind")))
		if kind == "" {
			return ErrorToast(e, http.StatusBadRequest, "Kind is required")
		}

		item, err := est.Reclassify(e.Request.Context(), itemID, kind)
		if err != nil {
			return respondError(e, "item_reclassify", err)
		}

		triggerPositionChanged(e, item.PositionID)
		SetToast(e, "success", "Item reclassified")
		return e.JSON(http.StatusOK, newItemView(item))
	}
}
