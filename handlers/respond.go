package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tenderestimate/services"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError maps engine errors to HTTP responses. Anything unexpected is
// logged under area and answered with a generic 500.
func respondError(e *core.RequestEvent, area string, err error) error {
	var verr *services.ValidationError
	var overflow *services.OverflowError
	var dangling *services.DanglingLinkError
	switch {
	case errors.As(err, &verr):
		return errorJSON(e, http.StatusBadRequest, verr.Error(), verr.Fields)
	case errors.As(err, &overflow):
		return errorJSON(e, http.StatusUnprocessableEntity, overflow.Error(), nil)
	case errors.Is(err, services.ErrMissingExchangeRate):
		return errorJSON(e, http.StatusUnprocessableEntity,
			"No exchange rate is configured for this currency. Set the tender rate first.", nil)
	case errors.As(err, &dangling):
		return errorJSON(e, http.StatusConflict,
			"The linked work no longer exists. The material was unlinked.", nil)
	case errors.Is(err, services.ErrLinkExists):
		return errorJSON(e, http.StatusConflict, "This material is already linked to a work.", nil)
	case errors.Is(err, services.ErrNotFound):
		return errorJSON(e, http.StatusNotFound, "Not found", nil)
	}
	log.Error().Err(err).Msg(area + ": request failed")
	return errorJSON(e, http.StatusInternalServerError, "Something went wrong. Please try again.", nil)
}

// respondBindError answers a malformed or invalid request body.
func respondBindError(e *core.RequestEvent, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return errorJSON(e, http.StatusBadRequest, "Invalid form data", fields)
	}
	return errorJSON(e, http.StatusBadRequest, "Invalid form data: "+err.Error(), nil)
}

// errorJSON shows the message as an error toast and returns it as JSON. HTMX
// does not swap the body.
func errorJSON(e *core.RequestEvent, status int, message string, fields map[string]string) error {
	SetToast(e, "error", message)
	e.Response.Header().Set("HX-Reswap", "none")
	return e.JSON(status, errorBody{Error: message, Fields: fields})
}

type itemView struct {
	ID                     string           `json:"id"`
	PositionID             string           `json:"position"`
	SortOrder              int              `json:"sort_order"`
	Kind                   string           `json:"kind"`
	Description            string           `json:"description"`
	Unit                   string           `json:"unit"`
	CatalogRef             string           `json:"catalog_ref"`
	Quantity               decimal.Decimal  `json:"quantity"`
	BaseQuantity           *decimal.Decimal `json:"base_quantity"`
	UnitRate               decimal.Decimal  `json:"unit_rate"`
	CurrencyType           string           `json:"currency_type"`
	CurrencyRate           *decimal.Decimal `json:"currency_rate"`
	ConsumptionCoefficient decimal.Decimal  `json:"consumption_coefficient"`
	ConversionCoefficient  decimal.Decimal  `json:"conversion_coefficient"`
	DeliveryPriceType      string           `json:"delivery_price_type"`
	DeliveryAmount         *decimal.Decimal `json:"delivery_amount"`
	MaterialRole           string           `json:"material_role,omitempty"`
	Generation             int              `json:"generation"`
	TotalAmount            decimal.Decimal  `json:"total_amount"`
}

func newItemView(it services.BOQItem) itemView {
	v := itemView{
		ID:                     it.ID,
		PositionID:             it.PositionID,
		SortOrder:              it.SortOrder,
		Kind:                   string(it.Kind),
		Description:            it.Description,
		Unit:                   it.Unit,
		CatalogRef:             it.CatalogRef,
		Quantity:               it.Quantity,
		BaseQuantity:           it.BaseQuantity,
		UnitRate:               it.UnitRate,
		CurrencyType:           string(it.CurrencyType),
		CurrencyRate:           it.CurrencyRate,
		ConsumptionCoefficient: it.ConsumptionCoefficient,
		ConversionCoefficient:  it.ConversionCoefficient,
		DeliveryPriceType:      string(it.DeliveryPriceType),
		DeliveryAmount:         it.DeliveryAmount,
		Generation:             it.Generation,
		TotalAmount:            it.TotalAmount,
	}
	if it.Kind.IsMaterialLike() {
		v.MaterialRole = string(it.MaterialRole)
	}
	return v
}

type linkView struct {
	ID                      string          `json:"id"`
	PositionID              string          `json:"position"`
	WorkItemID              string          `json:"work_item_id"`
	WorkKind                string          `json:"work_kind"`
	MaterialItemID          string          `json:"material_item_id"`
	MaterialKind            string          `json:"material_kind"`
	MaterialQuantityPerWork decimal.Decimal `json:"material_quantity_per_work"`
	UsageCoefficient        decimal.Decimal `json:"usage_coefficient"`
}

func newLinkView(l services.WorkMaterialLink) linkView {
	return linkView{
		ID:                      l.ID,
		PositionID:              l.PositionID,
		WorkItemID:              l.WorkItemID,
		WorkKind:                string(l.WorkKind),
		MaterialItemID:          l.MaterialItemID,
		MaterialKind:            string(l.MaterialKind),
		MaterialQuantityPerWork: l.MaterialQuantityPerWork,
		UsageCoefficient:        l.UsageCoefficient,
	}
}
