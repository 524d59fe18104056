package services

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

func decimalAtLeast(min decimal.Decimal, message string) validation.Rule {
	return validation.By(func(value interface{}) error {
		switch v := value.(type) {
		case decimal.Decimal:
			if v.LessThan(min) {
				return errors.New(message)
			}
		case *decimal.Decimal:
			if v != nil && v.LessThan(min) {
				return errors.New(message)
			}
		}
		return nil
	})
}

func kindValues() []interface{} {
	out := make([]interface{}, len(ItemKinds))
	for i, k := range ItemKinds {
		out[i] = k
	}
	return out
}

// normalizeItem clamps fields that have no meaning for the item's current
// shape. linked reports whether a material-like item has a work link.
func normalizeItem(item *BOQItem, linked bool) {
	if item.ConsumptionCoefficient.IsZero() {
		item.ConsumptionCoefficient = one
	}
	if item.CurrencyType == "" {
		item.CurrencyType = BaseCurrency
	}
	if item.CurrencyType.IsBase() {
		item.CurrencyRate = nil
	}
	if item.DeliveryPriceType == "" {
		item.DeliveryPriceType = DeliveryIncluded
	}
	if item.MaterialRole == "" {
		item.MaterialRole = RoleMain
	}

	switch {
	case item.Kind.IsWorkLike():
		item.BaseQuantity = nil
		item.DeliveryPriceType = DeliveryIncluded
		item.DeliveryAmount = nil
	case linked:
		item.BaseQuantity = nil
	default:
		item.ConversionCoefficient = one
		if item.BaseQuantity == nil {
			item.BaseQuantity = decimalPtr(decimal.Zero)
		}
	}

	if item.DeliveryPriceType != DeliveryFixedAmount {
		item.DeliveryAmount = nil
	}
}

// ValidateItem checks the invariants of a BOQ item before it is written.
func ValidateItem(item BOQItem) error {
	zero := decimal.Zero
	rateRules := []validation.Rule{validation.Nil}
	if !item.CurrencyType.IsBase() {
		rateRules = []validation.Rule{
			validation.NotNil,
			decimalAtLeast(decimal.New(1, -12), "must be a positive rate"),
		}
	}
	deliveryAmountRules := []validation.Rule{decimalAtLeast(zero, "must not be negative")}
	if item.DeliveryPriceType == DeliveryFixedAmount {
		deliveryAmountRules = append([]validation.Rule{validation.NotNil}, deliveryAmountRules...)
	}

	err := validation.Errors{
		"position":    validation.Validate(item.PositionID, validation.Required),
		"kind":        validation.Validate(item.Kind, validation.Required, validation.In(kindValues()...)),
		"description": validation.Validate(item.Description, validation.Required, validation.RuneLength(1, 1000)),
		"unit":        validation.Validate(item.Unit, validation.RuneLength(0, 32)),
		"catalog_ref": validation.Validate(item.CatalogRef, validation.Required.Error("a catalog reference is required for the item kind")),
		"quantity":    validation.Validate(item.Quantity, decimalAtLeast(zero, "must not be negative")),
		"base_quantity": validation.Validate(item.BaseQuantity,
			decimalAtLeast(zero, "must not be negative")),
		"unit_rate": validation.Validate(item.UnitRate, decimalAtLeast(zero, "must not be negative")),
		"currency_type": validation.Validate(item.CurrencyType, validation.Required,
			validation.In(CurrencyRUB, CurrencyUSD, CurrencyEUR, CurrencyCNY)),
		"currency_rate": validation.Validate(item.CurrencyRate, rateRules...),
		"consumption_coefficient": validation.Validate(item.ConsumptionCoefficient,
			decimalAtLeast(one, "must be at least 1")),
		"conversion_coefficient": validation.Validate(item.ConversionCoefficient,
			decimalAtLeast(zero, "must not be negative")),
		"delivery_price_type": validation.Validate(item.DeliveryPriceType, validation.Required,
			validation.In(DeliveryIncluded, DeliverySurchargePercent, DeliveryFixedAmount)),
		"delivery_amount": validation.Validate(item.DeliveryAmount, deliveryAmountRules...),
		"material_role":   validation.Validate(item.MaterialRole, validation.In(RoleMain, RoleAuxiliary)),
	}.Filter()

	return asValidationError(err)
}

// validateCoefficients checks a link's coefficient pair.
func validateCoefficients(consumption, conversion decimal.Decimal) error {
	err := validation.Errors{
		"consumption_coefficient": validation.Validate(consumption, decimalAtLeast(one, "must be at least 1")),
		"conversion_coefficient":  validation.Validate(conversion, decimalAtLeast(decimal.Zero, "must not be negative")),
	}.Filter()
	return asValidationError(err)
}
