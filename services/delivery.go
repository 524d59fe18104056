package services

import (
	"github.com/shopspring/decimal"
)

// DeliverySurchargeRate is the fixed share of the base line cost charged for
// surcharge_percent delivery.
var DeliverySurchargeRate = decimal.RequireFromString("0.03")

// DeliveryCost returns the delivery surcharge for a line. Work-like items never
// carry delivery. baseLineCost is quantity × unit rate in base currency.
func DeliveryCost(item BOQItem, quantity, baseLineCost decimal.Decimal) decimal.Decimal {
	if !item.Kind.IsMaterialLike() {
		return decimal.Zero
	}
	switch item.DeliveryPriceType {
	case DeliverySurchargePercent:
		return baseLineCost.Mul(DeliverySurchargeRate)
	case DeliveryFixedAmount:
		if item.DeliveryAmount == nil {
			return decimal.Zero
		}
		return item.DeliveryAmount.Mul(quantity)
	}
	return decimal.Zero
}
