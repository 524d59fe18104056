package services

import (
	"github.com/shopspring/decimal"
)

// QuantityCeiling is the largest quantity the storage layer accepts.
var QuantityCeiling = decimal.NewFromInt(100_000_000)

var one = decimal.NewFromInt(1)

// ResolveQuantity computes the effective quantity of an item.
//
// Work-like items keep the user-entered quantity. Linked material-like items
// take work.Quantity × consumption × conversion from the link, where work must
// be the freshly loaded linked work. Unlinked material-like items take
// BaseQuantity × consumption; conversion has no meaning without a work.
func ResolveQuantity(item BOQItem, link *WorkMaterialLink, work *BOQItem) (decimal.Decimal, error) {
	if item.Kind.IsWorkLike() {
		return checkCeiling(item.ID, item.Quantity)
	}

	if link != nil {
		if work == nil || work.ID != link.WorkItemID {
			return decimal.Zero, &DanglingLinkError{LinkID: link.ID, MissingID: link.WorkItemID}
		}
		q := work.Quantity.Mul(link.MaterialQuantityPerWork).Mul(link.UsageCoefficient)
		return checkCeiling(item.ID, q)
	}

	base := decimal.Zero
	if item.BaseQuantity != nil {
		base = *item.BaseQuantity
	}
	return checkCeiling(item.ID, base.Mul(item.ConsumptionCoefficient))
}

func checkCeiling(itemID string, q decimal.Decimal) (decimal.Decimal, error) {
	if q.Abs().GreaterThan(QuantityCeiling) {
		return decimal.Zero, &OverflowError{ItemID: itemID, Quantity: q}
	}
	return q, nil
}
