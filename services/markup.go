package services

import (
	"github.com/shopspring/decimal"
)

// MarkupCategory selects the formula family a markup policy applies.
type MarkupCategory string

const (
	CategoryWork              MarkupCategory = "work"
	CategorySubWork           MarkupCategory = "sub_work"
	CategoryMainMaterial      MarkupCategory = "main_material"
	CategoryAuxiliaryMaterial MarkupCategory = "auxiliary_material"
	CategorySubMaterial       MarkupCategory = "sub_material"
)

// MarkupCategories lists every category in display order.
var MarkupCategories = []MarkupCategory{
	CategoryWork,
	CategorySubWork,
	CategoryMainMaterial,
	CategoryAuxiliaryMaterial,
	CategorySubMaterial,
}

// MarkupPolicy turns a base-currency, delivery-inclusive line cost into its
// client-facing amount for a category. The engine never defines percentages.
type MarkupPolicy interface {
	Apply(amount decimal.Decimal, category MarkupCategory) decimal.Decimal
}

// PercentPolicy applies a flat percentage per category. Categories without an
// entry are passed through unchanged.
type PercentPolicy map[MarkupCategory]decimal.Decimal

func (p PercentPolicy) Apply(amount decimal.Decimal, category MarkupCategory) decimal.Decimal {
	pct, ok := p[category]
	if !ok {
		return amount
	}
	factor := one.Add(pct.Div(decimal.NewFromInt(100)))
	return amount.Mul(factor)
}

// CategoryOf returns the markup category implied by an item's kind and role.
func CategoryOf(item BOQItem) MarkupCategory {
	switch item.Kind {
	case KindWork:
		return CategoryWork
	case KindSubWork:
		return CategorySubWork
	case KindSubMaterial:
		return CategorySubMaterial
	}
	if item.MaterialRole == RoleAuxiliary {
		return CategoryAuxiliaryMaterial
	}
	return CategoryMainMaterial
}

// CommercialCost returns the commercial cost carried by a line itself.
//
// A main material linked to a work keeps its raw cost (its markup is carried by
// the work); an auxiliary material linked to a work carries nothing (its whole
// commercial amount is carried by the work). Unlinked materials and every other
// category carry their own marked-up amount.
func CommercialCost(lineTotal decimal.Decimal, category MarkupCategory, linked bool, policy MarkupPolicy) decimal.Decimal {
	switch category {
	case CategoryMainMaterial:
		if linked {
			return lineTotal
		}
	case CategoryAuxiliaryMaterial:
		if linked {
			return decimal.Zero
		}
	}
	return policy.Apply(lineTotal, category)
}

// AttributedToWork returns the share of a linked material's commercial amount
// that is added to its work's commercial cost.
func AttributedToWork(lineTotal decimal.Decimal, category MarkupCategory, policy MarkupPolicy) decimal.Decimal {
	switch category {
	case CategoryMainMaterial:
		return policy.Apply(lineTotal, category).Sub(lineTotal)
	case CategoryAuxiliaryMaterial:
		return policy.Apply(lineTotal, category)
	}
	return decimal.Zero
}

// CommercialLine is the allocated client-facing cost of one line.
type CommercialLine struct {
	ItemID     string
	Category   MarkupCategory
	Commercial decimal.Decimal
}

// AllocatePosition splits every line of a position into commercial costs,
// folding linked main and auxiliary material markups into their works. The sum
// of the result always equals the sum of policy.Apply over the lines.
func AllocatePosition(summary PositionSummary, policy MarkupPolicy) []CommercialLine {
	works := make(map[string]int)
	out := make([]CommercialLine, len(summary.Lines))
	for i, l := range summary.Lines {
		out[i] = CommercialLine{ItemID: l.ItemID, Category: l.Category}
		if l.Kind.IsWorkLike() {
			works[l.ItemID] = i
		}
	}

	for i, l := range summary.Lines {
		workIdx, linked := works[l.LinkedWorkID]
		linked = linked && l.LinkedWorkID != ""
		if l.Category == CategorySubMaterial {
			linked = false
		}
		out[i].Commercial = out[i].Commercial.Add(CommercialCost(l.Total, l.Category, linked, policy))
		if linked {
			out[workIdx].Commercial = out[workIdx].Commercial.Add(AttributedToWork(l.Total, l.Category, policy))
		}
	}
	return out
}
