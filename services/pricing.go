package services

import (
	"github.com/shopspring/decimal"
)

// LineCost is the derived cost breakdown of one BOQ line in base currency.
type LineCost struct {
	ItemID       string
	Kind         ItemKind
	Category     MarkupCategory
	LinkedWorkID string
	Quantity     decimal.Decimal
	UnitRateBase decimal.Decimal
	BaseCost     decimal.Decimal
	Delivery     decimal.Decimal
	Total        decimal.Decimal
}

// LineTotal computes quantity × base-currency unit rate + delivery for an item.
// It is the only formula used to persist a stored total and to show a live
// total, so both always agree. link and work are nil for unlinked items.
func LineTotal(item BOQItem, link *WorkMaterialLink, work *BOQItem) (LineCost, error) {
	qty, err := ResolveQuantity(item, link, work)
	if err != nil {
		return LineCost{}, err
	}

	rate, err := ToBaseCurrency(item.UnitRate, item.CurrencyType, item.CurrencyRate)
	if err != nil {
		return LineCost{}, err
	}

	base := qty.Mul(rate)
	delivery := DeliveryCost(item, qty, base)

	line := LineCost{
		ItemID:       item.ID,
		Kind:         item.Kind,
		Category:     CategoryOf(item),
		Quantity:     qty,
		UnitRateBase: rate,
		BaseCost:     base,
		Delivery:     delivery,
		Total:        base.Add(delivery),
	}
	if link != nil && item.Kind.IsMaterialLike() {
		line.LinkedWorkID = link.WorkItemID
	}
	return line, nil
}

// derive recomputes an item's persisted quantity and total from its link state.
func derive(item *BOQItem, link *WorkMaterialLink, work *BOQItem) error {
	line, err := LineTotal(*item, link, work)
	if err != nil {
		return err
	}
	item.Quantity = line.Quantity
	item.TotalAmount = line.Total
	return nil
}

// CategoryTotals holds base and commercial sums for one markup category.
type CategoryTotals struct {
	Base       decimal.Decimal
	Commercial decimal.Decimal
}

// TenderTotals is the tender-level roll-up of every position.
type TenderTotals struct {
	Positions       []PositionSummary
	BaseTotal       decimal.Decimal
	CommercialTotal decimal.Decimal
	Margin          decimal.Decimal
	MarginPercent   decimal.Decimal
	ByCategory      map[MarkupCategory]CategoryTotals
}

// CalcTenderTotals sums position summaries and allocates commercial cost with
// the given policy.
func CalcTenderTotals(positions []PositionSummary, policy MarkupPolicy) TenderTotals {
	totals := TenderTotals{
		Positions:  positions,
		ByCategory: make(map[MarkupCategory]CategoryTotals),
	}

	for _, p := range positions {
		totals.BaseTotal = totals.BaseTotal.Add(p.Total)

		bases := make(map[string]LineCost, len(p.Lines))
		for _, l := range p.Lines {
			bases[l.ItemID] = l
		}
		for _, c := range AllocatePosition(p, policy) {
			totals.CommercialTotal = totals.CommercialTotal.Add(c.Commercial)
			ct := totals.ByCategory[c.Category]
			ct.Base = ct.Base.Add(bases[c.ItemID].Total)
			ct.Commercial = ct.Commercial.Add(c.Commercial)
			totals.ByCategory[c.Category] = ct
		}
	}

	totals.Margin = totals.CommercialTotal.Sub(totals.BaseTotal)
	if !totals.CommercialTotal.IsZero() {
		totals.MarginPercent = totals.Margin.Div(totals.CommercialTotal).Mul(decimal.NewFromInt(100))
	}
	return totals
}
