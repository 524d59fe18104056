package services

import (
	"github.com/shopspring/decimal"
)

// LineFailure records a line that could not be priced during aggregation.
type LineFailure struct {
	ItemID string
	Err    error
}

// PositionSummary is a position total re-derived from current link state.
type PositionSummary struct {
	PositionID string
	Lines      []LineCost
	Total      decimal.Decimal
	Warnings   []*DanglingLinkError
	Failures   []LineFailure
}

// Complete reports whether every line of the position was priced.
func (s PositionSummary) Complete() bool {
	return len(s.Failures) == 0
}

// PositionTotal sums LineTotal over every item of a position. It never trusts
// stored quantities or totals of linked materials: each is re-derived from the
// link and the linked work as they are now.
//
// A link whose work is gone is reported as a warning and its material is
// presented as unlinked. Lines that cannot be priced are reported in Failures
// and left out of Total instead of failing the whole position.
func PositionTotal(positionID string, items []BOQItem, links []WorkMaterialLink) PositionSummary {
	summary := PositionSummary{PositionID: positionID}

	byID := make(map[string]*BOQItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	byMaterial := make(map[string]*WorkMaterialLink, len(links))
	for i := range links {
		l := &links[i]
		if _, ok := byID[l.MaterialItemID]; !ok {
			summary.Warnings = append(summary.Warnings, &DanglingLinkError{LinkID: l.ID, MissingID: l.MaterialItemID})
			continue
		}
		byMaterial[l.MaterialItemID] = l
	}

	for _, item := range items {
		var link *WorkMaterialLink
		var work *BOQItem
		if item.Kind.IsMaterialLike() {
			if l, ok := byMaterial[item.ID]; ok {
				if w, ok := byID[l.WorkItemID]; ok && w.Kind.IsWorkLike() {
					link, work = l, w
				} else {
					summary.Warnings = append(summary.Warnings, &DanglingLinkError{LinkID: l.ID, MissingID: l.WorkItemID})
					item = presentUnlinked(item)
				}
			}
		}

		line, err := LineTotal(item, link, work)
		if err != nil {
			summary.Failures = append(summary.Failures, LineFailure{ItemID: item.ID, Err: err})
			continue
		}
		summary.Lines = append(summary.Lines, line)
		summary.Total = summary.Total.Add(line.Total)
	}

	return summary
}

// presentUnlinked shapes a material whose work is gone so that it resolves to
// its last persisted quantity, the same way Unlink leaves it.
func presentUnlinked(item BOQItem) BOQItem {
	detachMaterial(&item)
	return item
}
