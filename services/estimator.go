package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Enqueuer accepts background reconciliation of the materials linked to a
// work at a given generation.
type Enqueuer interface {
	Enqueue(workID string, generation int)
}

// LinkChange sets (WorkItemID non-empty) or clears the work association of a
// material in the same edit.
type LinkChange struct {
	WorkItemID string
}

// ItemInput is a partial edit of a BOQ item. Nil fields keep their value.
type ItemInput struct {
	Kind                   ItemKind
	SortOrder              *int
	Description            *string
	Unit                   *string
	CatalogRef             *string
	Quantity               *decimal.Decimal
	BaseQuantity           *decimal.Decimal
	UnitRate               *decimal.Decimal
	CurrencyType           *CurrencyType
	ConsumptionCoefficient *decimal.Decimal
	ConversionCoefficient  *decimal.Decimal
	DeliveryPriceType      *DeliveryPriceType
	DeliveryAmount         *decimal.Decimal
	MaterialRole           *MaterialRole
	Link                   *LinkChange
}

// TenderReport is a tender with every position re-derived and rolled up.
type TenderReport struct {
	Tender    Tender
	Positions []Position
	Items     map[string][]BOQItem
	Totals    TenderTotals
}

// RecalcResult reports what a full recalculation rewrote.
type RecalcResult struct {
	Positions int
	Items     int
	Updated   int
	Failures  []LineFailure
	Warnings  []*DanglingLinkError
}

// Estimator runs every edit of the engine: link mutation first, then quantity
// resolution, currency snapshot, line total and persistence, all in one store
// transaction.
type Estimator struct {
	store  Store
	graph  *LinkGraph
	queue  Enqueuer
	policy MarkupPolicy
}

// NewEstimator wires the engine. queue may be nil, in which case dependent
// materials are only refreshed by Recalc.
func NewEstimator(store Store, queue Enqueuer, policy MarkupPolicy) *Estimator {
	if policy == nil {
		policy = PercentPolicy{}
	}
	return &Estimator{store: store, graph: NewLinkGraph(store), queue: queue, policy: policy}
}

func (e *Estimator) Graph() *LinkGraph { return e.graph }

func (e *Estimator) Policy() MarkupPolicy { return e.policy }

// CreateItem adds an item to a position, optionally linked to a work.
func (e *Estimator) CreateItem(ctx context.Context, positionID string, in ItemInput) (BOQItem, error) {
	if !in.Kind.Valid() {
		return BOQItem{}, newValidationError("kind", fmt.Sprintf("unknown kind %q", in.Kind))
	}

	var out BOQItem
	var reconcile bool
	err := e.store.RunInTransaction(ctx, func(tx Store) error {
		if _, err := tx.Position(ctx, positionID); err != nil {
			return err
		}
		item := NewBOQItem(positionID, in.Kind)
		var err error
		reconcile, err = e.save(ctx, tx, &item, in, true)
		out = item
		return err
	})
	if err != nil {
		return BOQItem{}, err
	}
	e.afterCommit(out, reconcile)
	return out, nil
}

// UpdateItem applies a partial edit. A kind change must go through Reclassify.
func (e *Estimator) UpdateItem(ctx context.Context, itemID string, in ItemInput) (BOQItem, error) {
	var out BOQItem
	var reconcile bool
	err := e.store.RunInTransaction(ctx, func(tx Store) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if in.Kind != "" && in.Kind != item.Kind {
			return newValidationError("kind", "use reclassify to change the kind of an item")
		}
		reconcile, err = e.save(ctx, tx, &item, in, false)
		out = item
		return err
	})
	if err != nil {
		return BOQItem{}, err
	}
	e.afterCommit(out, reconcile)
	return out, nil
}

// save runs the edit pipeline inside tx and reports whether dependent
// materials need background reconciliation.
func (e *Estimator) save(ctx context.Context, tx Store, item *BOQItem, in ItemInput, isNew bool) (bool, error) {
	prevQuantity := item.Quantity
	prevCurrency := item.CurrencyType
	applyInput(item, in)

	if in.Link != nil && in.Link.WorkItemID != "" && !item.Kind.IsMaterialLike() {
		return false, newValidationError("work_item", "only materials can be linked to a work")
	}

	if err := e.snapshotRate(ctx, tx, item, prevCurrency, isNew); err != nil {
		return false, err
	}

	var current *WorkMaterialLink
	if !isNew && item.Kind.IsMaterialLike() {
		var err error
		current, err = tx.LinkByMaterial(ctx, item.ID)
		if err != nil {
			return false, err
		}
		if current != nil {
			dropped, err := dropIfDangling(ctx, tx, *current)
			if err != nil {
				return false, err
			}
			if dropped {
				if in.BaseQuantity == nil && in.Quantity == nil {
					detachMaterial(item)
				}
				current = nil
			}
		}
	}
	target := ""
	if current != nil {
		target = current.WorkItemID
	}
	if in.Link != nil {
		target = in.Link.WorkItemID
	}
	if current != nil && target == "" && in.BaseQuantity == nil && in.Quantity == nil {
		detachMaterial(item)
	}

	normalizeItem(item, target != "")
	if err := ValidateItem(*item); err != nil {
		return false, err
	}

	if isNew {
		if err := tx.CreateItem(ctx, item); err != nil {
			return false, err
		}
	}

	// The link is settled before the quantity is resolved.
	link, work, err := e.settleLink(ctx, tx, item, current, target)
	if err != nil {
		return false, err
	}
	if err := derive(item, link, work); err != nil {
		return false, err
	}

	reconcile := false
	if !isNew && item.Kind.IsWorkLike() && !item.Quantity.Equal(prevQuantity) {
		if err := checkDependents(ctx, tx, item); err != nil {
			return false, err
		}
		item.Generation++
		reconcile = true
	}

	if err := tx.UpdateItem(ctx, item); err != nil {
		return false, err
	}
	if _, err := refreshPosition(ctx, tx, item.PositionID); err != nil {
		return false, err
	}
	return reconcile, nil
}

func applyInput(item *BOQItem, in ItemInput) {
	if in.SortOrder != nil {
		item.SortOrder = *in.SortOrder
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Unit != nil {
		item.Unit = *in.Unit
	}
	if in.CatalogRef != nil {
		item.CatalogRef = *in.CatalogRef
	}
	if in.Quantity != nil {
		if item.Kind.IsMaterialLike() && in.BaseQuantity == nil {
			item.BaseQuantity = decimalPtr(*in.Quantity)
		} else {
			item.Quantity = *in.Quantity
		}
	}
	if in.BaseQuantity != nil {
		item.BaseQuantity = decimalPtr(*in.BaseQuantity)
	}
	if in.UnitRate != nil {
		item.UnitRate = *in.UnitRate
	}
	if in.CurrencyType != nil {
		item.CurrencyType = *in.CurrencyType
	}
	if in.ConsumptionCoefficient != nil {
		item.ConsumptionCoefficient = *in.ConsumptionCoefficient
	}
	if in.ConversionCoefficient != nil {
		item.ConversionCoefficient = *in.ConversionCoefficient
	}
	if in.DeliveryPriceType != nil {
		item.DeliveryPriceType = *in.DeliveryPriceType
	}
	if in.DeliveryAmount != nil {
		item.DeliveryAmount = decimalPtr(*in.DeliveryAmount)
	}
	if in.MaterialRole != nil {
		item.MaterialRole = *in.MaterialRole
	}
}

// snapshotRate copies the tender's rate onto the item when the currency is
// new or changed, or when a foreign item has no rate yet. Rates are never
// looked up at read time.
func (e *Estimator) snapshotRate(ctx context.Context, tx Store, item *BOQItem, prev CurrencyType, isNew bool) error {
	if item.CurrencyType == "" {
		item.CurrencyType = BaseCurrency
	}
	if !isNew && item.CurrencyType == prev && (item.CurrencyType.IsBase() || item.CurrencyRate != nil) {
		return nil
	}
	position, err := tx.Position(ctx, item.PositionID)
	if err != nil {
		return err
	}
	tender, err := tx.Tender(ctx, position.TenderID)
	if err != nil {
		return err
	}
	rate, err := tender.Rates.Resolve(item.CurrencyType)
	if err != nil {
		return err
	}
	item.CurrencyRate = rate
	return nil
}

// settleLink brings the link of item in line with target and returns the
// link and freshly loaded work to resolve against.
func (e *Estimator) settleLink(ctx context.Context, tx Store, item *BOQItem, current *WorkMaterialLink, target string) (*WorkMaterialLink, *BOQItem, error) {
	if !item.Kind.IsMaterialLike() {
		return nil, nil, nil
	}

	if current != nil && current.WorkItemID == target {
		work, err := loadLinkedWork(ctx, tx, *current)
		if err != nil {
			return nil, nil, err
		}
		link := *current
		if !link.MaterialQuantityPerWork.Equal(item.ConsumptionCoefficient) || !link.UsageCoefficient.Equal(item.ConversionCoefficient) {
			link.MaterialQuantityPerWork = item.ConsumptionCoefficient
			link.UsageCoefficient = item.ConversionCoefficient
			if err := tx.UpdateLink(ctx, &link); err != nil {
				return nil, nil, err
			}
		}
		return &link, &work, nil
	}

	if current != nil {
		if err := tx.DeleteLink(ctx, current.ID); err != nil {
			return nil, nil, err
		}
	}
	if target == "" {
		return nil, nil, nil
	}

	work, err := tx.Item(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	link, err := NewLinkGraph(tx).CreateLink(ctx, work, *item, item.ConsumptionCoefficient, item.ConversionCoefficient)
	if err != nil {
		return nil, nil, err
	}
	return &link, &work, nil
}

// checkDependents rejects a work quantity that would push any linked material
// over the quantity ceiling.
func checkDependents(ctx context.Context, tx Store, work *BOQItem) error {
	links, err := tx.LinksByWork(ctx, work.ID)
	if err != nil {
		return err
	}
	for i := range links {
		material, err := tx.Item(ctx, links[i].MaterialItemID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := ResolveQuantity(material, &links[i], work); err != nil {
			return err
		}
	}
	return nil
}

func (e *Estimator) afterCommit(item BOQItem, reconcile bool) {
	if !reconcile || e.queue == nil {
		return
	}
	e.queue.Enqueue(item.ID, item.Generation)
}

// Unlink turns a linked material back into an unlinked one.
func (e *Estimator) Unlink(ctx context.Context, materialID string) (BOQItem, error) {
	return e.graph.Unlink(ctx, materialID)
}

// Reclassify changes an item's kind and rebuilds its links.
func (e *Estimator) Reclassify(ctx context.Context, itemID string, kind ItemKind) (BOQItem, error) {
	return e.graph.Reclassify(ctx, itemID, kind)
}

// UpdateLinkCoefficients changes a link's coefficients and re-derives its material.
func (e *Estimator) UpdateLinkCoefficients(ctx context.Context, linkID string, consumption, conversion decimal.Decimal) (BOQItem, error) {
	return e.graph.UpdateLinkCoefficients(ctx, linkID, consumption, conversion)
}

// PositionSummary re-derives a position total from current link state.
func (e *Estimator) PositionSummary(ctx context.Context, positionID string) (PositionSummary, error) {
	if _, err := e.store.Position(ctx, positionID); err != nil {
		return PositionSummary{}, err
	}
	items, err := e.store.ItemsByPosition(ctx, positionID)
	if err != nil {
		return PositionSummary{}, err
	}
	links, err := e.store.LinksByPosition(ctx, positionID)
	if err != nil {
		return PositionSummary{}, err
	}
	return PositionTotal(positionID, items, links), nil
}

// TenderReport re-derives every position of a tender and rolls the result up
// with the estimator's markup policy.
func (e *Estimator) TenderReport(ctx context.Context, tenderID string) (TenderReport, error) {
	tender, err := e.store.Tender(ctx, tenderID)
	if err != nil {
		return TenderReport{}, err
	}
	positions, err := e.store.PositionsByTender(ctx, tenderID)
	if err != nil {
		return TenderReport{}, err
	}

	report := TenderReport{
		Tender:    tender,
		Positions: positions,
		Items:     make(map[string][]BOQItem, len(positions)),
	}
	summaries := make([]PositionSummary, 0, len(positions))
	for _, p := range positions {
		items, err := e.store.ItemsByPosition(ctx, p.ID)
		if err != nil {
			return TenderReport{}, err
		}
		links, err := e.store.LinksByPosition(ctx, p.ID)
		if err != nil {
			return TenderReport{}, err
		}
		report.Items[p.ID] = items
		summaries = append(summaries, PositionTotal(p.ID, items, links))
	}
	report.Totals = CalcTenderTotals(summaries, e.policy)
	return report, nil
}

// UpdateRates replaces the tender's rate table. Existing items keep their
// snapshots; only later writes see the new rates.
func (e *Estimator) UpdateRates(ctx context.Context, tenderID string, rates RateTable) error {
	fields := make(map[string]string)
	for c, r := range rates {
		switch {
		case c.IsBase():
			fields[string(c)] = "the base currency has no rate"
		case !c.Valid():
			fields[string(c)] = "unsupported currency"
		case r.IsNegative():
			fields[string(c)] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return e.store.UpdateTenderRates(ctx, tenderID, rates)
}

// Recalc re-derives and persists every item total and position cache of a
// tender. Lines that cannot be priced are reported and left untouched.
func (e *Estimator) Recalc(ctx context.Context, tenderID string) (RecalcResult, error) {
	positions, err := e.store.PositionsByTender(ctx, tenderID)
	if err != nil {
		return RecalcResult{}, err
	}

	var result RecalcResult
	for _, p := range positions {
		err := e.store.RunInTransaction(ctx, func(tx Store) error {
			items, err := tx.ItemsByPosition(ctx, p.ID)
			if err != nil {
				return err
			}
			links, err := tx.LinksByPosition(ctx, p.ID)
			if err != nil {
				return err
			}
			summary := PositionTotal(p.ID, items, links)
			lines := make(map[string]LineCost, len(summary.Lines))
			for _, l := range summary.Lines {
				lines[l.ItemID] = l
			}

			for i := range items {
				line, ok := lines[items[i].ID]
				if !ok {
					continue
				}
				if items[i].Quantity.Equal(line.Quantity) && items[i].TotalAmount.Equal(line.Total) {
					continue
				}
				items[i].Quantity = line.Quantity
				items[i].TotalAmount = line.Total
				if err := tx.UpdateItem(ctx, &items[i]); err != nil {
					return err
				}
				result.Updated++
			}
			result.Items += len(items)
			result.Failures = append(result.Failures, summary.Failures...)
			result.Warnings = append(result.Warnings, summary.Warnings...)
			return tx.UpdatePositionTotal(ctx, p.ID, summary.Total)
		})
		if err != nil {
			return result, fmt.Errorf("recalc position %s: %w", p.ID, err)
		}
		result.Positions++
	}

	log.Info().
		Str("tender_id", tenderID).
		Int("positions", result.Positions).
		Int("updated", result.Updated).
		Int("failures", len(result.Failures)).
		Msg("estimator: recalc finished")
	return result, nil
}
