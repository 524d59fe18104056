package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var linkColumns = []string{
	"work_boq_item_id",
	"sub_work_boq_item_id",
	"material_boq_item_id",
	"sub_material_boq_item_id",
}

// LinkShape names the foreign key columns a link populates. It is fixed by the
// kinds of both sides, so a kind change always means a new link row.
type LinkShape struct {
	WorkColumn     string
	MaterialColumn string
}

// LinkShapeFor resolves the 2×2 dispatch from (work kind, material kind) to
// the populated columns.
func LinkShapeFor(workKind, materialKind ItemKind) (LinkShape, error) {
	var shape LinkShape
	switch workKind {
	case KindWork:
		shape.WorkColumn = "work_boq_item_id"
	case KindSubWork:
		shape.WorkColumn = "sub_work_boq_item_id"
	default:
		return LinkShape{}, newValidationError("work_item", fmt.Sprintf("kind %q cannot own materials", workKind))
	}
	switch materialKind {
	case KindMaterial:
		shape.MaterialColumn = "material_boq_item_id"
	case KindSubMaterial:
		shape.MaterialColumn = "sub_material_boq_item_id"
	default:
		return LinkShape{}, newValidationError("material_item", fmt.Sprintf("kind %q cannot be linked to a work", materialKind))
	}
	return shape, nil
}

// LinkGraph mutates work/material associations. Every exported operation that
// writes more than one row runs in a single store transaction and refreshes
// the position cache before it commits.
type LinkGraph struct {
	store Store
}

func NewLinkGraph(store Store) *LinkGraph {
	return &LinkGraph{store: store}
}

// CreateLink associates material with work. It fails with ErrLinkExists when
// the material already has a link and writes nothing in that case. The
// material row itself is left to the caller.
func (g *LinkGraph) CreateLink(ctx context.Context, work, material BOQItem, consumption, conversion decimal.Decimal) (WorkMaterialLink, error) {
	if !work.Kind.IsWorkLike() {
		return WorkMaterialLink{}, newValidationError("work_item", "linked item must be a work or sub-work")
	}
	if !material.Kind.IsMaterialLike() {
		return WorkMaterialLink{}, newValidationError("material_item", "only materials and sub-materials can be linked")
	}
	if work.PositionID != material.PositionID {
		return WorkMaterialLink{}, newValidationError("work_item", "work and material must belong to the same position")
	}
	if err := validateCoefficients(consumption, conversion); err != nil {
		return WorkMaterialLink{}, err
	}

	existing, err := g.store.LinkByMaterial(ctx, material.ID)
	if err != nil {
		return WorkMaterialLink{}, err
	}
	if existing != nil {
		return WorkMaterialLink{}, ErrLinkExists
	}

	link := WorkMaterialLink{
		PositionID:              material.PositionID,
		WorkItemID:              work.ID,
		WorkKind:                work.Kind,
		MaterialItemID:          material.ID,
		MaterialKind:            material.Kind,
		MaterialQuantityPerWork: consumption,
		UsageCoefficient:        conversion,
	}
	if err := g.store.CreateLink(ctx, &link); err != nil {
		return WorkMaterialLink{}, err
	}
	return link, nil
}

// DeleteLink removes the association row only. Use Unlink to also turn the
// material back into an unlinked item.
func (g *LinkGraph) DeleteLink(ctx context.Context, linkID string) error {
	return g.store.DeleteLink(ctx, linkID)
}

// Unlink converts a linked material into an unlinked one that keeps its last
// derived quantity. Conversion is reset to 1 and the link is deleted. An already unlinked material is returned unchanged.
func (g *LinkGraph) Unlink(ctx context.Context, materialID string) (BOQItem, error) {
	var out BOQItem
	err := g.store.RunInTransaction(ctx, func(tx Store) error {
		material, err := tx.Item(ctx, materialID)
		if err != nil {
			return err
		}
		if !material.Kind.IsMaterialLike() {
			return newValidationError("kind", "only materials can be unlinked")
		}
		link, err := tx.LinkByMaterial(ctx, material.ID)
		if err != nil {
			return err
		}
		if link == nil {
			out = material
			return nil
		}

		detachMaterial(&material)
		if err := derive(&material, nil, nil); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, &material); err != nil {
			return err
		}
		if err := tx.DeleteLink(ctx, link.ID); err != nil {
			return err
		}
		if _, err := refreshPosition(ctx, tx, material.PositionID); err != nil {
			return err
		}
		out = material
		return nil
	})
	return out, err
}

// detachMaterial rewrites a material that is losing its link so that it
// still resolves to its last derived quantity: base × consumption must equal
// Quantity. When the division by consumption is not exact the consumption
// falls back to 1 and the quantity itself becomes the base.
func detachMaterial(material *BOQItem) {
	material.ConversionCoefficient = one
	base := material.Quantity
	if c := material.ConsumptionCoefficient; c.IsPositive() && !c.Equal(one) {
		base = material.Quantity.DivRound(c, 12)
		if !base.Mul(c).Equal(material.Quantity) {
			base = material.Quantity
			material.ConsumptionCoefficient = one
		}
	}
	material.BaseQuantity = &base
}

// UpdateLinkCoefficients changes a link's coefficients in place and persists
// the linked material's re-derived quantity and total.
func (g *LinkGraph) UpdateLinkCoefficients(ctx context.Context, linkID string, consumption, conversion decimal.Decimal) (BOQItem, error) {
	if err := validateCoefficients(consumption, conversion); err != nil {
		return BOQItem{}, err
	}

	var out BOQItem
	var dangling *DanglingLinkError
	err := g.store.RunInTransaction(ctx, func(tx Store) error {
		link, err := tx.Link(ctx, linkID)
		if err != nil {
			return err
		}
		material, err := tx.Item(ctx, link.MaterialItemID)
		if err != nil {
			return err
		}
		work, err := loadLinkedWork(ctx, tx, link)
		if errors.As(err, &dangling) {
			// The material is kept as unlinked and the caller still
			// learns that the coefficients went nowhere.
			if _, err := dropIfDangling(ctx, tx, link); err != nil {
				return err
			}
			detachMaterial(&material)
			if err := derive(&material, nil, nil); err != nil {
				return err
			}
			if err := tx.UpdateItem(ctx, &material); err != nil {
				return err
			}
			if _, err := refreshPosition(ctx, tx, material.PositionID); err != nil {
				return err
			}
			out = material
			return nil
		}
		if err != nil {
			return err
		}

		link.MaterialQuantityPerWork = consumption
		link.UsageCoefficient = conversion
		material.ConsumptionCoefficient = consumption
		material.ConversionCoefficient = conversion
		if err := derive(&material, &link, &work); err != nil {
			return err
		}

		if err := tx.UpdateLink(ctx, &link); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, &material); err != nil {
			return err
		}
		if _, err := refreshPosition(ctx, tx, material.PositionID); err != nil {
			return err
		}
		out = material
		return nil
	})
	if err == nil && dangling != nil {
		return out, dangling
	}
	return out, err
}

// Relink moves a material to another work by deleting its current link and
// creating a new one.
func (g *LinkGraph) Relink(ctx context.Context, materialID, workID string, consumption, conversion decimal.Decimal) (WorkMaterialLink, error) {
	var out WorkMaterialLink
	err := g.store.RunInTransaction(ctx, func(tx Store) error {
		graph := NewLinkGraph(tx)
		material, err := tx.Item(ctx, materialID)
		if err != nil {
			return err
		}
		work, err := tx.Item(ctx, workID)
		if err != nil {
			return err
		}

		existing, err := tx.LinkByMaterial(ctx, material.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := tx.DeleteLink(ctx, existing.ID); err != nil {
				return err
			}
		}

		link, err := graph.CreateLink(ctx, work, material, consumption, conversion)
		if err != nil {
			return err
		}

		material.ConsumptionCoefficient = consumption
		material.ConversionCoefficient = conversion
		material.BaseQuantity = nil
		if err := derive(&material, &link, &work); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, &material); err != nil {
			return err
		}
		if _, err := refreshPosition(ctx, tx, material.PositionID); err != nil {
			return err
		}
		out = link
		return nil
	})
	return out, err
}

// Reclassify changes an item between work and sub_work, or between material
// and sub_material. The catalog reference moves to the column of the new kind
// and every link touching the item is recreated with the new shape and the
// same coefficients.
func (g *LinkGraph) Reclassify(ctx context.Context, itemID string, kind ItemKind) (BOQItem, error) {
	if !kind.Valid() {
		return BOQItem{}, newValidationError("kind", fmt.Sprintf("unknown kind %q", kind))
	}

	var out BOQItem
	err := g.store.RunInTransaction(ctx, func(tx Store) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Kind == kind {
			out = item
			return nil
		}
		if item.Kind.IsWorkLike() != kind.IsWorkLike() {
			return newValidationError("kind", "an item cannot change between work and material")
		}

		var links []WorkMaterialLink
		if item.Kind.IsWorkLike() {
			links, err = tx.LinksByWork(ctx, item.ID)
			if err != nil {
				return err
			}
		} else {
			link, err := tx.LinkByMaterial(ctx, item.ID)
			if err != nil {
				return err
			}
			if link != nil {
				links = append(links, *link)
			}
		}

		item.Kind = kind
		if err := tx.UpdateItem(ctx, &item); err != nil {
			return err
		}

		for _, l := range links {
			if err := tx.DeleteLink(ctx, l.ID); err != nil {
				return err
			}
			rebuilt := l
			rebuilt.ID = ""
			if kind.IsWorkLike() {
				rebuilt.WorkKind = kind
			} else {
				rebuilt.MaterialKind = kind
			}
			if err := tx.CreateLink(ctx, &rebuilt); err != nil {
				return fmt.Errorf("recreate link of %s: %w", rebuilt.MaterialItemID, err)
			}
		}
		out = item
		return nil
	})
	return out, err
}

// loadLinkedWork reads the work of a link fresh. A missing work is reported
// as a dangling link.
func loadLinkedWork(ctx context.Context, store Store, link WorkMaterialLink) (BOQItem, error) {
	work, err := store.Item(ctx, link.WorkItemID)
	if errors.Is(err, ErrNotFound) {
		return BOQItem{}, &DanglingLinkError{LinkID: link.ID, MissingID: link.WorkItemID}
	}
	if err != nil {
		return BOQItem{}, err
	}
	if !work.Kind.IsWorkLike() {
		return BOQItem{}, &DanglingLinkError{LinkID: link.ID, MissingID: link.WorkItemID}
	}
	return work, nil
}

// dropIfDangling deletes link when its work is gone and reports whether it
// did. The material side is left to the caller.
func dropIfDangling(ctx context.Context, tx Store, link WorkMaterialLink) (bool, error) {
	_, err := loadLinkedWork(ctx, tx, link)
	var dangling *DanglingLinkError
	if !errors.As(err, &dangling) {
		return false, err
	}
	log.Warn().
		Str("link_id", link.ID).
		Str("material_id", link.MaterialItemID).
		Str("missing_id", dangling.MissingID).
		Msg("link graph: dropping dangling link")
	if err := tx.DeleteLink(ctx, link.ID); err != nil {
		return false, err
	}
	return true, nil
}

// refreshPosition re-derives a position's total from current link state and
// stores it in the position cache.
func refreshPosition(ctx context.Context, store Store, positionID string) (PositionSummary, error) {
	items, err := store.ItemsByPosition(ctx, positionID)
	if err != nil {
		return PositionSummary{}, err
	}
	links, err := store.LinksByPosition(ctx, positionID)
	if err != nil {
		return PositionSummary{}, err
	}
	summary := PositionTotal(positionID, items, links)
	if err := store.UpdatePositionTotal(ctx, positionID, summary.Total); err != nil {
		return PositionSummary{}, err
	}
	return summary, nil
}
