package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// Collection names owned by the estimator.
const (
	CollectionTenders   = "tenders"
	CollectionPositions = "positions"
	CollectionItems     = "boq_items"
	CollectionLinks     = "work_material_links"
)

var rateFields = map[CurrencyType]string{
	CurrencyUSD: "usd_rate",
	CurrencyEUR: "eur_rate",
	CurrencyCNY: "cny_rate",
}

// RecordStore implements Store on top of PocketBase collections.
type RecordStore struct {
	app core.App
}

func NewRecordStore(app core.App) *RecordStore {
	return &RecordStore{app: app}
}

func (s *RecordStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&RecordStore{app: txApp})
	})
}

// ── Tenders and positions ───────────────────────────────────────────────

func (s *RecordStore) Tender(ctx context.Context, id string) (Tender, error) {
	rec, err := s.find(CollectionTenders, id)
	if err != nil {
		return Tender{}, err
	}
	rates := make(RateTable, len(rateFields))
	for c, field := range rateFields {
		if v := rec.GetFloat(field); v > 0 {
			rates[c] = decimal.NewFromFloat(v)
		}
	}
	return Tender{
		ID:         rec.Id,
		Title:      rec.GetString("title"),
		ClientName: rec.GetString("client_name"),
		Rates:      rates,
	}, nil
}

func (s *RecordStore) UpdateTenderRates(ctx context.Context, tenderID string, rates RateTable) error {
	rec, err := s.find(CollectionTenders, tenderID)
	if err != nil {
		return err
	}
	for c, field := range rateFields {
		rec.Set(field, rates[c].InexactFloat64())
	}
	return s.app.SaveWithContext(ctx, rec)
}

func (s *RecordStore) Position(ctx context.Context, id string) (Position, error) {
	rec, err := s.find(CollectionPositions, id)
	if err != nil {
		return Position{}, err
	}
	return decodePosition(rec), nil
}

func (s *RecordStore) PositionsByTender(ctx context.Context, tenderID string) ([]Position, error) {
	recs, err := s.app.FindRecordsByFilter(CollectionPositions, "tender = {:tenderId}", "sort_order", 0, 0,
		dbx.Params{"tenderId": tenderID})
	if err != nil {
		return nil, fmt.Errorf("query positions of tender %s: %w", tenderID, err)
	}
	out := make([]Position, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodePosition(rec))
	}
	return out, nil
}

func (s *RecordStore) UpdatePositionTotal(ctx context.Context, positionID string, total decimal.Decimal) error {
	rec, err := s.find(CollectionPositions, positionID)
	if err != nil {
		return err
	}
	rec.Set("total", total.InexactFloat64())
	return s.app.SaveWithContext(ctx, rec)
}

func decodePosition(rec *core.Record) Position {
	return Position{
		ID:        rec.Id,
		TenderID:  rec.GetString("tender"),
		SortOrder: rec.GetInt("sort_order"),
		Code:      rec.GetString("code"),
		Name:      rec.GetString("name"),
		Unit:      rec.GetString("unit"),
		Volume:    decimal.NewFromFloat(rec.GetFloat("volume")),
		Total:     decimal.NewFromFloat(rec.GetFloat("total")),
	}
}

// ── Items ───────────────────────────────────────────────────────────────

func (s *RecordStore) Item(ctx context.Context, id string) (BOQItem, error) {
	rec, err := s.find(CollectionItems, id)
	if err != nil {
		return BOQItem{}, err
	}
	return decodeItem(rec), nil
}

func (s *RecordStore) ItemsByPosition(ctx context.Context, positionID string) ([]BOQItem, error) {
	recs, err := s.app.FindRecordsByFilter(CollectionItems, "position = {:positionId}", "sort_order,created", 0, 0,
		dbx.Params{"positionId": positionID})
	if err != nil {
		return nil, fmt.Errorf("query items of position %s: %w", positionID, err)
	}
	out := make([]BOQItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeItem(rec))
	}
	return out, nil
}

func (s *RecordStore) CreateItem(ctx context.Context, item *BOQItem) error {
	col, err := s.app.FindCollectionByNameOrId(CollectionItems)
	if err != nil {
		return fmt.Errorf("collection %s: %w", CollectionItems, err)
	}
	rec := core.NewRecord(col)
	encodeItem(rec, item)
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	item.ID = rec.Id
	return nil
}

func (s *RecordStore) UpdateItem(ctx context.Context, item *BOQItem) error {
	rec, err := s.find(CollectionItems, item.ID)
	if err != nil {
		return err
	}
	encodeItem(rec, item)
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return nil
}

func decodeItem(rec *core.Record) BOQItem {
	kind := ItemKind(rec.GetString("kind"))
	return BOQItem{
		ID:                     rec.Id,
		PositionID:             rec.GetString("position"),
		SortOrder:              rec.GetInt("sort_order"),
		Kind:                   kind,
		Description:            rec.GetString("description"),
		Unit:                   rec.GetString("unit"),
		CatalogRef:             rec.GetString(kind.CatalogField()),
		Quantity:               decimal.NewFromFloat(rec.GetFloat("quantity")),
		BaseQuantity:           optionalDecimal(rec, "base_quantity"),
		UnitRate:               decimal.NewFromFloat(rec.GetFloat("unit_rate")),
		CurrencyType:           CurrencyType(rec.GetString("currency_type")),
		CurrencyRate:           optionalDecimal(rec, "currency_rate"),
		ConsumptionCoefficient: decimal.NewFromFloat(rec.GetFloat("consumption_coefficient")),
		ConversionCoefficient:  decimal.NewFromFloat(rec.GetFloat("conversion_coefficient")),
		DeliveryPriceType:      DeliveryPriceType(rec.GetString("delivery_price_type")),
		DeliveryAmount:         optionalDecimal(rec, "delivery_amount"),
		MaterialRole:           MaterialRole(rec.GetString("material_role")),
		Generation:             rec.GetInt("generation"),
		TotalAmount:            decimal.NewFromFloat(rec.GetFloat("total_amount")),
	}
}

// encodeItem writes item onto rec. Only the catalog column matching the kind
// keeps a value, so exactly one reference is ever stored.
func encodeItem(rec *core.Record, item *BOQItem) {
	rec.Set("position", item.PositionID)
	rec.Set("sort_order", item.SortOrder)
	rec.Set("kind", string(item.Kind))
	rec.Set("description", item.Description)
	rec.Set("unit", item.Unit)
	for _, k := range ItemKinds {
		if k == item.Kind {
			rec.Set(k.CatalogField(), item.CatalogRef)
		} else {
			rec.Set(k.CatalogField(), "")
		}
	}
	rec.Set("quantity", item.Quantity.InexactFloat64())
	rec.Set("base_quantity", floatOrZero(item.BaseQuantity))
	rec.Set("unit_rate", item.UnitRate.InexactFloat64())
	rec.Set("currency_type", string(item.CurrencyType))
	rec.Set("currency_rate", floatOrZero(item.CurrencyRate))
	rec.Set("consumption_coefficient", item.ConsumptionCoefficient.InexactFloat64())
	rec.Set("conversion_coefficient", item.ConversionCoefficient.InexactFloat64())
	rec.Set("delivery_price_type", string(item.DeliveryPriceType))
	rec.Set("delivery_amount", floatOrZero(item.DeliveryAmount))
	rec.Set("material_role", string(item.MaterialRole))
	rec.Set("generation", item.Generation)
	rec.Set("total_amount", item.TotalAmount.InexactFloat64())
}

// ── Links ───────────────────────────────────────────────────────────────

func (s *RecordStore) Link(ctx context.Context, id string) (WorkMaterialLink, error) {
	rec, err := s.find(CollectionLinks, id)
	if err != nil {
		return WorkMaterialLink{}, err
	}
	return decodeLink(rec), nil
}

func (s *RecordStore) LinkByMaterial(ctx context.Context, materialID string) (*WorkMaterialLink, error) {
	rec, err := s.app.FindFirstRecordByFilter(CollectionLinks, "material_key = {:id}", dbx.Params{"id": materialID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query link of material %s: %w", materialID, err)
	}
	link := decodeLink(rec)
	return &link, nil
}

func (s *RecordStore) LinksByWork(ctx context.Context, workID string) ([]WorkMaterialLink, error) {
	return s.findLinks("work_boq_item_id = {:id} || sub_work_boq_item_id = {:id}", dbx.Params{"id": workID})
}

func (s *RecordStore) LinksByPosition(ctx context.Context, positionID string) ([]WorkMaterialLink, error) {
	return s.findLinks("position = {:id}", dbx.Params{"id": positionID})
}

func (s *RecordStore) findLinks(filter string, params dbx.Params) ([]WorkMaterialLink, error) {
	recs, err := s.app.FindRecordsByFilter(CollectionLinks, filter, "created", 0, 0, params)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	out := make([]WorkMaterialLink, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeLink(rec))
	}
	return out, nil
}

func (s *RecordStore) CreateLink(ctx context.Context, link *WorkMaterialLink) error {
	col, err := s.app.FindCollectionByNameOrId(CollectionLinks)
	if err != nil {
		return fmt.Errorf("collection %s: %w", CollectionLinks, err)
	}
	rec := core.NewRecord(col)
	if err := encodeLink(rec, link); err != nil {
		return err
	}
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		if isUniqueViolation(err) {
			return ErrLinkExists
		}
		return fmt.Errorf("create link: %w", err)
	}
	link.ID = rec.Id
	return nil
}

func (s *RecordStore) UpdateLink(ctx context.Context, link *WorkMaterialLink) error {
	rec, err := s.find(CollectionLinks, link.ID)
	if err != nil {
		return err
	}
	if err := encodeLink(rec, link); err != nil {
		return err
	}
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		if isUniqueViolation(err) {
			return ErrLinkExists
		}
		return fmt.Errorf("update link %s: %w", link.ID, err)
	}
	return nil
}

func (s *RecordStore) DeleteLink(ctx context.Context, id string) error {
	rec, err := s.find(CollectionLinks, id)
	if err != nil {
		return err
	}
	return s.app.DeleteWithContext(ctx, rec)
}

func decodeLink(rec *core.Record) WorkMaterialLink {
	link := WorkMaterialLink{
		ID:                      rec.Id,
		PositionID:              rec.GetString("position"),
		MaterialQuantityPerWork: decimal.NewFromFloat(rec.GetFloat("material_quantity_per_work")),
		UsageCoefficient:        decimal.NewFromFloat(rec.GetFloat("usage_coefficient")),
	}
	if id := rec.GetString("work_boq_item_id"); id != "" {
		link.WorkItemID, link.WorkKind = id, KindWork
	} else {
		link.WorkItemID, link.WorkKind = rec.GetString("sub_work_boq_item_id"), KindSubWork
	}
	if id := rec.GetString("material_boq_item_id"); id != "" {
		link.MaterialItemID, link.MaterialKind = id, KindMaterial
	} else {
		link.MaterialItemID, link.MaterialKind = rec.GetString("sub_material_boq_item_id"), KindSubMaterial
	}
	return link
}

func encodeLink(rec *core.Record, link *WorkMaterialLink) error {
	shape, err := LinkShapeFor(link.WorkKind, link.MaterialKind)
	if err != nil {
		return err
	}
	for _, col := range linkColumns {
		rec.Set(col, "")
	}
	rec.Set("position", link.PositionID)
	rec.Set(shape.WorkColumn, link.WorkItemID)
	rec.Set(shape.MaterialColumn, link.MaterialItemID)
	rec.Set("material_key", link.MaterialItemID)
	rec.Set("material_quantity_per_work", link.MaterialQuantityPerWork.InexactFloat64())
	rec.Set("usage_coefficient", link.UsageCoefficient.InexactFloat64())
	return nil
}

// ── helpers ─────────────────────────────────────────────────────────────

func (s *RecordStore) find(collection, id string) (*core.Record, error) {
	rec, err := s.app.FindRecordById(collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", collection, id, err)
	}
	return rec, nil
}

func optionalDecimal(rec *core.Record, field string) *decimal.Decimal {
	v := rec.GetFloat(field)
	if v == 0 {
		return nil
	}
	return decimalPtr(decimal.NewFromFloat(v))
}

func floatOrZero(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}

func isUniqueViolation(err error) bool {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, fieldErr := range errs {
			var ve validation.Error
			if errors.As(fieldErr, &ve) && ve.Code() == "validation_not_unique" {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
