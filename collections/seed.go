package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
)

// ── Definition structs ───────────────────────────────────────────────────

type itemDef struct {
	kind        string
	description string
	unit        string
	catalogRef  string
	quantity    float64 // works
	baseQty     float64 // unlinked materials
	unitRate    float64
	currency    string
	consumption float64
	conversion  float64
	delivery    string
	deliveryAmt float64
	role        string
	linkTo      int // 1-based index of a work in the same position, 0 = unlinked
}

type positionDef struct {
	code   string
	name   string
	unit   string
	volume float64
	items  []itemDef
}

var seedRates = map[string]float64{"usd_rate": 92.5, "eur_rate": 99.8, "cny_rate": 12.7}

var seedPositions = []positionDef{
	{
		code: "01.01", name: "Strip foundation", unit: "m3", volume: 120,
		items: []itemDef{
			{kind: "work", description: "Concrete pouring of strip foundation", unit: "m3", catalogRef: "W-0101", quantity: 120, unitRate: 1850, currency: "RUB"},
			{kind: "material", description: "Ready-mix concrete B25", unit: "m3", catalogRef: "M-2501", unitRate: 6400, currency: "RUB", consumption: 1.02, conversion: 1, delivery: "fixed_amount", deliveryAmt: 350, role: "main", linkTo: 1},
			{kind: "material", description: "Rebar A500C d12", unit: "t", catalogRef: "M-1212", unitRate: 610, currency: "USD", consumption: 1.05, conversion: 0.085, delivery: "surcharge_percent", role: "main", linkTo: 1},
			{kind: "material", description: "Tie wire", unit: "kg", catalogRef: "M-0090", unitRate: 180, currency: "RUB", consumption: 1, conversion: 0.4, role: "auxiliary", linkTo: 1},
			{kind: "sub_work", description: "Formwork rental and assembly (subcontract)", unit: "m2", catalogRef: "SW-0311", quantity: 260, unitRate: 720, currency: "RUB"},
		},
	},
	{
		code: "02.04", name: "Curtain wall glazing", unit: "m2", volume: 340,
		items: []itemDef{
			{kind: "sub_work", description: "Installation of aluminium curtain wall", unit: "m2", catalogRef: "SW-0420", quantity: 340, unitRate: 2900, currency: "RUB"},
			{kind: "sub_material", description: "Aluminium profile system", unit: "m2", catalogRef: "SM-4401", unitRate: 145, currency: "EUR", consumption: 1, conversion: 1, delivery: "surcharge_percent", linkTo: 1},
			{kind: "material", description: "Structural silicone sealant", unit: "tube", catalogRef: "M-7711", baseQty: 180, unitRate: 38, currency: "CNY", consumption: 1.1, delivery: "fixed_amount", deliveryAmt: 15, role: "auxiliary"},
		},
	},
}

// Seed populates the collections with one demo tender. It is safe to call on
// every startup because it returns early if any tender already exists. Stored
// quantities and totals of the seeded items are left for a recalculation.
func Seed(app core.App) (string, error) {
	tendersCol, err := app.FindCollectionByNameOrId("tenders")
	if err != nil {
		return "", fmt.Errorf("seed: could not find tenders collection: %w", err)
	}
	existing, err := app.FindAllRecords(tendersCol)
	if err != nil {
		return "", fmt.Errorf("seed: could not query tenders: %w", err)
	}
	if len(existing) > 0 {
		return "", nil // already seeded
	}

	log.Info().Msg("seed: tenders collection is empty, inserting seed data")

	positionsCol, err := app.FindCollectionByNameOrId("positions")
	if err != nil {
		return "", fmt.Errorf("seed: could not find positions collection: %w", err)
	}
	itemsCol, err := app.FindCollectionByNameOrId("boq_items")
	if err != nil {
		return "", fmt.Errorf("seed: could not find boq_items collection: %w", err)
	}
	linksCol, err := app.FindCollectionByNameOrId("work_material_links")
	if err != nil {
		return "", fmt.Errorf("seed: could not find work_material_links collection: %w", err)
	}

	var tenderID string
	err = app.RunInTransaction(func(txApp core.App) error {
		tender := core.NewRecord(tendersCol)
		tender.Set("title", "Warehouse complex, Building 2")
		tender.Set("client_name", "Severstroy LLC")
		for field, rate := range seedRates {
			tender.Set(field, rate)
		}
		if err := txApp.Save(tender); err != nil {
			return fmt.Errorf("seed: create tender: %w", err)
		}
		tenderID = tender.Id

		for pi, p := range seedPositions {
			position := core.NewRecord(positionsCol)
			position.Set("tender", tender.Id)
			position.Set("sort_order", pi+1)
			position.Set("code", p.code)
			position.Set("name", p.name)
			position.Set("unit", p.unit)
			position.Set("volume", p.volume)
			if err := txApp.Save(position); err != nil {
				return fmt.Errorf("seed: create position %s: %w", p.code, err)
			}

			created := make([]*core.Record, len(p.items))
			for ii, d := range p.items {
				r := core.NewRecord(itemsCol)
				setSeedItem(r, position.Id, ii+1, d, seedRates)
				if err := txApp.Save(r); err != nil {
					return fmt.Errorf("seed: create item %q: %w", d.description, err)
				}
				created[ii] = r
			}

			for ii, d := range p.items {
				if d.linkTo == 0 {
					continue
				}
				work := p.items[d.linkTo-1]
				l := core.NewRecord(linksCol)
				l.Set("position", position.Id)
				l.Set(linkColumn(work.kind), created[d.linkTo-1].Id)
				l.Set(linkColumn(d.kind), created[ii].Id)
				l.Set("material_key", created[ii].Id)
				l.Set("material_quantity_per_work", d.consumption)
				l.Set("usage_coefficient", d.conversion)
				if err := txApp.Save(l); err != nil {
					return fmt.Errorf("seed: link %q: %w", d.description, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("tender_id", tenderID).Int("positions", len(seedPositions)).Msg("seed: demo tender inserted")
	return tenderID, nil
}

func setSeedItem(r *core.Record, positionID string, sortOrder int, d itemDef, rates map[string]float64) {
	r.Set("position", positionID)
	r.Set("sort_order", sortOrder)
	r.Set("kind", d.kind)
	r.Set("description", d.description)
	r.Set("unit", d.unit)
	r.Set(catalogColumn(d.kind), d.catalogRef)
	r.Set("quantity", d.quantity)
	r.Set("unit_rate", d.unitRate)
	r.Set("currency_type", d.currency)
	if d.currency != "RUB" {
		r.Set("currency_rate", rates[currencyRateField(d.currency)])
	}

	consumption, conversion := d.consumption, d.conversion
	if consumption == 0 {
		consumption = 1
	}
	if conversion == 0 || d.linkTo == 0 {
		conversion = 1
	}
	r.Set("consumption_coefficient", consumption)
	r.Set("conversion_coefficient", conversion)

	delivery := d.delivery
	if delivery == "" || d.kind == "work" || d.kind == "sub_work" {
		delivery = "included"
	}
	r.Set("delivery_price_type", delivery)
	if delivery == "fixed_amount" {
		r.Set("delivery_amount", d.deliveryAmt)
	}

	role := d.role
	if role == "" {
		role = "main"
	}
	r.Set("material_role", role)

	if (d.kind == "material" || d.kind == "sub_material") && d.linkTo == 0 {
		r.Set("base_quantity", d.baseQty)
	}
}

func catalogColumn(kind string) string {
	return kind + "_id"
}

func linkColumn(kind string) string {
	return kind + "_boq_item_id"
}

func currencyRateField(currency string) string {
	switch currency {
	case "USD":
		return "usd_rate"
	case "EUR":
		return "eur_rate"
	case "CNY":
		return "cny_rate"
	}
	return ""
}
