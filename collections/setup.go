package collections

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
)

var itemKinds = []string{"work", "sub_work", "material", "sub_material"}

// Setup programmatically creates/ensures the tenders, positions, boq_items
// and work_material_links collections exist.
func Setup(app core.App) {
	tenders := ensureCollection(app, "tenders", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "title", Required: true})
		c.Fields.Add(&core.TextField{Name: "client_name"})
		c.Fields.Add(&core.NumberField{Name: "usd_rate", Min: floatPtr(0)})
		c.Fields.Add(&core.NumberField{Name: "eur_rate", Min: floatPtr(0)})
		c.Fields.Add(&core.NumberField{Name: "cny_rate", Min: floatPtr(0)})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
	})

	positions := ensureCollection(app, "positions", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "tender",
			Required:      true,
			CollectionId:  tenders.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "sort_order"})
		c.Fields.Add(&core.TextField{Name: "code"})
		c.Fields.Add(&core.TextField{Name: "name", Required: true})
		c.Fields.Add(&core.TextField{Name: "unit"})
		c.Fields.Add(&core.NumberField{Name: "volume"})
		c.Fields.Add(&core.NumberField{Name: "total"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_positions_tender", false, "tender, sort_order", "")
	})

	ensureCollection(app, "boq_items", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "position",
			Required:      true,
			CollectionId:  positions.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "sort_order"})
		c.Fields.Add(&core.SelectField{
			Name:      "kind",
			Required:  true,
			Values:    itemKinds,
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "description", Required: true, Max: 1000})
		c.Fields.Add(&core.TextField{Name: "unit", Max: 32})
		c.Fields.Add(&core.TextField{Name: "work_id"})
		c.Fields.Add(&core.TextField{Name: "sub_work_id"})
		c.Fields.Add(&core.TextField{Name: "material_id"})
		c.Fields.Add(&core.TextField{Name: "sub_material_id"})
		c.Fields.Add(&core.NumberField{Name: "quantity", Min: floatPtr(0), Max: floatPtr(1e8)})
		c.Fields.Add(&core.NumberField{Name: "base_quantity", Min: floatPtr(0)})
		c.Fields.Add(&core.NumberField{Name: "unit_rate", Min: floatPtr(0)})
		c.Fields.Add(&core.SelectField{
			Name:      "currency_type",
			Required:  true,
			Values:    []string{"RUB", "USD", "EUR", "CNY"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "currency_rate", Min: floatPtr(0)})
		c.Fields.Add(&core.NumberField{Name: "consumption_coefficient", Min: floatPtr(1)})
		c.Fields.Add(&core.NumberField{Name: "conversion_coefficient", Min: floatPtr(0)})
		c.Fields.Add(&core.SelectField{
			Name:      "delivery_price_type",
			Required:  true,
			Values:    []string{"included", "surcharge_percent", "fixed_amount"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "delivery_amount", Min: floatPtr(0)})
		c.Fields.Add(&core.SelectField{
			Name:      "material_role",
			Values:    []string{"main", "auxiliary"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "generation", OnlyInt: true, Min: floatPtr(0)})
		c.Fields.Add(&core.NumberField{Name: "total_amount"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_boq_items_position", false, "position, sort_order", "")
	})

	ensureCollection(app, "work_material_links", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "position",
			Required:      true,
			CollectionId:  positions.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		// Item references stay plain text so a deleted work leaves a
		// dangling link the aggregator can report.
		c.Fields.Add(&core.TextField{Name: "work_boq_item_id"})
		c.Fields.Add(&core.TextField{Name: "sub_work_boq_item_id"})
		c.Fields.Add(&core.TextField{Name: "material_boq_item_id"})
		c.Fields.Add(&core.TextField{Name: "sub_material_boq_item_id"})
		c.Fields.Add(&core.TextField{Name: "material_key", Required: true})
		c.Fields.Add(&core.NumberField{Name: "material_quantity_per_work", Min: floatPtr(1)})
		c.Fields.Add(&core.NumberField{Name: "usage_coefficient", Min: floatPtr(0)})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_links_material_key", true, "material_key", "")
		c.AddIndex("idx_links_work", false, "work_boq_item_id, sub_work_boq_item_id", "")
	})
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		log.Debug().Str("collection", name).Msg("collections: already exists, skipping creation")
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		log.Fatal().Err(err).Str("collection", name).Msg("collections: failed to create collection")
	}

	log.Info().Str("collection", name).Str("id", collection.Id).Msg("collections: created")
	return collection
}

func floatPtr(v float64) *float64 {
	return &v
}
