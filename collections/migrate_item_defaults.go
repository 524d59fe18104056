package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
)

// MigrateItemDefaults backfills engine defaults on boq_items written before the
// fields existed or through the raw records API: currency RUB without a rate,
// coefficients of 1, included delivery and the main material role. It also
// fills material_key on links that lack it. Safe to call on every startup.
func MigrateItemDefaults(app core.App) error {
	itemsCol, err := app.FindCollectionByNameOrId("boq_items")
	if err != nil {
		return fmt.Errorf("migrate_items: could not find boq_items collection: %w", err)
	}

	items, err := app.FindRecordsByFilter(
		itemsCol,
		"currency_type = '' || consumption_coefficient = 0 || delivery_price_type = '' || "+
			"(currency_type = 'RUB' && currency_rate != 0) || "+
			"(material_role = '' && (kind = 'material' || kind = 'sub_material'))",
		"",
		0, 0,
	)
	if err != nil {
		return fmt.Errorf("migrate_items: could not query items: %w", err)
	}

	fixed := 0
	for _, r := range items {
		if !backfillItem(r) {
			continue
		}
		if err := app.Save(r); err != nil {
			log.Error().Err(err).Str("item_id", r.Id).Msg("migrate_items: failed to backfill item")
			continue
		}
		fixed++
	}

	linksCol, err := app.FindCollectionByNameOrId("work_material_links")
	if err != nil {
		return fmt.Errorf("migrate_items: could not find work_material_links collection: %w", err)
	}
	links, err := app.FindRecordsByFilter(linksCol, "material_key = ''", "", 0, 0)
	if err != nil {
		return fmt.Errorf("migrate_items: could not query links: %w", err)
	}
	for _, l := range links {
		key := l.GetString("material_boq_item_id")
		if key == "" {
			key = l.GetString("sub_material_boq_item_id")
		}
		if key == "" {
			log.Warn().Str("link_id", l.Id).Msg("migrate_items: link has no material")
			continue
		}
		l.Set("material_key", key)
		if err := app.Save(l); err != nil {
			log.Error().Err(err).Str("link_id", l.Id).Msg("migrate_items: failed to backfill link")
			continue
		}
		fixed++
	}

	if fixed > 0 {
		log.Info().Int("records", fixed).Msg("migrate_items: backfilled defaults")
	}
	return nil
}

// backfillItem applies missing defaults to r and reports whether it changed.
func backfillItem(r *core.Record) bool {
	changed := false
	set := func(field string, v any) {
		r.Set(field, v)
		changed = true
	}

	if r.GetString("currency_type") == "" {
		set("currency_type", "RUB")
	}
	if r.GetString("currency_type") == "RUB" && r.GetFloat("currency_rate") != 0 {
		set("currency_rate", 0)
	}
	if r.GetFloat("consumption_coefficient") == 0 {
		set("consumption_coefficient", 1)
	}
	if r.GetString("delivery_price_type") == "" {
		set("delivery_price_type", "included")
	}
	kind := r.GetString("kind")
	if r.GetString("material_role") == "" && (kind == "material" || kind == "sub_material") {
		set("material_role", "main")
	}
	return changed
}
