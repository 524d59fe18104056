package collections_test

import (
	"testing"

	"tenderestimate/collections"
	"tenderestimate/testhelpers"

	"github.com/pocketbase/pocketbase/core"
)

// saveLegacyItem stores a boq_items row bypassing validation, as rows written
// before the engine fields existed look.
func saveLegacyItem(t *testing.T, app core.App, positionID, kind string) *core.Record {
	t.Helper()
	col, err := app.FindCollectionByNameOrId("boq_items")
	if err != nil {
		t.Fatalf("find boq_items: %v", err)
	}
	r := core.NewRecord(col)
	r.Set("position", positionID)
	r.Set("kind", kind)
	r.Set("description", "Legacy "+kind)
	r.Set(kind+"_id", "LEG-1")
	r.Set("quantity", 10)
	if err := app.SaveNoValidate(r); err != nil {
		t.Fatalf("save legacy item: %v", err)
	}
	return r
}

func TestMigrateItemDefaults_BackfillsMaterial(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Legacy Tender", nil)
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Legacy Position")
	legacy := saveLegacyItem(t, app, pos.Id, "material")

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("MigrateItemDefaults() error: %v", err)
	}

	r, err := app.FindRecordById("boq_items", legacy.Id)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if got := r.GetString("currency_type"); got != "RUB" {
		t.Errorf("currency_type = %q, want RUB", got)
	}
	if got := r.GetFloat("consumption_coefficient"); got != 1 {
		t.Errorf("consumption_coefficient = %v, want 1", got)
	}
	if got := r.GetString("delivery_price_type"); got != "included" {
		t.Errorf("delivery_price_type = %q, want included", got)
	}
	if got := r.GetString("material_role"); got != "main" {
		t.Errorf("material_role = %q, want main", got)
	}
}

func TestMigrateItemDefaults_WorkGetsNoRole(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Legacy Tender", nil)
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Legacy Position")
	legacy := saveLegacyItem(t, app, pos.Id, "work")

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("MigrateItemDefaults() error: %v", err)
	}

	r, _ := app.FindRecordById("boq_items", legacy.Id)
	if got := r.GetString("material_role"); got != "" {
		t.Errorf("work material_role = %q, want empty", got)
	}
	if got := r.GetString("currency_type"); got != "RUB" {
		t.Errorf("currency_type = %q, want RUB", got)
	}
}

func TestMigrateItemDefaults_ClearsBaseCurrencyRate(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Rate Tender", nil)
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Position")
	item := testhelpers.CreateTestItem(t, app, pos.Id, "work", "Excavation", testhelpers.ItemFields{
		Quantity: 5, UnitRate: 100, CurrencyRate: 90,
	})

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("MigrateItemDefaults() error: %v", err)
	}

	r, _ := app.FindRecordById("boq_items", item.Id)
	if got := r.GetFloat("currency_rate"); got != 0 {
		t.Errorf("currency_rate = %v, want 0 for base currency", got)
	}
}

func TestMigrateItemDefaults_LeavesCompleteItems(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Clean Tender", map[string]float64{"USD": 90})
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Position")
	item := testhelpers.CreateTestItem(t, app, pos.Id, "material", "Rebar", testhelpers.ItemFields{
		BaseQuantity: 2, UnitRate: 600, Currency: "USD", CurrencyRate: 90,
		Consumption: 1.05, Delivery: "surcharge_percent", Role: "auxiliary",
	})
	before := item.GetString("updated")

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("MigrateItemDefaults() error: %v", err)
	}

	r, _ := app.FindRecordById("boq_items", item.Id)
	if r.GetString("updated") != before {
		t.Error("complete item was rewritten")
	}
	if got := r.GetString("material_role"); got != "auxiliary" {
		t.Errorf("material_role = %q, want auxiliary", got)
	}
	if got := r.GetFloat("currency_rate"); got != 90 {
		t.Errorf("currency_rate = %v, want 90", got)
	}
}

func TestMigrateItemDefaults_Idempotent(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Twice", nil)
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Position")
	saveLegacyItem(t, app, pos.Id, "sub_material")

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("second run error: %v", err)
	}

	col, _ := app.FindCollectionByNameOrId("boq_items")
	all, err := app.FindAllRecords(col)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 item, got %d", len(all))
	}
}

func TestMigrateItemDefaults_FillsLinkMaterialKey(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Links", nil)
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Position")
	work := testhelpers.CreateTestItem(t, app, pos.Id, "work", "Masonry", testhelpers.ItemFields{Quantity: 10, UnitRate: 50})
	mat := testhelpers.CreateTestItem(t, app, pos.Id, "sub_material", "Mortar", testhelpers.ItemFields{UnitRate: 5})

	col, _ := app.FindCollectionByNameOrId("work_material_links")
	link := core.NewRecord(col)
	link.Set("position", pos.Id)
	link.Set("work_boq_item_id", work.Id)
	link.Set("sub_material_boq_item_id", mat.Id)
	link.Set("material_quantity_per_work", 1)
	link.Set("usage_coefficient", 0.2)
	if err := app.SaveNoValidate(link); err != nil {
		t.Fatalf("save legacy link: %v", err)
	}

	if err := collections.MigrateItemDefaults(app); err != nil {
		t.Fatalf("MigrateItemDefaults() error: %v", err)
	}

	r, _ := app.FindRecordById("work_material_links", link.Id)
	if got := r.GetString("material_key"); got != mat.Id {
		t.Errorf("material_key = %q, want %q", got, mat.Id)
	}
}
