// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"tenderestimate/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)

	return app
}

// CreateTestTender creates a tender with the given exchange rates keyed by
// currency code ("USD", "EUR", "CNY").
func CreateTestTender(t *testing.T, app core.App, title string, rates map[string]float64) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("tenders")
	if err != nil {
		t.Fatalf("failed to find tenders collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("title", title)
	record.Set("client_name", "Test Client")
	for code, rate := range rates {
		record.Set(strings.ToLower(code)+"_rate", rate)
	}

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test tender: %v", err)
	}

	return record
}

// CreateTestPosition creates a position under a tender.
func CreateTestPosition(t *testing.T, app core.App, tenderID, name string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("positions")
	if err != nil {
		t.Fatalf("failed to find positions collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("tender", tenderID)
	record.Set("name", name)
	record.Set("code", "01.01")
	record.Set("unit", "m3")
	record.Set("sort_order", 1)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test position: %v", err)
	}

	return record
}

// ItemFields overrides the defaults of CreateTestItem. Zero values keep the
// default.
type ItemFields struct {
	Quantity     float64
	BaseQuantity float64
	UnitRate     float64
	Currency     string
	CurrencyRate float64
	Consumption  float64
	Conversion   float64
	Delivery     string
	DeliveryAmt  float64
	Role         string
}

// CreateTestItem creates a raw boq_items record of the given kind. Stored
// quantity and total are written as given; nothing is derived.
func CreateTestItem(t *testing.T, app core.App, positionID, kind, description string, f ItemFields) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("boq_items")
	if err != nil {
		t.Fatalf("failed to find boq_items collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("position", positionID)
	record.Set("kind", kind)
	record.Set("description", description)
	record.Set("unit", "pcs")
	record.Set(kind+"_id", "CAT-"+strings.ToUpper(kind))
	record.Set("quantity", f.Quantity)
	record.Set("base_quantity", f.BaseQuantity)
	record.Set("unit_rate", f.UnitRate)
	record.Set("currency_type", orDefault(f.Currency, "RUB"))
	record.Set("currency_rate", f.CurrencyRate)
	record.Set("consumption_coefficient", orOne(f.Consumption))
	record.Set("conversion_coefficient", orOne(f.Conversion))
	record.Set("delivery_price_type", orDefault(f.Delivery, "included"))
	record.Set("delivery_amount", f.DeliveryAmt)
	if kind == "material" || kind == "sub_material" {
		record.Set("material_role", orDefault(f.Role, "main"))
	}

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test item: %v", err)
	}

	return record
}

// CreateTestLink links a material record to a work record with the given
// coefficients, choosing the columns from both records' kinds.
func CreateTestLink(t *testing.T, app core.App, work, material *core.Record, consumption, conversion float64) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("work_material_links")
	if err != nil {
		t.Fatalf("failed to find work_material_links collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("position", material.GetString("position"))
	record.Set(work.GetString("kind")+"_boq_item_id", work.Id)
	record.Set(material.GetString("kind")+"_boq_item_id", material.Id)
	record.Set("material_key", material.Id)
	record.Set("material_quantity_per_work", consumption)
	record.Set("usage_coefficient", conversion)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test link: %v", err)
	}

	return record
}

// AssertHTMLContains checks that body contains all specified fragments.
func AssertHTMLContains(t *testing.T, body string, fragments ...string) {
	t.Helper()

	for _, frag := range fragments {
		if !strings.Contains(body, frag) {
			t.Errorf("expected HTML to contain %q, but it was not found\nbody (first 500 chars): %s",
				frag, truncate(body, 500))
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
