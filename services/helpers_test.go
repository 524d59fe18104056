package services

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testWork(id, qty string) BOQItem {
	item := NewBOQItem("pos1", KindWork)
	item.ID = id
	item.Description = "Work " + id
	item.CatalogRef = "W-" + id
	item.Quantity = dec(qty)
	return item
}

func testMaterial(id string, kind ItemKind, rate string) BOQItem {
	item := NewBOQItem("pos1", kind)
	item.ID = id
	item.Description = "Material " + id
	item.CatalogRef = "M-" + id
	item.UnitRate = dec(rate)
	return item
}

func testLink(work, material BOQItem, consumption, conversion string) WorkMaterialLink {
	return WorkMaterialLink{
		ID:                      "link-" + material.ID,
		PositionID:              material.PositionID,
		WorkItemID:              work.ID,
		WorkKind:                work.Kind,
		MaterialItemID:          material.ID,
		MaterialKind:            material.Kind,
		MaterialQuantityPerWork: dec(consumption),
		UsageCoefficient:        dec(conversion),
	}
}
