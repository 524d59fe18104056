// Package services implements the tender estimation engine: the work/material
// link graph, quantity derivation, currency normalization, delivery surcharges,
// line costs, position aggregation and markup allocation.
package services

import (
	"github.com/shopspring/decimal"
)

// ItemKind is the discriminant of a BOQ line. It only changes through Reclassify.
type ItemKind string

const (
	KindWork        ItemKind = "work"
	KindSubWork     ItemKind = "sub_work"
	KindMaterial    ItemKind = "material"
	KindSubMaterial ItemKind = "sub_material"
)

// ItemKinds lists every kind in display order.
var ItemKinds = []ItemKind{KindWork, KindSubWork, KindMaterial, KindSubMaterial}

func (k ItemKind) Valid() bool {
	switch k {
	case KindWork, KindSubWork, KindMaterial, KindSubMaterial:
		return true
	}
	return false
}

func (k ItemKind) IsWorkLike() bool {
	return k == KindWork || k == KindSubWork
}

func (k ItemKind) IsMaterialLike() bool {
	return k == KindMaterial || k == KindSubMaterial
}

// CatalogField returns the item column holding the catalog reference for this kind.
func (k ItemKind) CatalogField() string {
	switch k {
	case KindWork:
		return "work_id"
	case KindSubWork:
		return "sub_work_id"
	case KindMaterial:
		return "material_id"
	case KindSubMaterial:
		return "sub_material_id"
	}
	return ""
}

// Label is the short human name used in exports.
func (k ItemKind) Label() string {
	switch k {
	case KindWork:
		return "Work"
	case KindSubWork:
		return "Sub-work"
	case KindMaterial:
		return "Material"
	case KindSubMaterial:
		return "Sub-material"
	}
	return string(k)
}

// CurrencyType identifies the currency a unit rate is denominated in.
type CurrencyType string

const (
	CurrencyRUB CurrencyType = "RUB"
	CurrencyUSD CurrencyType = "USD"
	CurrencyEUR CurrencyType = "EUR"
	CurrencyCNY CurrencyType = "CNY"

	BaseCurrency = CurrencyRUB
)

// ForeignCurrencies are the currencies that need a rate snapshot.
var ForeignCurrencies = []CurrencyType{CurrencyUSD, CurrencyEUR, CurrencyCNY}

func (c CurrencyType) Valid() bool {
	switch c {
	case CurrencyRUB, CurrencyUSD, CurrencyEUR, CurrencyCNY:
		return true
	}
	return false
}

func (c CurrencyType) IsBase() bool {
	return c == BaseCurrency
}

// DeliveryPriceType selects how delivery is charged on a material line.
type DeliveryPriceType string

const (
	DeliveryIncluded         DeliveryPriceType = "included"
	DeliverySurchargePercent DeliveryPriceType = "surcharge_percent"
	DeliveryFixedAmount      DeliveryPriceType = "fixed_amount"
)

func (d DeliveryPriceType) Valid() bool {
	switch d {
	case DeliveryIncluded, DeliverySurchargePercent, DeliveryFixedAmount:
		return true
	}
	return false
}

// MaterialRole decides whether a material's markup is carried by itself or
// folded entirely into its work.
type MaterialRole string

const (
	RoleMain      MaterialRole = "main"
	RoleAuxiliary MaterialRole = "auxiliary"
)

func (r MaterialRole) Valid() bool {
	return r == RoleMain || r == RoleAuxiliary
}

// BOQItem is a single line of the bill of quantities.
//
// For linked material-like items Quantity is derived and BaseQuantity is nil.
// For unlinked material-like items BaseQuantity holds the raw user input.
// CurrencyRate is nil for base-currency items and a positive snapshot otherwise.
type BOQItem struct {
	ID                     string
	PositionID             string
	SortOrder              int
	Kind                   ItemKind
	Description            string
	Unit                   string
	CatalogRef             string
	Quantity               decimal.Decimal
	BaseQuantity           *decimal.Decimal
	UnitRate               decimal.Decimal
	CurrencyType           CurrencyType
	CurrencyRate           *decimal.Decimal
	ConsumptionCoefficient decimal.Decimal
	ConversionCoefficient  decimal.Decimal
	DeliveryPriceType      DeliveryPriceType
	DeliveryAmount         *decimal.Decimal
	MaterialRole           MaterialRole
	Generation             int
	TotalAmount            decimal.Decimal
}

// NewBOQItem returns an item of the given kind with engine defaults applied.
func NewBOQItem(positionID string, kind ItemKind) BOQItem {
	return BOQItem{
		PositionID:             positionID,
		Kind:                   kind,
		CurrencyType:           BaseCurrency,
		ConsumptionCoefficient: decimal.NewFromInt(1),
		ConversionCoefficient:  decimal.NewFromInt(1),
		DeliveryPriceType:      DeliveryIncluded,
		MaterialRole:           RoleMain,
	}
}

// WorkMaterialLink associates one material-like item with one work-like item
// of the same position. MaterialQuantityPerWork mirrors the material's
// consumption coefficient and UsageCoefficient its conversion coefficient.
type WorkMaterialLink struct {
	ID                      string
	PositionID              string
	WorkItemID              string
	WorkKind                ItemKind
	MaterialItemID          string
	MaterialKind            ItemKind
	MaterialQuantityPerWork decimal.Decimal
	UsageCoefficient        decimal.Decimal
}

// Position groups BOQ items under one client line. Total is a cache only.
type Position struct {
	ID        string
	TenderID  string
	SortOrder int
	Code      string
	Name      string
	Unit      string
	Volume    decimal.Decimal
	Total     decimal.Decimal
}

// Tender owns positions and the rate table used when items are written.
type Tender struct {
	ID         string
	Title      string
	ClientName string
	Rates      RateTable
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
