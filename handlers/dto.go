package handlers

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tenderestimate/services"
)

var validate = validator.New()

func init() {
	// decimal.Decimal is validated as a number so tags like gte=1 work on it.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// ItemForm is the form body of item create and patch requests. Nil fields
// were not sent. An empty work_item_id unlinks the material.
type ItemForm struct {
	Kind                   *string `form:"kind" validate:"omitempty,oneof=work sub_work material sub_material"`
	SortOrder              *string `form:"sort_order" validate:"omitempty,number"`
	Description            *string `form:"description" validate:"omitempty,max=1000"`
	Unit                   *string `form:"unit" validate:"omitempty,max=32"`
	CatalogRef             *string `form:"catalog_ref" validate:"omitempty,max=64"`
	Quantity               *string `form:"quantity" validate:"omitempty,numeric"`
	BaseQuantity           *string `form:"base_quantity" validate:"omitempty,numeric"`
	UnitRate               *string `form:"unit_rate" validate:"omitempty,numeric"`
	CurrencyType           *string `form:"currency_type" validate:"omitempty,oneof=RUB USD EUR CNY"`
	ConsumptionCoefficient *string `form:"consumption_coefficient" validate:"omitempty,numeric"`
	ConversionCoefficient  *string `form:"conversion_coefficient" validate:"omitempty,numeric"`
	DeliveryPriceType      *string `form:"delivery_price_type" validate:"omitempty,oneof=included surcharge_percent fixed_amount"`
	DeliveryAmount         *string `form:"delivery_amount" validate:"omitempty,numeric"`
	MaterialRole           *string `form:"material_role" validate:"omitempty,oneof=main auxiliary"`
	WorkItemID             *string `form:"work_item_id" validate:"omitempty,max=15"`
}

// bindItemForm parses and validates an ItemForm from the request body.
func bindItemForm(r *http.Request) (ItemForm, error) {
	if err := r.ParseForm(); err != nil {
		return ItemForm{}, err
	}
	f := ItemForm{
		Kind:                   formField(r, "kind"),
		SortOrder:              numberField(r, "sort_order"),
		Description:            formField(r, "description"),
		Unit:                   formField(r, "unit"),
		CatalogRef:             formField(r, "catalog_ref"),
		Quantity:               numberField(r, "quantity"),
		BaseQuantity:           numberField(r, "base_quantity"),
		UnitRate:               numberField(r, "unit_rate"),
		CurrencyType:           upperField(r, "currency_type"),
		ConsumptionCoefficient: numberField(r, "consumption_coefficient"),
		ConversionCoefficient:  numberField(r, "conversion_coefficient"),
		DeliveryPriceType:      formField(r, "delivery_price_type"),
		DeliveryAmount:         numberField(r, "delivery_amount"),
		MaterialRole:           formField(r, "material_role"),
		WorkItemID:             formField(r, "work_item_id"),
	}
	return f, validate.Struct(f)
}

// ToInput converts a validated form into an engine edit.
func (f ItemForm) ToInput() (services.ItemInput, error) {
	var in services.ItemInput
	var err error
	if f.Kind != nil {
		in.Kind = services.ItemKind(*f.Kind)
	}
	if f.SortOrder != nil {
		var n int
		if _, err := fmt.Sscan(*f.SortOrder, &n); err != nil {
			return in, fmt.Errorf("sort_order: %w", err)
		}
		in.SortOrder = &n
	}
	in.Description = f.Description
	in.Unit = f.Unit
	in.CatalogRef = f.CatalogRef

	decimals := []struct {
		name string
		src  *string
		dst  **decimal.Decimal
	}{
		{"quantity", f.Quantity, &in.Quantity},
		{"base_quantity", f.BaseQuantity, &in.BaseQuantity},
		{"unit_rate", f.UnitRate, &in.UnitRate},
		{"consumption_coefficient", f.ConsumptionCoefficient, &in.ConsumptionCoefficient},
		{"conversion_coefficient", f.ConversionCoefficient, &in.ConversionCoefficient},
		{"delivery_amount", f.DeliveryAmount, &in.DeliveryAmount},
	}
	for _, d := range decimals {
		if *d.dst, err = parseDecimal(d.src); err != nil {
			return in, fmt.Errorf("%s: %w", d.name, err)
		}
	}

	if f.CurrencyType != nil {
		c := services.CurrencyType(*f.CurrencyType)
		in.CurrencyType = &c
	}
	if f.DeliveryPriceType != nil {
		d := services.DeliveryPriceType(*f.DeliveryPriceType)
		in.DeliveryPriceType = &d
	}
	if f.MaterialRole != nil {
		r := services.MaterialRole(*f.MaterialRole)
		in.MaterialRole = &r
	}
	if f.WorkItemID != nil {
		in.Link = &services.LinkChange{WorkItemID: *f.WorkItemID}
	}
	return in, nil
}

// CoefficientForm is the body of link coefficient edits and relinks.
type CoefficientForm struct {
	WorkItemID  string          `form:"work_item_id" validate:"omitempty,max=15"`
	Consumption decimal.Decimal `form:"consumption_coefficient" validate:"gte=1"`
	Conversion  decimal.Decimal `form:"conversion_coefficient" validate:"gte=0"`
}

func bindCoefficientForm(r *http.Request) (CoefficientForm, error) {
	if err := r.ParseForm(); err != nil {
		return CoefficientForm{}, err
	}
	var f CoefficientForm
	var err error
	f.WorkItemID = strings.TrimSpace(r.FormValue("work_item_id"))
	if f.Consumption, err = requiredDecimal(r, "consumption_coefficient"); err != nil {
		return f, err
	}
	if f.Conversion, err = requiredDecimal(r, "conversion_coefficient"); err != nil {
		return f, err
	}
	return f, validate.Struct(f)
}

// RatesForm is the body of a tender rate update. Empty fields clear the rate.
type RatesForm struct {
	USD decimal.Decimal `form:"usd_rate" validate:"gte=0"`
	EUR decimal.Decimal `form:"eur_rate" validate:"gte=0"`
	CNY decimal.Decimal `form:"cny_rate" validate:"gte=0"`
}

func bindRatesForm(r *http.Request) (RatesForm, error) {
	if err := r.ParseForm(); err != nil {
		return RatesForm{}, err
	}
	var f RatesForm
	for _, field := range []struct {
		key string
		dst *decimal.Decimal
	}{{"usd_rate", &f.USD}, {"eur_rate", &f.EUR}, {"cny_rate", &f.CNY}} {
		d, err := parseDecimal(numberField(r, field.key))
		if err != nil {
			return f, fmt.Errorf("%s: %w", field.key, err)
		}
		if d != nil {
			*field.dst = *d
		}
	}
	return f, validate.Struct(f)
}

func (f RatesForm) Table() services.RateTable {
	rates := services.RateTable{}
	for c, v := range map[services.CurrencyType]decimal.Decimal{
		services.CurrencyUSD: f.USD,
		services.CurrencyEUR: f.EUR,
		services.CurrencyCNY: f.CNY,
	} {
		if v.IsPositive() {
			rates[c] = v
		}
	}
	return rates
}

func formField(r *http.Request, key string) *string {
	vals, ok := r.Form[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := strings.TrimSpace(vals[0])
	return &v
}

// numberField treats an empty value as absent and accepts a decimal comma.
func numberField(r *http.Request, key string) *string {
	v := formField(r, key)
	if v == nil || *v == "" {
		return nil
	}
	s := strings.ReplaceAll(*v, ",", ".")
	return &s
}

func upperField(r *http.Request, key string) *string {
	v := formField(r, key)
	if v == nil {
		return nil
	}
	s := strings.ToUpper(*v)
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(*s, "+"))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func requiredDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	d, err := parseDecimal(numberField(r, key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d == nil {
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	return *d, nil
}
