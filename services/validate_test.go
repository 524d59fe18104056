package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateItem(t *testing.T) {
	valid := testMaterial("m1", KindMaterial, "10")
	valid.BaseQuantity = decp("1")

	tests := []struct {
		name   string
		mutate func(*BOQItem)
		field  string
	}{
		{"valid", func(*BOQItem) {}, ""},
		{"missing description", func(i *BOQItem) { i.Description = "" }, "description"},
		{"missing catalog reference", func(i *BOQItem) { i.CatalogRef = "" }, "catalog_ref"},
		{"negative unit rate", func(i *BOQItem) { i.UnitRate = dec("-1") }, "unit_rate"},
		{"consumption below one", func(i *BOQItem) { i.ConsumptionCoefficient = dec("0.5") }, "consumption_coefficient"},
		{"negative conversion", func(i *BOQItem) { i.ConversionCoefficient = dec("-0.1") }, "conversion_coefficient"},
		{"foreign without rate", func(i *BOQItem) { i.CurrencyType = CurrencyUSD }, "currency_rate"},
		{"base with rate", func(i *BOQItem) { i.CurrencyRate = decp("90") }, "currency_rate"},
		{"fixed delivery without amount", func(i *BOQItem) { i.DeliveryPriceType = DeliveryFixedAmount }, "delivery_amount"},
		{"unknown kind", func(i *BOQItem) { i.Kind = "labour" }, "kind"},
		{"unknown currency", func(i *BOQItem) { i.CurrencyType = "GBP" }, "currency_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := valid
			tt.mutate(&item)
			err := ValidateItem(item)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestNormalizeItem(t *testing.T) {
	t.Run("work drops material fields", func(t *testing.T) {
		item := testWork("w1", "5")
		item.BaseQuantity = decp("3")
		item.DeliveryPriceType = DeliveryFixedAmount
		item.DeliveryAmount = decp("2")
		normalizeItem(&item, false)
		assert.Nil(t, item.BaseQuantity)
		assert.Equal(t, DeliveryIncluded, item.DeliveryPriceType)
		assert.Nil(t, item.DeliveryAmount)
	})

	t.Run("unlinked material resets conversion", func(t *testing.T) {
		item := testMaterial("m1", KindMaterial, "1")
		item.ConversionCoefficient = dec("0.2")
		normalizeItem(&item, false)
		assert.True(t, item.ConversionCoefficient.Equal(one))
		require.NotNil(t, item.BaseQuantity)
		assert.True(t, item.BaseQuantity.IsZero())
	})

	t.Run("linked material keeps conversion", func(t *testing.T) {
		item := testMaterial("m1", KindMaterial, "1")
		item.ConversionCoefficient = dec("0.2")
		item.BaseQuantity = decp("4")
		normalizeItem(&item, true)
		assert.True(t, item.ConversionCoefficient.Equal(dec("0.2")))
		assert.Nil(t, item.BaseQuantity)
	})

	t.Run("base currency clears rate", func(t *testing.T) {
		item := testMaterial("m1", KindMaterial, "1")
		item.CurrencyRate = decp("90")
		item.ConsumptionCoefficient = dec("0")
		normalizeItem(&item, false)
		assert.Nil(t, item.CurrencyRate)
		assert.True(t, item.ConsumptionCoefficient.Equal(one))
	})
}

func TestValidateCoefficients(t *testing.T) {
	assert.NoError(t, validateCoefficients(dec("1"), dec("0")))
	var verr *ValidationError
	require.ErrorAs(t, validateCoefficients(dec("0.99"), dec("1")), &verr)
	assert.Contains(t, verr.Fields, "consumption_coefficient")
}
