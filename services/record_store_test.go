package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderestimate/testhelpers"
)

func TestRecordStore_ItemRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := NewBOQItem(e.positionID, KindSubMaterial)
	item.Description = "Aluminium profile"
	item.CatalogRef = "SM-4401"
	item.Unit = "m2"
	item.BaseQuantity = decp("12.5")
	item.UnitRate = dec("145")
	item.CurrencyType = CurrencyEUR
	item.CurrencyRate = decp("99.8")
	item.ConsumptionCoefficient = dec("1.1")
	item.DeliveryPriceType = DeliveryFixedAmount
	item.DeliveryAmount = decp("3")
	item.MaterialRole = RoleAuxiliary
	require.NoError(t, e.store.CreateItem(ctx, &item))
	require.NotEmpty(t, item.ID)

	got, err := e.store.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, KindSubMaterial, got.Kind)
	assert.Equal(t, "SM-4401", got.CatalogRef)
	assert.Equal(t, CurrencyEUR, got.CurrencyType)
	require.NotNil(t, got.CurrencyRate)
	assert.True(t, got.CurrencyRate.Equal(dec("99.8")))
	require.NotNil(t, got.BaseQuantity)
	assert.True(t, got.BaseQuantity.Equal(dec("12.5")))
	require.NotNil(t, got.DeliveryAmount)
	assert.Equal(t, RoleAuxiliary, got.MaterialRole)

	rec, err := e.app.FindRecordById(CollectionItems, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "SM-4401", rec.GetString("sub_material_id"))
	assert.Empty(t, rec.GetString("material_id"))
}

func TestRecordStore_CatalogColumnFollowsKind(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := NewBOQItem(e.positionID, KindWork)
	item.Description = "Excavation"
	item.CatalogRef = "W-1"
	require.NoError(t, e.store.CreateItem(ctx, &item))

	item.Kind = KindSubWork
	require.NoError(t, e.store.UpdateItem(ctx, &item))

	rec, err := e.app.FindRecordById(CollectionItems, item.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.GetString("work_id"))
	assert.Equal(t, "W-1", rec.GetString("sub_work_id"))
}

func TestRecordStore_NotFound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.store.Item(ctx, "missingid123456")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.store.Position(ctx, "missingid123456")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.store.Link(ctx, "missingid123456")
	assert.ErrorIs(t, err, ErrNotFound)

	link, err := e.store.LinkByMaterial(ctx, "missingid123456")
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRecordStore_DuplicateLinkRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	work := testhelpers.CreateTestItem(t, e.app, e.positionID, "work", "Work", testhelpers.ItemFields{Quantity: 1})
	other := testhelpers.CreateTestItem(t, e.app, e.positionID, "sub_work", "Other", testhelpers.ItemFields{Quantity: 1})
	mat := testhelpers.CreateTestItem(t, e.app, e.positionID, "material", "Mat", testhelpers.ItemFields{})

	first := WorkMaterialLink{
		PositionID: e.positionID, WorkItemID: work.Id, WorkKind: KindWork,
		MaterialItemID: mat.Id, MaterialKind: KindMaterial,
		MaterialQuantityPerWork: dec("1"), UsageCoefficient: dec("1"),
	}
	require.NoError(t, e.store.CreateLink(ctx, &first))

	second := first
	second.ID = ""
	second.WorkItemID, second.WorkKind = other.Id, KindSubWork
	err := e.store.CreateLink(ctx, &second)
	assert.ErrorIs(t, err, ErrLinkExists)
	assert.Equal(t, 1, e.countRecords(t, CollectionLinks))
}

func TestRecordStore_LinkQueries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	work := testhelpers.CreateTestItem(t, e.app, e.positionID, "sub_work", "Work", testhelpers.ItemFields{Quantity: 3})
	mat := testhelpers.CreateTestItem(t, e.app, e.positionID, "sub_material", "Mat", testhelpers.ItemFields{})
	testhelpers.CreateTestLink(t, e.app, work, mat, 2, 0.5)

	byWork, err := e.store.LinksByWork(ctx, work.Id)
	require.NoError(t, err)
	require.Len(t, byWork, 1)
	assert.Equal(t, KindSubWork, byWork[0].WorkKind)
	assert.Equal(t, KindSubMaterial, byWork[0].MaterialKind)
	assert.True(t, byWork[0].MaterialQuantityPerWork.Equal(dec("2")))
	assert.True(t, byWork[0].UsageCoefficient.Equal(dec("0.5")))

	byMat, err := e.store.LinkByMaterial(ctx, mat.Id)
	require.NoError(t, err)
	require.NotNil(t, byMat)
	assert.Equal(t, work.Id, byMat.WorkItemID)

	byPos, err := e.store.LinksByPosition(ctx, e.positionID)
	require.NoError(t, err)
	assert.Len(t, byPos, 1)
}

func TestRecordStore_TransactionRollsBack(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.store.RunInTransaction(ctx, func(tx Store) error {
		item := NewBOQItem(e.positionID, KindWork)
		item.Description = "Rolled back"
		item.CatalogRef = "W-9"
		if err := tx.CreateItem(ctx, &item); err != nil {
			return err
		}
		return ErrLinkExists
	})
	require.ErrorIs(t, err, ErrLinkExists)
	assert.Equal(t, 0, e.countRecords(t, CollectionItems))
}

func TestRecordStore_TenderRates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tender, err := e.store.Tender(ctx, e.tenderID)
	require.NoError(t, err)
	assert.True(t, tender.Rates[CurrencyUSD].Equal(dec("90")))
	_, hasCNY := tender.Rates[CurrencyCNY]
	assert.False(t, hasCNY)

	require.NoError(t, e.store.UpdateTenderRates(ctx, e.tenderID, RateTable{CurrencyCNY: dec("12.7")}))
	tender, err = e.store.Tender(ctx, e.tenderID)
	require.NoError(t, err)
	assert.True(t, tender.Rates[CurrencyCNY].Equal(dec("12.7")))
	_, hasUSD := tender.Rates[CurrencyUSD]
	assert.False(t, hasUSD, "rates not in the table are cleared")
}
