package handlers

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleItemCreate_Work(t *testing.T) {
	h := newHandlerEnv(t)
	form := url.Values{
		"kind":        {"work"},
		"description": {"Excavation"},
		"unit":        {"m3"},
		"catalog_ref": {"W-0001"},
		"quantity":    {"10"},
		"unit_rate":   {"100"},
	}

	rec := h.serve(t, HandleItemCreate(h.est), http.MethodPost, "/positions/"+h.positionID+"/items", form,
		map[string]string{"positionId": h.positionID})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "work", body["kind"])
	assert.Equal(t, "RUB", body["currency_type"])
	assert.True(t, decimalField(t, body, "total_amount").Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "success", toastType(t, rec))
}

func TestHandleItemCreate_LinkedMaterial(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	form := url.Values{
		"kind":                    {"material"},
		"description":             {"Cement"},
		"catalog_ref":             {"M-0200"},
		"unit_rate":               {"40"},
		"consumption_coefficient": {"2"},
		"conversion_coefficient":  {"1,5"},
		"work_item_id":            {work.ID},
	}

	rec := h.serve(t, HandleItemCreate(h.est), http.MethodPost, "/", form,
		map[string]string{"positionId": h.positionID})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.True(t, decimalField(t, body, "quantity").Equal(decimal.NewFromInt(30)))
	assert.True(t, decimalField(t, body, "total_amount").Equal(decimal.NewFromInt(1200)))
	assert.Nil(t, body["base_quantity"])
	assert.Equal(t, "main", body["material_role"])
}

func TestHandleItemCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantField  string
	}{
		{
			name:       "unsupported currency",
			form:       url.Values{"kind": {"material"}, "description": {"Sand"}, "catalog_ref": {"M-1"}, "currency_type": {"GBP"}},
			wantStatus: http.StatusBadRequest,
			wantField:  "currency_type",
		},
		{
			name:       "non numeric quantity",
			form:       url.Values{"kind": {"work"}, "description": {"Dig"}, "catalog_ref": {"W-1"}, "quantity": {"ten"}},
			wantStatus: http.StatusBadRequest,
			wantField:  "quantity",
		},
		{
			name:       "missing description",
			form:       url.Values{"kind": {"work"}, "catalog_ref": {"W-1"}},
			wantStatus: http.StatusBadRequest,
			wantField:  "description",
		},
		{
			name:       "no rate for currency",
			form:       url.Values{"kind": {"material"}, "description": {"Pump"}, "catalog_ref": {"M-9"}, "currency_type": {"cny"}},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerEnv(t)
			rec := h.serve(t, HandleItemCreate(h.est), http.MethodPost, "/", tt.form,
				map[string]string{"positionId": h.positionID})

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))
			assert.Equal(t, "error", toastType(t, rec))
			if tt.wantField != "" {
				fields, ok := decodeBody(t, rec)["fields"].(map[string]any)
				require.True(t, ok, rec.Body.String())
				assert.Contains(t, fields, tt.wantField)
			}

			items, err := h.store.ItemsByPosition(context.Background(), h.positionID)
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestHandleItemCreate_UnknownPosition(t *testing.T) {
	h := newHandlerEnv(t)
	form := url.Values{"kind": {"work"}, "description": {"Dig"}, "catalog_ref": {"W-1"}}

	rec := h.serve(t, HandleItemCreate(h.est), http.MethodPost, "/", form,
		map[string]string{"positionId": "missing0000000"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleItemPatch(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")

	rec := h.serve(t, HandleItemPatch(h.est), http.MethodPatch, "/items/"+work.ID,
		url.Values{"quantity": {"12"}}, map[string]string{"itemId": work.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.True(t, decimalField(t, body, "total_amount").Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "Concrete pour", body["description"])
	assert.EqualValues(t, 1, body["generation"])
}

func TestHandleItemPatch_KindChangeRejected(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")

	rec := h.serve(t, HandleItemPatch(h.est), http.MethodPatch, "/",
		url.Values{"kind": {"sub_work"}}, map[string]string{"itemId": work.ID})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleItemPatch_NotFound(t *testing.T) {
	h := newHandlerEnv(t)

	rec := h.serve(t, HandleItemPatch(h.est), http.MethodPatch, "/",
		url.Values{"quantity": {"1"}}, map[string]string{"itemId": "missing0000000"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleItemPatch_LinkedWorkDeleted(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)
	h.deleteItemRecord(t, work.ID)

	rec := h.serve(t, HandleItemPatch(h.est), http.MethodPatch, "/items/"+mat.ID,
		url.Values{"description": {"Cement, bagged"}}, map[string]string{"itemId": mat.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Cement, bagged", body["description"])
	assert.True(t, decimalField(t, body, "quantity").Equal(decimal.NewFromInt(30)))

	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestHandleItemUnlink(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)

	rec := h.serve(t, HandleItemUnlink(h.est), http.MethodPost, "/", nil,
		map[string]string{"itemId": mat.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.True(t, decimalField(t, body, "quantity").Equal(decimal.NewFromInt(30)))
	assert.True(t, decimalField(t, body, "total_amount").Equal(decimal.NewFromInt(1200)))
	assert.True(t, decimalField(t, body, "base_quantity").Equal(decimal.NewFromInt(15)))
	assert.True(t, decimalField(t, body, "conversion_coefficient").Equal(decimal.NewFromInt(1)))

	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestHandleItemReclassify(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)

	rec := h.serve(t, HandleItemReclassify(h.est), http.MethodPost, "/",
		url.Values{"kind": {"sub_work"}}, map[string]string{"itemId": work.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sub_work", decodeBody(t, rec)["kind"])

	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "sub_work", string(link.WorkKind))
}

func TestHandleItemReclassify_Errors(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")

	rec := h.serve(t, HandleItemReclassify(h.est), http.MethodPost, "/",
		url.Values{"kind": {"material"}}, map[string]string{"itemId": work.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.serve(t, HandleItemReclassify(h.est), http.MethodPost, "/",
		url.Values{}, map[string]string{"itemId": work.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Kind is required", rec.Body.String())
}
