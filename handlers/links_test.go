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

func TestHandleLinkCoefficients(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)
	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	form := url.Values{"consumption_coefficient": {"3"}, "conversion_coefficient": {"2"}}
	rec := h.serve(t, HandleLinkCoefficients(h.est), http.MethodPatch, "/links/"+link.ID, form,
		map[string]string{"linkId": link.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.True(t, decimalField(t, body, "quantity").Equal(decimal.NewFromInt(60)))
	assert.True(t, decimalField(t, body, "total_amount").Equal(decimal.NewFromInt(2400)))

	stored, err := h.store.Link(context.Background(), link.ID)
	require.NoError(t, err)
	assert.True(t, stored.MaterialQuantityPerWork.Equal(decimal.NewFromInt(3)))
}

func TestHandleLinkCoefficients_Invalid(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)
	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		form url.Values
	}{
		{"consumption below one", url.Values{"consumption_coefficient": {"0.5"}, "conversion_coefficient": {"1"}}},
		{"negative conversion", url.Values{"consumption_coefficient": {"1"}, "conversion_coefficient": {"-1"}}},
		{"missing conversion", url.Values{"consumption_coefficient": {"1"}}},
		{"not a number", url.Values{"consumption_coefficient": {"x"}, "conversion_coefficient": {"1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.serve(t, HandleLinkCoefficients(h.est), http.MethodPatch, "/", tt.form,
				map[string]string{"linkId": link.ID})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	stored, err := h.store.Item(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(30)))
}

func TestHandleLinkCoefficients_UnknownLink(t *testing.T) {
	h := newHandlerEnv(t)
	form := url.Values{"consumption_coefficient": {"1"}, "conversion_coefficient": {"1"}}

	rec := h.serve(t, HandleLinkCoefficients(h.est), http.MethodPatch, "/", form,
		map[string]string{"linkId": "missing0000000"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRelink(t *testing.T) {
	h := newHandlerEnv(t)
	first := h.createWork(t, "10", "100")
	second := h.createWork(t, "4", "100")
	mat := h.createLinkedMaterial(t, first.ID)

	form := url.Values{
		"work_item_id":            {second.ID},
		"consumption_coefficient": {"2"},
		"conversion_coefficient":  {"1"},
	}
	rec := h.serve(t, HandleRelink(h.est), http.MethodPost, "/", form, map[string]string{"itemId": mat.ID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, second.ID, body["work_item_id"])
	assert.Equal(t, mat.ID, body["material_item_id"])

	stored, err := h.store.Item(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(8)), "quantity %s", stored.Quantity)
}

func TestHandleRelink_RequiresWork(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)

	form := url.Values{"consumption_coefficient": {"1"}, "conversion_coefficient": {"1"}}
	rec := h.serve(t, HandleRelink(h.est), http.MethodPost, "/", form, map[string]string{"itemId": mat.ID})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Select the work to link to", rec.Body.String())
}

func TestHandleLinkCoefficients_WorkDeleted(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)
	link, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	h.deleteItemRecord(t, work.ID)

	form := url.Values{"consumption_coefficient": {"3"}, "conversion_coefficient": {"2"}}
	rec := h.serve(t, HandleLinkCoefficients(h.est), http.MethodPatch, "/links/"+link.ID, form,
		map[string]string{"linkId": link.ID})

	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "error", toastType(t, rec))

	stored, err := h.store.Item(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(30)))
	after, err := h.store.LinkByMaterial(context.Background(), mat.ID)
	require.NoError(t, err)
	assert.Nil(t, after)
}
