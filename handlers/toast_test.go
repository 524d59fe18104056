package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderestimate/services"
)

func triggerEvents(t *testing.T, rec *httptest.ResponseRecorder) map[string]map[string]string {
	t.Helper()
	var parsed map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &parsed),
		"HX-Trigger: %s", rec.Header().Get("HX-Trigger"))
	return parsed
}

func TestSetToast_KeepsPositionChanged(t *testing.T) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Response = rec

	triggerPositionChanged(e, "pos123")
	SetToast(e, "success", "Item saved")

	events := triggerEvents(t, rec)
	assert.Equal(t, map[string]string{"position_id": "pos123"}, events["positionChanged"])
	assert.Equal(t, map[string]string{"message": "Item saved", "type": "success"}, events["showToast"])
}

func TestSetToast_LastToastWins(t *testing.T) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Response = rec

	SetToast(e, "success", "Recalculated 4 items")
	SetToast(e, "warning", "2 lines could not be priced")

	events := triggerEvents(t, rec)
	assert.Len(t, events, 1)
	assert.Equal(t, "warning", events["showToast"]["type"])
	assert.Equal(t, "2 lines could not be priced", events["showToast"]["message"])
}

func TestSetToast_ReplacesMalformedTrigger(t *testing.T) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Response = rec
	rec.Header().Set("HX-Trigger", "positionChanged")

	SetToast(e, "error", "Tender not found")

	events := triggerEvents(t, rec)
	assert.Equal(t, "Tender not found", events["showToast"]["message"])
	assert.NotContains(t, events, "positionChanged")
}

func TestSetToast_FlashCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Response = rec

	SetToast(e, "info", `Rate "USD" set to 90 ✔`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "flash_toast", cookies[0].Name)
	assert.Equal(t, 10, cookies[0].MaxAge)

	raw, err := url.QueryUnescape(cookies[0].Value)
	require.NoError(t, err)
	var flash map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &flash))
	assert.Equal(t, map[string]string{"message": `Rate "USD" set to 90 ✔`, "type": "info"}, flash)
}

func TestErrorToast(t *testing.T) {
	tests := []struct {
		name string
		code int
		msg  string
	}{
		{"missing id", http.StatusBadRequest, "Missing item ID"},
		{"no work selected", http.StatusBadRequest, "Select the work to link to"},
		{"tender not found", http.StatusNotFound, "Tender not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e := &core.RequestEvent{}
			e.Response = rec

			require.NoError(t, ErrorToast(e, tt.code, tt.msg))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, rec.Body.String())
			assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))
			assert.Equal(t, "error", triggerEvents(t, rec)["showToast"]["type"])
		})
	}
}

func TestErrorJSON_ToastAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	e := newBareEvent(rec)

	require.NoError(t, respondError(e, "test", services.ErrLinkExists))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))
	toast := triggerEvents(t, rec)["showToast"]
	assert.Equal(t, "error", toast["type"])
	assert.Equal(t, "This material is already linked to a work.", toast["message"])
	assert.Equal(t, toast["message"], decodeBody(t, rec)["error"])
}

func TestItemHandlers_TriggerPositionChanged(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	mat := h.createLinkedMaterial(t, work.ID)
	link, err := h.store.LinkByMaterial(t.Context(), mat.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	tests := []struct {
		name    string
		handler func(*core.RequestEvent) error
		method  string
		form    url.Values
		path    map[string]string
		toast   string
	}{
		{"patch", HandleItemPatch(h.est), http.MethodPatch, url.Values{"quantity": {"12"}},
			map[string]string{"itemId": work.ID}, "Item saved"},
		{"coefficients", HandleLinkCoefficients(h.est), http.MethodPatch,
			url.Values{"consumption_coefficient": {"3"}, "conversion_coefficient": {"1"}},
			map[string]string{"linkId": link.ID}, "Coefficients updated"},
		{"unlink", HandleItemUnlink(h.est), http.MethodPost, nil,
			map[string]string{"itemId": mat.ID}, "Material unlinked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.serve(t, tt.handler, tt.method, "/", tt.form, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			events := triggerEvents(t, rec)
			assert.Equal(t, h.positionID, events["positionChanged"]["position_id"])
			assert.Equal(t, tt.toast, events["showToast"]["message"])
		})
	}
}
