package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tenderestimate/services"
	"tenderestimate/testhelpers"
)

// newTestRequestEvent creates a RequestEvent suitable for handler tests.
func newTestRequestEvent(app *pocketbase.PocketBase, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// handlerEnv is a tender with one position behind a real record store.
type handlerEnv struct {
	app        *pocketbase.PocketBase
	est        *services.Estimator
	store      *services.RecordStore
	tenderID   string
	positionID string
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Warehouse Block B", map[string]float64{"USD": 90})
	position := testhelpers.CreateTestPosition(t, app, tender.Id, "Foundations")
	store := services.NewRecordStore(app)
	policy := services.PercentPolicy{services.CategoryWork: decimal.NewFromInt(20)}
	return &handlerEnv{
		app:        app,
		est:        services.NewEstimator(store, nil, policy),
		store:      store,
		tenderID:   tender.Id,
		positionID: position.Id,
	}
}

func (h *handlerEnv) createWork(t *testing.T, qty, rate string) services.BOQItem {
	t.Helper()
	work, err := h.est.CreateItem(context.Background(), h.positionID, services.ItemInput{
		Kind:        services.KindWork,
		Description: ptr("Concrete pour"),
		Unit:        ptr("m3"),
		CatalogRef:  ptr("W-0101"),
		Quantity:    ptr(decimal.RequireFromString(qty)),
		UnitRate:    ptr(decimal.RequireFromString(rate)),
	})
	require.NoError(t, err)
	return work
}

func (h *handlerEnv) createLinkedMaterial(t *testing.T, workID string) services.BOQItem {
	t.Helper()
	mat, err := h.est.CreateItem(context.Background(), h.positionID, services.ItemInput{
		Kind:                   services.KindMaterial,
		Description:            ptr("Cement"),
		Unit:                   ptr("t"),
		CatalogRef:             ptr("M-0200"),
		UnitRate:               ptr(decimal.NewFromInt(40)),
		ConsumptionCoefficient: ptr(decimal.NewFromInt(2)),
		ConversionCoefficient:  ptr(decimal.RequireFromString("1.5")),
		Link:                   &services.LinkChange{WorkItemID: workID},
	})
	require.NoError(t, err)
	return mat
}

// deleteItemRecord removes an item directly, leaving its links in place.
func (h *handlerEnv) deleteItemRecord(t *testing.T, id string) {
	t.Helper()
	rec, err := h.app.FindRecordById(services.CollectionItems, id)
	require.NoError(t, err)
	require.NoError(t, h.app.Delete(rec))
}

// serve runs handler against a form request with the given path values.
func (h *handlerEnv) serve(t *testing.T, handler func(*core.RequestEvent) error, method, target string, form url.Values, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(newTestRequestEvent(h.app, req, rec)))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

// decimalField reads a decimal that was marshalled as a JSON string.
func decimalField(t *testing.T, body map[string]any, key string) decimal.Decimal {
	t.Helper()
	s, ok := body[key].(string)
	require.True(t, ok, "%s is %T (%v)", key, body[key], body[key])
	return decimal.RequireFromString(s)
}

func toastType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var parsed map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &parsed))
	return parsed["showToast"]["type"]
}

func ptr[T any](v T) *T { return &v }
