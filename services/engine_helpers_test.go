package services

import (
	"context"
	"sync"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/require"

	"tenderestimate/testhelpers"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []reconcileJob
}

func (q *recordingQueue) Enqueue(workID string, generation int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, reconcileJob{WorkID: workID, Generation: generation})
}

func (q *recordingQueue) Jobs() []reconcileJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]reconcileJob(nil), q.jobs...)
}

type testEngine struct {
	app        core.App
	store      *RecordStore
	estimator  *Estimator
	queue      *recordingQueue
	tenderID   string
	positionID string
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	app := testhelpers.NewTestApp(t)
	tender := testhelpers.CreateTestTender(t, app, "Engine Tender", map[string]float64{"USD": 90, "EUR": 100})
	pos := testhelpers.CreateTestPosition(t, app, tender.Id, "Engine Position")

	store := NewRecordStore(app)
	queue := &recordingQueue{}
	return &testEngine{
		app:        app,
		store:      store,
		estimator:  NewEstimator(store, queue, PercentPolicy{}),
		queue:      queue,
		tenderID:   tender.Id,
		positionID: pos.Id,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func (e *testEngine) createWork(t *testing.T, qty, rate string) BOQItem {
	t.Helper()
	item, err := e.estimator.CreateItem(context.Background(), e.positionID, ItemInput{
		Kind:        KindWork,
		Description: ptr("Concrete pouring"),
		CatalogRef:  ptr("W-0101"),
		Unit:        ptr("m3"),
		Quantity:    ptr(dec(qty)),
		UnitRate:    ptr(dec(rate)),
	})
	require.NoError(t, err)
	return item
}

func (e *testEngine) createLinkedMaterial(t *testing.T, workID, consumption, conversion, rate string) BOQItem {
	t.Helper()
	item, err := e.estimator.CreateItem(context.Background(), e.positionID, ItemInput{
		Kind:                   KindMaterial,
		Description:            ptr("Ready-mix concrete"),
		CatalogRef:             ptr("M-2501"),
		Unit:                   ptr("m3"),
		UnitRate:               ptr(dec(rate)),
		ConsumptionCoefficient: ptr(dec(consumption)),
		ConversionCoefficient:  ptr(dec(conversion)),
		Link:                   &LinkChange{WorkItemID: workID},
	})
	require.NoError(t, err)
	return item
}

func (e *testEngine) countRecords(t *testing.T, collection string) int {
	t.Helper()
	col, err := e.app.FindCollectionByNameOrId(collection)
	require.NoError(t, err)
	recs, err := e.app.FindAllRecords(col)
	require.NoError(t, err)
	return len(recs)
}

// deleteItemRecord removes an item behind the engine's back, the way a direct
// records API call would, leaving its links in place.
func (e *testEngine) deleteItemRecord(t *testing.T, id string) {
	t.Helper()
	rec, err := e.app.FindRecordById(CollectionItems, id)
	require.NoError(t, err)
	require.NoError(t, e.app.Delete(rec))
}
