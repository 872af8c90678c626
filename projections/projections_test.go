package projections

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/eventstore"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/internal/cache"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
)

type indexed struct {
	path string
	body map[string]interface{}
}

// recordingTransport answers like an Elasticsearch node and keeps every indexed document
type recordingTransport struct {
	mu   sync.Mutex
	docs []indexed
	fail string
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	status := http.StatusOK
	body := `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`

	if req.Method == http.MethodPut || req.Method == http.MethodPost {
		raw, _ := io.ReadAll(req.Body)
		var doc map[string]interface{}
		_ = json.Unmarshal(raw, &doc)

		t.mu.Lock()
		t.docs = append(t.docs, indexed{path: req.URL.Path, body: doc})
		t.mu.Unlock()

		body = `{"result":"created"}`
		if t.fail != "" && strings.Contains(req.URL.Path, t.fail) {
			status = http.StatusInternalServerError
			body = `{"error":"boom"}`
		}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (t *recordingTransport) paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []string
	for _, doc := range t.docs {
		paths = append(paths, doc.path)
	}
	return paths
}

func newTestProcessor(t *testing.T, transport *recordingTransport) (*EventProcessor, eventstore.EventStore, repository.Repository) {
	t.Helper()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://elastic.test:9200"},
		Transport: transport,
	})
	require.NoError(t, err)

	cfg := config.Config{Elastic: config.ElasticConfig{Prefix: "milkchain"}}
	events := eventstore.NewKVEventStore(cache.NewMemoryStore())
	repo := repository.NewLocalRepository(cache.NewMemoryStore())
	projector := NewLedgerProjector(client, events, repo, cfg)

	return NewEventProcessor(events, projector, config.WorkerConfig{BatchSize: 10}), events, repo
}

func saveDay(t *testing.T, events eventstore.EventStore) {
	t.Helper()
	at := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)

	ledger := domain.NewLedgerAggregate("p1", "2026-10-15")
	ledger.SetClock(func() time.Time { return at })
	require.NoError(t, ledger.Apply(domain.AllocationGrantedEvent{
		AllocationID: "a1",
		Allocated:    decimal.NewFromInt(100),
		Remaining:    decimal.NewFromInt(100),
		CreatedAt:    at,
		Source:       domain.SourceSupplier,
	}))
	require.NoError(t, ledger.Apply(domain.DeliveryCompletedEvent{DeliveryID: "d1", CustomerID: "c1", Quantity: decimal.NewFromInt(30)}))
	require.NoError(t, events.Save(context.Background(), ledger))
}

func TestProcessBatchIndexesLedgerAndDeliveries(t *testing.T) {
	transport := &recordingTransport{}
	processor, events, repo := newTestProcessor(t, transport)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDelivery(ctx, &models.Delivery{ID: "d1", CustomerID: "c1", DeliveryPartnerID: "p1", Date: "2026-10-15", Status: domain.DeliveryStatusCompleted}))
	saveDay(t, events)

	processed, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	pending, err := events.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	paths := transport.paths()
	assert.Contains(t, paths, "/milkchain-deliveries/_doc/d1")
	assert.Contains(t, paths, "/milkchain-allocation-ledgers/_doc/ledger:p1:2026-10-15")

	var ledgerDoc map[string]interface{}
	for _, doc := range transport.docs {
		if strings.HasPrefix(doc.path, "/milkchain-allocation-ledgers/") {
			ledgerDoc = doc.body
		}
	}
	require.NotNil(t, ledgerDoc)
	assert.Equal(t, "70", ledgerDoc["remaining"])
	assert.Equal(t, string(domain.AllocationStatusInProgress), ledgerDoc["status"])
}

func TestProcessBatchLeavesFailedEventsPending(t *testing.T) {
	transport := &recordingTransport{fail: "milkchain-deliveries"}
	processor, events, repo := newTestProcessor(t, transport)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDelivery(ctx, &models.Delivery{ID: "d1", DeliveryPartnerID: "p1", Date: "2026-10-15"}))
	saveDay(t, events)

	processed, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	pending, err := events.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.DeliveryCompleted, pending[0].Type)
}

func TestParseLedgerID(t *testing.T) {
	partnerID, date, err := parseLedgerID(domain.LedgerID("team:north", "2026-10-15"))
	require.NoError(t, err)
	assert.Equal(t, "team:north", partnerID)
	assert.Equal(t, "2026-10-15", date)

	_, _, err = parseLedgerID("canister:42")
	assert.Error(t, err)
}
