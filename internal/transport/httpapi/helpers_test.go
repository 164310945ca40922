package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	catalogclient "github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ordernumber"
	catalogsvc "github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var catalogNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "httpapi-test")
}

type catalogEnv struct {
	svc    *catalogsvc.Service
	server *httptest.Server
}

func newCatalogEnv(t *testing.T) *catalogEnv {
	t.Helper()
	var seq atomic.Int64
	svc := catalogsvc.NewService(memory.NewProductRepository(),
		catalogsvc.WithLogger(quietLogger()),
		catalogsvc.WithClock(func() time.Time { return catalogNow }),
		catalogsvc.WithRandom(func(n int) string { return fmt.Sprintf("%0*d", n, seq.Add(1)) }),
	)
	server := httptest.NewServer(NewProductRouter(svc, quietLogger()))
	t.Cleanup(server.Close)
	return &catalogEnv{svc: svc, server: server}
}

func (e *catalogEnv) seed(t *testing.T, name, price string, inventory int) domain.Product {
	t.Helper()
	product, err := e.svc.Create(context.Background(), domain.NewProduct{
		Name:           name,
		Price:          decimal.RequireFromString(price),
		InventoryCount: inventory,
	})
	require.NoError(t, err)
	return product
}

type orderEnv struct {
	catalog *catalogEnv
	drifts  domain.DriftRepository
	server  *httptest.Server
}

// newOrderEnv поднимает оба сервиса: заказы ходят в каталог через настоящий HTTP-клиент.
func newOrderEnv(t *testing.T, catalogURL string) *orderEnv {
	t.Helper()
	env := &orderEnv{catalog: newCatalogEnv(t), drifts: memory.NewDriftRepository()}
	if catalogURL == "" {
		catalogURL = env.catalog.server.URL
	}
	client, err := catalogclient.New(catalogclient.Config{BaseURL: catalogURL}, catalogclient.WithLogger(quietLogger()))
	require.NoError(t, err)

	svc := ordering.NewService(memory.NewOrderRepository(), client, ordernumber.New(),
		ordering.WithDriftRepository(env.drifts),
		ordering.WithTimeline(memory.NewTimelineRepository()),
		ordering.WithOutbox(memory.NewOutboxRepository()),
		ordering.WithLogger(quietLogger()),
	)
	env.server = httptest.NewServer(NewOrderRouter(svc, quietLogger()))
	t.Cleanup(env.server.Close)
	return env
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewBufferString(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
