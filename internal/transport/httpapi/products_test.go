package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogclient "github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProductRouter_CreateAndGet(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/products",
		`{"name":"Coffee Mug","price":"12.50","inventoryCount":7,"status":"ACTIVE"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[catalogclient.ProductPayload](t, resp)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "COFFEEMUG-MJUOHS00-0001", created.SKU)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, catalogclient.StatusValue(domain.ProductStatusActive), created.Status)

	resp = doJSON(t, http.MethodGet, env.server.URL+"/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[catalogclient.ProductPayload](t, resp)
	assert.Equal(t, 7, got.InventoryCount)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("12.5")))

	resp = doJSON(t, http.MethodGet, env.server.URL+"/products/sku/"+created.SKU, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[catalogclient.ProductPayload](t, resp).ID)
}

func TestProductRouter_StatusIsNumericOnTheWire(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)
	product := env.seed(t, "Lamp", "30", 1)

	resp := doJSON(t, http.MethodGet, env.server.URL+"/products/"+product.ID, nil)
	raw := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), raw["status"])
}

func TestProductRouter_CreateValidation(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)

	cases := map[string]string{
		"malformed json": `{"name":`,
		"missing name":   `{"price":"1.00"}`,
		"zero price":     `{"name":"Free","price":"0"}`,
		"bad status":     `{"name":"Thing","price":"1","status":"ARCHIVED"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, env.server.URL+"/products", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestProductRouter_AdjustInventory(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)
	product := env.seed(t, "Notebook", "3.99", 5)
	url := env.server.URL + "/products/" + product.ID + "/inventory"

	resp := doJSON(t, http.MethodPatch, url, catalogclient.InventoryAdjustmentPayload{Quantity: -2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[catalogclient.ProductPayload](t, resp).InventoryCount)

	resp = doJSON(t, http.MethodPatch, url, catalogclient.InventoryAdjustmentPayload{Quantity: -4})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Contains(t, errResp.Message, "current inventory 3")
	assert.Contains(t, errResp.Message, "requested change -4")

	current, err := env.svc.Get(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.InventoryCount)

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/products/missing/inventory", catalogclient.InventoryAdjustmentPayload{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductRouter_UpdateDeactivateDelete(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)
	first := env.seed(t, "Chair", "40", 2)
	second := env.seed(t, "Table", "90", 1)

	resp := doJSON(t, http.MethodPatch, env.server.URL+"/products/"+first.ID, `{"name":"Office Chair","price":"45.00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[catalogclient.ProductPayload](t, resp)
	assert.Equal(t, "Office Chair", updated.Name)
	assert.Equal(t, first.SKU, updated.SKU)

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/products/"+first.ID, map[string]string{"sku": second.SKU})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, env.server.URL+"/products/"+first.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	deactivated, err := env.svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive())

	resp = doJSON(t, http.MethodDelete, env.server.URL+"/products/"+first.ID+"/hard", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, env.server.URL+"/products/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductRouter_List(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)
	env.seed(t, "Red Pen", "1.20", 10)
	blue := env.seed(t, "Blue Pen", "1.10", 10)
	env.seed(t, "Stapler", "8.00", 3)
	require.NoError(t, env.svc.Deactivate(context.Background(), blue.ID))

	resp := doJSON(t, http.MethodGet, env.server.URL+"/products?search=pen&status=ACTIVE", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[ProductListResponse](t, resp)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Red Pen", page.Data[0].Name)
	assert.Equal(t, 1, page.Meta.Total)

	resp = doJSON(t, http.MethodGet, env.server.URL+"/products?sortBy=name&sortOrder=asc&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decode[ProductListResponse](t, resp)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Blue Pen", page.Data[0].Name)
	assert.True(t, page.Meta.HasNextPage)

	for _, query := range []string{"limit=abc", "limit=500", "sortBy=sku", "status=maybe"} {
		resp = doJSON(t, http.MethodGet, env.server.URL+"/products?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestCatalogClientAgainstRouter(t *testing.T) {
	t.Parallel()
	env := newCatalogEnv(t)
	product := env.seed(t, "Headphones", "59.90", 2)

	client, err := catalogclient.New(catalogclient.Config{BaseURL: env.server.URL}, catalogclient.WithLogger(quietLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	fetched, err := client.FetchProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.SKU, fetched.SKU)
	assert.True(t, fetched.IsActive())

	require.NoError(t, client.AdjustInventory(ctx, product.ID, -2))
	err = client.AdjustInventory(ctx, product.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInventoryRejected)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	_, err = client.FetchProduct(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
