package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func productRouter(db *gorm.DB) (*gin.Engine, *ProductHandler) {
	products := &ProductHandler{DB: db, Cache: cache.NewMemory(), Uploads: storage.Inline{}}
	auth := middleware.AuthRequired(db, nil, testCfg.JWTSecret)
	ownerOnly := middleware.RoleRequired(models.RoleStoreOwner, models.RoleAdmin)

	r := gin.New()
	r.GET("/api/products", products.List)
	r.GET("/api/products/search", products.SearchProducts)
	r.GET("/api/products/featured", products.Featured)
	r.GET("/api/products/:id", products.Get)
	r.POST("/api/store/products", auth, ownerOnly, products.Create)
	r.PUT("/api/store/products/:id", auth, ownerOnly, products.Update)
	r.PUT("/api/store/products/:id/stock", auth, ownerOnly, products.UpdateStock)
	r.DELETE("/api/store/products/:id", auth, ownerOnly, products.Delete)
	return r, products
}

func TestListProductsFilters(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	seedProduct(t, db, store, "Rice 5kg", 30, 10)
	milk := seedProduct(t, db, store, "Milk 1l", 20, 0)
	inactive := seedProduct(t, db, store, "Old stock", 5, 3)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	w := perform(t, r, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["products"], 2, "inactive products are hidden")

	w = perform(t, r, http.MethodGet, "/api/products?in_stock=true", nil, "")
	assert.Len(t, decode(t, w)["products"], 1)

	// Out-of-stock products report themselves unavailable.
	w = perform(t, r, http.MethodGet, fmt.Sprintf("/api/products/%d", milk.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)["product"].(map[string]any)
	assert.Equal(t, false, got["is_available"])
}

func TestSearchFallsBackToDatabase(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db) // Search index is nil

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	seedProduct(t, db, store, "Basmati Rice", 90, 10)
	seedProduct(t, db, store, "Brown Bread", 40, 10)

	w := perform(t, r, http.MethodGet, "/api/products/search?q=rice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "database", body["source"])
	assert.Equal(t, 1.0, body["count"])

	// Missing query is an error, not an empty result.
	assert.Equal(t, http.StatusBadRequest,
		perform(t, r, http.MethodGet, "/api/products/search", nil, "").Code)
}

func TestProductGetCachesSecondRead(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)
	path := fmt.Sprintf("/api/products/%d", rice.ID)

	w := perform(t, r, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "database", decode(t, w)["source"])

	w = perform(t, r, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cache", decode(t, w)["source"])
}

func TestCreateProductRequiresOwnership(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	rival := seedUser(t, db, "rival", models.RoleStoreOwner)
	store := seedStore(t, db, owner)

	payload := map[string]any{
		"store_id": store.ID,
		"name":     "Ghee 1kg",
		"category": "dairy",
		"price":    550,
	}

	assert.Equal(t, http.StatusCreated,
		perform(t, r, http.MethodPost, "/api/store/products", payload, tokenFor(t, owner)).Code)

	// Another owner cannot stock someone else's shelves.
	assert.Equal(t, http.StatusForbidden,
		perform(t, r, http.MethodPost, "/api/store/products", payload, tokenFor(t, rival)).Code)
}

func TestUpdateStockGuardsUnderflow(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 5)
	token := tokenFor(t, owner)
	path := fmt.Sprintf("/api/store/products/%d/stock", rice.ID)

	w := perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 3, "operation": "subtract"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Taking more than remains is refused, stock untouched.
	w = perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 10, "operation": "subtract"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var got models.Product
	db.First(&got, rice.ID)
	assert.Equal(t, 2, got.StockQuantity)

	w = perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 8, "operation": "add"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	db.First(&got, rice.ID)
	assert.Equal(t, 10, got.StockQuantity)

	// Unknown operation fails binding.
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 1, "operation": "divide"}, token).Code)
}

func TestSetStockToZeroMarksOutOfStock(t *testing.T) {
	db := testDB(t)
	r, _ := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 5)
	token := tokenFor(t, owner)
	path := fmt.Sprintf("/api/store/products/%d/stock", rice.ID)

	// "set" takes zero so an owner can pull a product off the shelf.
	w := perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 0, "operation": "set"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Product
	db.First(&got, rice.ID)
	assert.Equal(t, 0, got.StockQuantity)

	// But add and subtract still need at least one unit.
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 0, "operation": "add"}, token).Code)
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPut, path,
		map[string]any{"quantity": 0, "operation": "subtract"}, token).Code)

	// A missing quantity is still a binding error.
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPut, path,
		map[string]any{"operation": "set"}, token).Code)
}

func TestDeleteProductIsSoftAndDropsCache(t *testing.T) {
	db := testDB(t)
	r, products := productRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 5)

	// Warm the cache.
	require.Equal(t, http.StatusOK,
		perform(t, r, http.MethodGet, fmt.Sprintf("/api/products/%d", rice.ID), nil, "").Code)

	w := perform(t, r, http.MethodDelete,
		fmt.Sprintf("/api/store/products/%d", rice.ID), nil, tokenFor(t, owner))
	require.Equal(t, http.StatusOK, w.Code)

	// Row survives with is_active off.
	var got models.Product
	require.NoError(t, db.First(&got, rice.ID).Error)
	assert.False(t, got.IsActive)

	// And the cached copy is gone.
	var cached models.Product
	ok, err := products.Cache.Get(t.Context(), cache.KindProduct, idKey(rice.ID), &cached)
	require.NoError(t, err)
	assert.False(t, ok)
}
