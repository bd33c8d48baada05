package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func orderRouter(db *gorm.DB) *gin.Engine {
	orders := &OrderHandler{DB: db, Cache: cache.NewMemory()}
	auth := middleware.AuthRequired(db, nil, testCfg.JWTSecret)

	r := gin.New()
	r.POST("/api/customer/orders", auth, middleware.RoleRequired(models.RoleCustomer), orders.Create)
	r.PUT("/api/customer/orders/:id/cancel", auth, middleware.RoleRequired(models.RoleCustomer), orders.Cancel)
	r.POST("/api/customer/orders/:id/rating", auth, middleware.RoleRequired(models.RoleCustomer), orders.Rate)
	r.GET("/api/orders/:id", auth, orders.Get)
	r.PUT("/api/store/orders/:id/status", auth,
		middleware.RoleRequired(models.RoleStoreOwner, models.RoleAdmin), orders.UpdateStatus)
	r.GET("/api/orders/track/:number", orders.Track)
	return r
}

func placeOrder(t *testing.T, r http.Handler, token string, store *models.Store, items []map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return perform(t, r, http.MethodPost, "/api/customer/orders", map[string]any{
		"store_id":         store.ID,
		"items":            items,
		"delivery_address": map[string]any{"street": "1 Main St", "city": "Bangalore", "state": "KA", "pincode": "560001"},
		"payment_method":   "cod",
	}, token)
}

func TestCreateOrderComputesTotalsAndDecrementsStock(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)
	milk := seedProduct(t, db, store, "Milk 1l", 20, 5)

	w := placeOrder(t, r, tokenFor(t, customer), store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
		{"product_id": milk.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", customer.ID).First(&order).Error)
	assert.Equal(t, 100.0, order.Subtotal)
	assert.Equal(t, 5.0, order.Tax)
	assert.Equal(t, 25.0, order.DeliveryFee)
	assert.Equal(t, 130.0, order.Total)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Contains(t, order.OrderNumber, "ORD-")
	assert.Len(t, order.Items, 2)

	// Stock came off the shelf.
	var gotRice, gotMilk models.Product
	db.First(&gotRice, rice.ID)
	db.First(&gotMilk, milk.ID)
	assert.Equal(t, 8, gotRice.StockQuantity)
	assert.Equal(t, 3, gotMilk.StockQuantity)

	// And the audit trail started.
	var history []models.OrderStatusHistory
	db.Where("order_id = ?", order.ID).Find(&history)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].ToStatus)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 3)

	w := placeOrder(t, r, tokenFor(t, customer), store, []map[string]any{
		{"product_id": rice.ID, "quantity": 5},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing was decremented and no order exists.
	var got models.Product
	db.First(&got, rice.ID)
	assert.Equal(t, 3, got.StockQuantity)
	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateOrderBelowStoreMinimum(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner) // minimum 50
	milk := seedProduct(t, db, store, "Milk 1l", 20, 5)

	w := placeOrder(t, r, tokenFor(t, customer), store, []map[string]any{
		{"product_id": milk.ID, "quantity": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The failed attempt must not leak a stock decrement.
	var got models.Product
	db.First(&got, milk.ID)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestCreateOrderClosedStore(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	require.NoError(t, db.Model(store).Update("is_open", false).Error)
	milk := seedProduct(t, db, store, "Milk 1l", 20, 5)

	w := placeOrder(t, r, tokenFor(t, customer), store, []map[string]any{
		{"product_id": milk.ID, "quantity": 3},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderForeignProductRejected(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	storeA := seedStore(t, db, owner)
	storeB := seedStore(t, db, owner)
	foreign := seedProduct(t, db, storeB, "Bread", 40, 5)

	w := placeOrder(t, r, tokenFor(t, customer), storeA, []map[string]any{
		{"product_id": foreign.ID, "quantity": 2},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	token := tokenFor(t, customer)
	w := placeOrder(t, r, token, store, []map[string]any{
		{"product_id": rice.ID, "quantity": 4},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", customer.ID).First(&order).Error)

	wc := perform(t, r, http.MethodPut,
		fmt.Sprintf("/api/customer/orders/%d/cancel", order.ID),
		map[string]any{"reason": "Changed my mind"}, token)
	require.Equal(t, http.StatusOK, wc.Code, wc.Body.String())

	db.First(&order, order.ID)
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Equal(t, "Changed my mind", order.CancellationReason)

	var got models.Product
	db.First(&got, rice.ID)
	assert.Equal(t, 10, got.StockQuantity, "cancelled stock goes back on the shelf")
}

func TestCustomerCannotCancelAfterPickup(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	token := tokenFor(t, customer)
	w := placeOrder(t, r, token, store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", customer.ID).First(&order).Error)
	require.NoError(t, db.Model(&order).Update("status", models.StatusReadyForPickup).Error)

	wc := perform(t, r, http.MethodPut,
		fmt.Sprintf("/api/customer/orders/%d/cancel", order.ID),
		map[string]any{"reason": "Too late anyway"}, token)
	assert.Equal(t, http.StatusBadRequest, wc.Code)
}

func TestStoreOwnerDrivesLifecycle(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	w := placeOrder(t, r, tokenFor(t, customer), store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", customer.ID).First(&order).Error)

	ownerToken := tokenFor(t, owner)
	statusPath := fmt.Sprintf("/api/store/orders/%d/status", order.ID)

	// pending -> confirmed -> preparing -> ready_for_pickup all belong to
	// the store owner.
	for _, next := range []models.OrderStatus{
		models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
	} {
		ws := perform(t, r, http.MethodPut, statusPath, map[string]any{"status": next}, ownerToken)
		require.Equal(t, http.StatusOK, ws.Code, "to %s: %s", next, ws.Body.String())
	}

	// But the hand-off to the road is not theirs.
	ws := perform(t, r, http.MethodPut, statusPath,
		map[string]any{"status": models.StatusOutForDelivery}, ownerToken)
	assert.Equal(t, http.StatusBadRequest, ws.Code)

	// And state skipping is rejected outright.
	ws = perform(t, r, http.MethodPut, statusPath,
		map[string]any{"status": models.StatusDelivered}, ownerToken)
	assert.Equal(t, http.StatusBadRequest, ws.Code)
}

func TestOrderVisibilityScoped(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	mallory := seedUser(t, db, "mallory", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	w := placeOrder(t, r, tokenFor(t, alice), store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", alice.ID).First(&order).Error)
	path := fmt.Sprintf("/api/orders/%d", order.ID)

	assert.Equal(t, http.StatusOK, perform(t, r, http.MethodGet, path, nil, tokenFor(t, alice)).Code)
	assert.Equal(t, http.StatusOK, perform(t, r, http.MethodGet, path, nil, tokenFor(t, owner)).Code)
	assert.Equal(t, http.StatusForbidden, perform(t, r, http.MethodGet, path, nil, tokenFor(t, mallory)).Code)
}

func TestPublicTracking(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	w := placeOrder(t, r, tokenFor(t, alice), store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", alice.ID).First(&order).Error)

	// No token needed, keyed by order number.
	wt := perform(t, r, http.MethodGet, "/api/orders/track/"+order.OrderNumber, nil, "")
	require.Equal(t, http.StatusOK, wt.Code)
	body := decode(t, wt)
	assert.Equal(t, string(models.StatusPending), body["status"])
	assert.Equal(t, "Green Grocer", body["store_name"])

	assert.Equal(t, http.StatusNotFound,
		perform(t, r, http.MethodGet, "/api/orders/track/ORD-00000000-deadbeef", nil, "").Code)
}

func TestRateDeliveredOrderUpdatesStore(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	token := tokenFor(t, alice)
	w := placeOrder(t, r, token, store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", alice.ID).First(&order).Error)
	ratePath := fmt.Sprintf("/api/customer/orders/%d/rating", order.ID)

	// Not delivered yet.
	wr := perform(t, r, http.MethodPost, ratePath, map[string]any{"rating": 5}, token)
	assert.Equal(t, http.StatusBadRequest, wr.Code)

	require.NoError(t, db.Model(&order).Update("status", models.StatusDelivered).Error)
	wr = perform(t, r, http.MethodPost, ratePath,
		map[string]any{"rating": 5, "review": "Fast and fresh"}, token)
	require.Equal(t, http.StatusOK, wr.Code, wr.Body.String())

	var gotStore models.Store
	db.First(&gotStore, store.ID)
	assert.Equal(t, 1, gotStore.ReviewCount)
	assert.InDelta(t, 5.0, gotStore.Rating, 0.001)

	// Second rating on the same order is rejected.
	wr = perform(t, r, http.MethodPost, ratePath, map[string]any{"rating": 1}, token)
	assert.Equal(t, http.StatusConflict, wr.Code)
}

func TestOrderGetCachesSecondRead(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)
	token := tokenFor(t, alice)

	w := placeOrder(t, r, token, store, []map[string]any{
		{"product_id": rice.ID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", alice.ID).First(&order).Error)
	path := fmt.Sprintf("/api/orders/%d", order.ID)

	first := decode(t, perform(t, r, http.MethodGet, path, nil, token))
	assert.Equal(t, "database", first["source"])

	second := decode(t, perform(t, r, http.MethodGet, path, nil, token))
	assert.Equal(t, "cache", second["source"])

	// A status change drops the cached copy, so the next read is fresh.
	ws := perform(t, r, http.MethodPut, fmt.Sprintf("/api/store/orders/%d/status", order.ID),
		map[string]any{"status": models.StatusConfirmed}, tokenFor(t, owner))
	require.Equal(t, http.StatusOK, ws.Code, ws.Body.String())

	third := decode(t, perform(t, r, http.MethodGet, path, nil, token))
	assert.Equal(t, "database", third["source"])
	got := third["order"].(map[string]any)
	assert.Equal(t, string(models.StatusConfirmed), got["status"])
}

func TestCachedOrderStillScoped(t *testing.T) {
	db := testDB(t)
	r := orderRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	mallory := seedUser(t, db, "mallory", models.RoleCustomer)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 10)

	token := tokenFor(t, alice)
	require.Equal(t, http.StatusCreated, placeOrder(t, r, token, store, []map[string]any{
		{"product_id": rice.ID, "quantity": 1},
	}).Code)

	var order models.Order
	require.NoError(t, db.Where("customer_id = ?", alice.ID).First(&order).Error)
	path := fmt.Sprintf("/api/orders/%d", order.ID)

	// Warm the cache, then make sure the cached copy is still access
	// checked for other callers.
	require.Equal(t, http.StatusOK, perform(t, r, http.MethodGet, path, nil, token).Code)
	assert.Equal(t, http.StatusForbidden,
		perform(t, r, http.MethodGet, path, nil, tokenFor(t, mallory)).Code)
}
