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

func storeRouter(db *gorm.DB) *gin.Engine {
	stores := &StoreHandler{DB: db, Cache: cache.NewMemory(), Uploads: storage.Inline{}}
	auth := middleware.AuthRequired(db, nil, testCfg.JWTSecret)
	ownerOnly := middleware.RoleRequired(models.RoleStoreOwner, models.RoleAdmin)
	adminOnly := middleware.RoleRequired(models.RoleAdmin)

	r := gin.New()
	r.GET("/api/stores", stores.List)
	r.GET("/api/stores/nearby", stores.Nearby)
	r.GET("/api/stores/:id", stores.Get)
	r.POST("/api/store/", auth, ownerOnly, stores.Create)
	r.PUT("/api/store/:id", auth, ownerOnly, stores.Update)
	r.PUT("/api/store/:id/hours", auth, ownerOnly, stores.UpdateOperatingHours)
	r.DELETE("/api/store/:id", auth, ownerOnly, stores.Delete)
	r.PUT("/api/admin/stores/:id/verify", auth, adminOnly, stores.Verify)
	return r
}

func TestNearbyHonorsDeliveryRadius(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	near := seedStore(t, db, owner) // at 12.9716, 77.5946 with 10 km radius

	farAway := seedStore(t, db, owner)
	require.NoError(t, db.Model(farAway).Updates(map[string]interface{}{
		"name":        "Mysore Mart",
		"coordinates": models.Coordinates{Lat: 12.2958, Lng: 76.6394},
	}).Error)

	w := perform(t, r, http.MethodGet, "/api/stores/nearby?lat=12.9750&lng=77.5950", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	require.Equal(t, 1.0, body["count"], "only the store whose radius covers the point")
	entry := body["stores"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(near.ID), entry["store"].(map[string]any)["id"])
	assert.Less(t, entry["distance_km"].(float64), 1.0)
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	assert.Equal(t, http.StatusBadRequest,
		perform(t, r, http.MethodGet, "/api/stores/nearby", nil, "").Code)
}

func TestCreateStoreDefaultsRadius(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)
	owner := seedUser(t, db, "owner", models.RoleStoreOwner)

	w := perform(t, r, http.MethodPost, "/api/store/", map[string]any{
		"name":     "Corner Shop",
		"category": "grocery",
		"phone":    "9876543210",
		"address":  map[string]any{"street": "2 Cross", "city": "Bangalore", "state": "KA", "pincode": "560002"},
	}, tokenFor(t, owner))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var store models.Store
	require.NoError(t, db.Where("name = ?", "Corner Shop").First(&store).Error)
	assert.Equal(t, 5.0, store.DeliveryRadiusKm)
	assert.Equal(t, "Bangalore", store.City)
	assert.Equal(t, owner.ID, store.OwnerID)
}

func TestUpdateOperatingHoursValidates(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	token := tokenFor(t, owner)
	path := fmt.Sprintf("/api/store/%d/hours", store.ID)

	good := map[string]any{
		"mon": map[string]any{"isOpen": true, "open": "09:00", "close": "21:00"},
		"sun": map[string]any{"isOpen": false},
	}
	require.Equal(t, http.StatusOK, perform(t, r, http.MethodPut, path, good, token).Code)

	var got models.Store
	db.First(&got, store.ID)
	assert.Equal(t, "09:00", got.OperatingHours["mon"].Open)

	bad := map[string]any{
		"mon": map[string]any{"isOpen": true, "open": "21:00", "close": "09:00"},
	}
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPut, path, bad, token).Code)
}

func TestStoreOwnershipEnforced(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	rival := seedUser(t, db, "rival", models.RoleStoreOwner)
	store := seedStore(t, db, owner)

	w := perform(t, r, http.MethodPut, fmt.Sprintf("/api/store/%d", store.ID),
		map[string]any{"name": "Hijacked"}, tokenFor(t, rival))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteStoreDeactivatesProducts(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	store := seedStore(t, db, owner)
	rice := seedProduct(t, db, store, "Rice 5kg", 30, 5)

	w := perform(t, r, http.MethodDelete, fmt.Sprintf("/api/store/%d", store.ID), nil, tokenFor(t, owner))
	require.Equal(t, http.StatusOK, w.Code)

	var gotStore models.Store
	var gotProduct models.Product
	db.First(&gotStore, store.ID)
	db.First(&gotProduct, rice.ID)
	assert.False(t, gotStore.IsActive)
	assert.False(t, gotProduct.IsActive, "the store's catalog goes dark with it")
}

func TestVerifyIsAdminOnly(t *testing.T) {
	db := testDB(t)
	r := storeRouter(db)

	owner := seedUser(t, db, "owner", models.RoleStoreOwner)
	admin := seedUser(t, db, "root", models.RoleAdmin)
	store := seedStore(t, db, owner)
	path := fmt.Sprintf("/api/admin/stores/%d/verify", store.ID)

	assert.Equal(t, http.StatusForbidden,
		perform(t, r, http.MethodPut, path, nil, tokenFor(t, owner)).Code)

	require.Equal(t, http.StatusOK,
		perform(t, r, http.MethodPut, path, nil, tokenFor(t, admin)).Code)

	var got models.Store
	db.First(&got, store.ID)
	assert.True(t, got.IsVerified)
}
