package handlers

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/geo"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StoreHandler struct {
	DB      *gorm.DB
	Cache   cache.Service
	Uploads storage.Uploader
}

// List returns active stores with optional filters (public)
func (h *StoreHandler) List(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Store{}).Where("is_active = ?", true)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if city := c.Query("city"); city != "" {
		query = query.Where("city = ?", city)
	}
	if c.Query("verified") == "true" {
		query = query.Where("is_verified = ?", true)
	}

	var total int64
	query.Count(&total)

	var stores []models.Store
	query.Order("rating desc").Offset(offset).Limit(limit).Find(&stores)

	now := time.Now()
	open := make([]gin.H, 0, len(stores))
	for i := range stores {
		open = append(open, gin.H{"store": stores[i], "is_open_now": stores[i].IsOpenAt(now)})
	}

	c.JSON(http.StatusOK, gin.H{"stores": open, "pagination": pageMeta(page, limit, total)})
}

// Nearby returns stores whose delivery radius covers the given point,
// sorted by distance. The radius check uses each store's own setting.
func (h *StoreHandler) Nearby(c *gin.Context) {
	var query struct {
		Lat float64 `form:"lat" binding:"required"`
		Lng float64 `form:"lng" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}
	point := models.Coordinates{Lat: query.Lat, Lng: query.Lng}

	var stores []models.Store
	h.DB.Where("is_active = ?", true).Find(&stores)

	type nearbyStore struct {
		Store      models.Store `json:"store"`
		DistanceKm float64      `json:"distance_km"`
		IsOpenNow  bool         `json:"is_open_now"`
	}
	now := time.Now()
	var nearby []nearbyStore
	for i := range stores {
		if stores[i].Coordinates.Zero() {
			continue
		}
		km := geo.Distance(point, stores[i].Coordinates) / 1000
		if km > stores[i].DeliveryRadiusKm {
			continue
		}
		nearby = append(nearby, nearbyStore{
			Store:      stores[i],
			DistanceKm: roundKm(km),
			IsOpenNow:  stores[i].IsOpenAt(now),
		})
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })

	c.JSON(http.StatusOK, gin.H{"count": len(nearby), "stores": nearby})
}

// Get returns one store with its active products, cache first.
func (h *StoreHandler) Get(c *gin.Context) {
	id := c.Param("id")

	if h.Cache != nil {
		var cached models.Store
		ok, err := h.Cache.Get(c.Request.Context(), cache.KindStore, id, &cached)
		advise(c.Request.Context(), "store cache read failed", err)
		if ok {
			c.JSON(http.StatusOK, gin.H{"store": cached, "is_open_now": cached.IsOpenAt(time.Now()), "source": "cache"})
			return
		}
	}

	var store models.Store
	if err := h.DB.First(&store, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	}

	if h.Cache != nil {
		err := h.Cache.Put(c.Request.Context(), cache.KindStore, id, &store)
		advise(c.Request.Context(), "store cache write failed", err)
	}

	c.JSON(http.StatusOK, gin.H{"store": store, "is_open_now": store.IsOpenAt(time.Now()), "source": "database"})
}

// Products lists a store's active products (public)
func (h *StoreHandler) Products(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Product{}).
		Where("store_id = ? AND is_active = ?", c.Param("id"), true)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	query.Count(&total)

	var products []models.Product
	query.Order("name asc").Offset(offset).Limit(limit).Find(&products)

	c.JSON(http.StatusOK, gin.H{"products": products, "pagination": pageMeta(page, limit, total)})
}

// MyStores lists the authenticated owner's stores.
func (h *StoreHandler) MyStores(c *gin.Context) {
	var stores []models.Store
	h.DB.Where("owner_id = ?", middleware.GetUserID(c)).Find(&stores)
	c.JSON(http.StatusOK, gin.H{"count": len(stores), "stores": stores})
}

type StoreRequest struct {
	Name               string                `json:"name" binding:"required"`
	Description        string                `json:"description"`
	Category           string                `json:"category" binding:"required"`
	Phone              string                `json:"phone" binding:"required"`
	Email              string                `json:"email" binding:"omitempty,email"`
	Address            models.Address        `json:"address" binding:"required"`
	Coordinates        models.Coordinates    `json:"coordinates"`
	OperatingHours     models.OperatingHours `json:"operating_hours"`
	DeliveryRadiusKm   float64               `json:"delivery_radius_km"`
	DeliveryFee        float64               `json:"delivery_fee"`
	MinimumOrderAmount float64               `json:"minimum_order_amount"`
}

// Create registers a new store for the authenticated owner.
func (h *StoreHandler) Create(c *gin.Context) {
	var req StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store := models.Store{
		OwnerID:            middleware.GetUserID(c),
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		Phone:              req.Phone,
		Email:              req.Email,
		Address:            req.Address,
		Coordinates:        req.Coordinates,
		City:               req.Address.City,
		OperatingHours:     req.OperatingHours,
		DeliveryRadiusKm:   req.DeliveryRadiusKm,
		DeliveryFee:        req.DeliveryFee,
		MinimumOrderAmount: req.MinimumOrderAmount,
		IsOpen:             true,
		IsActive:           true,
	}
	if store.DeliveryRadiusKm <= 0 {
		store.DeliveryRadiusKm = 5
	}

	if err := h.DB.Create(&store).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create store"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Store created successfully", "store": store})
}

type StoreUpdateRequest struct {
	Name               *string             `json:"name"`
	Description        *string             `json:"description"`
	Category           *string             `json:"category"`
	Phone              *string             `json:"phone"`
	Email              *string             `json:"email"`
	Address            *models.Address     `json:"address"`
	Coordinates        *models.Coordinates `json:"coordinates"`
	DeliveryRadiusKm   *float64            `json:"delivery_radius_km"`
	DeliveryFee        *float64            `json:"delivery_fee"`
	MinimumOrderAmount *float64            `json:"minimum_order_amount"`
	IsOpen             *bool               `json:"is_open"`
	IsActive           *bool               `json:"is_active"`
}

// Update patches store fields (owner or admin)
func (h *StoreHandler) Update(c *gin.Context) {
	store, ok := h.owned(c)
	if !ok {
		return
	}

	var req StoreUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		store.Name = *req.Name
	}
	if req.Description != nil {
		store.Description = *req.Description
	}
	if req.Category != nil {
		store.Category = *req.Category
	}
	if req.Phone != nil {
		store.Phone = *req.Phone
	}
	if req.Email != nil {
		store.Email = *req.Email
	}
	if req.Address != nil {
		store.Address = *req.Address
		store.City = req.Address.City
	}
	if req.Coordinates != nil {
		store.Coordinates = *req.Coordinates
	}
	if req.DeliveryRadiusKm != nil {
		store.DeliveryRadiusKm = *req.DeliveryRadiusKm
	}
	if req.DeliveryFee != nil {
		store.DeliveryFee = *req.DeliveryFee
	}
	if req.MinimumOrderAmount != nil {
		store.MinimumOrderAmount = *req.MinimumOrderAmount
	}
	if req.IsOpen != nil {
		store.IsOpen = *req.IsOpen
	}
	if req.IsActive != nil && middleware.GetRole(c) == models.RoleAdmin {
		store.IsActive = *req.IsActive
	}

	if err := h.DB.Save(store).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update store"})
		return
	}
	h.dropCache(c, store.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Store updated successfully", "store": store})
}

// UpdateOperatingHours replaces the weekly schedule.
func (h *StoreHandler) UpdateOperatingHours(c *gin.Context) {
	store, ok := h.owned(c)
	if !ok {
		return
	}

	var hours models.OperatingHours
	if err := c.ShouldBindJSON(&hours); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := hours.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store.OperatingHours = hours
	if err := h.DB.Model(store).Update("operating_hours", hours).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update operating hours"})
		return
	}
	h.dropCache(c, store.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Operating hours updated", "operating_hours": hours})
}

// UploadLogo stores the store logo image.
func (h *StoreHandler) UploadLogo(c *gin.Context) {
	h.uploadImage(c, "logo")
}

// UploadBanner stores the store banner image.
func (h *StoreHandler) UploadBanner(c *gin.Context) {
	h.uploadImage(c, "banner")
}

func (h *StoreHandler) uploadImage(c *gin.Context, field string) {
	store, ok := h.owned(c)
	if !ok {
		return
	}

	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("A '%s' file is required", field)})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, 5<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}

	key := fmt.Sprintf("stores/%d/%s-%s", store.ID, field, uuid.NewString())
	url, err := h.Uploads.Upload(c.Request.Context(), key, fh.Header.Get("Content-Type"), data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	column := field + "_url"
	if err := h.DB.Model(store).Update(column, url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update store"})
		return
	}
	h.dropCache(c, store.ID)

	c.JSON(http.StatusOK, gin.H{"message": field + " uploaded", "url": url})
}

// Delete soft-deletes the store and deactivates its products.
func (h *StoreHandler) Delete(c *gin.Context) {
	store, ok := h.owned(c)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(store).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Product{}).
			Where("store_id = ?", store.ID).
			Update("is_active", false).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete store"})
		return
	}
	h.dropCache(c, store.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Store deleted", "store_id": store.ID})
}

// Verify marks a store verified (admin only)
func (h *StoreHandler) Verify(c *gin.Context) {
	var store models.Store
	if err := h.DB.First(&store, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	}

	if err := h.DB.Model(&store).Update("is_verified", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify store"})
		return
	}
	h.dropCache(c, store.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Store verified", "store_id": store.ID})
}

func (h *StoreHandler) owned(c *gin.Context) (*models.Store, bool) {
	var store models.Store
	if err := h.DB.First(&store, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return nil, false
	}
	if middleware.GetRole(c) != models.RoleAdmin && store.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This store does not belong to you"})
		return nil, false
	}
	return &store, true
}

func (h *StoreHandler) dropCache(c *gin.Context, id uint) {
	if h.Cache == nil {
		return
	}
	err := h.Cache.Delete(c.Request.Context(), cache.KindStore, idKey(id))
	advise(c.Request.Context(), "store cache delete failed", err)
}

func roundKm(km float64) float64 {
	return float64(int(km*100+0.5)) / 100
}
