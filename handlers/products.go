package handlers

import (
	"fmt"
	"io"
	"net/http"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/search"
	"grocery-delivery-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductHandler struct {
	DB      *gorm.DB
	Cache   cache.Service
	Search  *search.Index // nil when ES is not configured
	Uploads storage.Uploader
}

// List returns products with filters and pagination (public)
func (h *ProductHandler) List(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Product{}).Where("is_active = ?", true)
	if storeID := c.Query("store_id"); storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if minPrice := c.Query("min_price"); minPrice != "" {
		query = query.Where("price >= ?", minPrice)
	}
	if maxPrice := c.Query("max_price"); maxPrice != "" {
		query = query.Where("price <= ?", maxPrice)
	}
	if c.Query("in_stock") == "true" {
		query = query.Where("stock_quantity > 0")
	}

	var total int64
	query.Count(&total)

	var products []models.Product
	query.Order("created_at desc").Offset(offset).Limit(limit).Find(&products)

	c.JSON(http.StatusOK, gin.H{"products": products, "pagination": pageMeta(page, limit, total)})
}

// SearchProducts serves /products/search: Elasticsearch when available,
// SQL pattern match otherwise. A failing index degrades to the database —
// search never errors out because the optional layer is down.
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query 'q' is required"})
		return
	}
	_, limit, offset := pagination(c)

	if h.Search != nil {
		ids, err := h.Search.Search(c.Request.Context(), q, offset, limit)
		if err != nil {
			advise(c.Request.Context(), "product search index failed", err)
		} else if len(ids) > 0 {
			var products []models.Product
			h.DB.Where("id IN ? AND is_active = ?", ids, true).Find(&products)
			ordered := orderByIDs(products, ids)
			c.JSON(http.StatusOK, gin.H{"query": q, "count": len(ordered), "products": ordered, "source": "index"})
			return
		}
	}

	pattern := "%" + q + "%"
	var products []models.Product
	h.DB.Where("is_active = ? AND (name LIKE ? OR description LIKE ? OR category LIKE ?)",
		true, pattern, pattern, pattern).
		Offset(offset).Limit(limit).Find(&products)

	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(products), "products": products, "source": "database"})
}

// Featured returns the flagged products for the storefront landing page.
func (h *ProductHandler) Featured(c *gin.Context) {
	var products []models.Product
	h.DB.Where("is_featured = ? AND is_active = ? AND stock_quantity > 0", true, true).
		Order("rating desc").Limit(20).Find(&products)
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

// Categories lists active categories in display order.
func (h *ProductHandler) Categories(c *gin.Context) {
	var categories []models.Category
	h.DB.Where("is_active = ?", true).Order("sort_order asc, name asc").Find(&categories)
	c.JSON(http.StatusOK, gin.H{"count": len(categories), "categories": categories})
}

// Get returns a single product, cache first.
func (h *ProductHandler) Get(c *gin.Context) {
	id := c.Param("id")

	if h.Cache != nil {
		var cached models.Product
		ok, err := h.Cache.Get(c.Request.Context(), cache.KindProduct, id, &cached)
		advise(c.Request.Context(), "product cache read failed", err)
		if ok {
			cached.Refresh()
			c.JSON(http.StatusOK, gin.H{"product": cached, "source": "cache"})
			return
		}
	}

	var product models.Product
	if err := h.DB.Preload("Store").First(&product, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	if h.Cache != nil {
		// Fire-and-forget repopulate; a failure is logged, never surfaced.
		err := h.Cache.Put(c.Request.Context(), cache.KindProduct, id, &product)
		advise(c.Request.Context(), "product cache write failed", err)
	}

	c.JSON(http.StatusOK, gin.H{"product": product, "source": "database"})
}

type ProductRequest struct {
	StoreID       uint     `json:"store_id" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	Category      string   `json:"category" binding:"required"`
	Price         float64  `json:"price" binding:"required,gt=0"`
	Unit          string   `json:"unit"`
	StockQuantity int      `json:"stock_quantity" binding:"min=0"`
	Images        []string `json:"images"`
	IsFeatured    bool     `json:"is_featured"`
}

// Create adds a product to one of the caller's stores (store owner only)
func (h *ProductHandler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := h.ownedStore(c, req.StoreID)
	if !ok {
		return
	}

	product := models.Product{
		StoreID:       store.ID,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		Unit:          req.Unit,
		StockQuantity: req.StockQuantity,
		Images:        req.Images,
		IsFeatured:    req.IsFeatured,
		IsActive:      true,
	}
	if product.Unit == "" {
		product.Unit = "pcs"
	}

	if err := h.DB.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	product.Refresh()
	h.afterWrite(c, &product)

	c.JSON(http.StatusCreated, gin.H{"message": "Product created successfully", "product": product})
}

type ProductUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Unit        *string  `json:"unit"`
	Images      []string `json:"images"`
	IsFeatured  *bool    `json:"is_featured"`
	IsActive    *bool    `json:"is_active"`
}

// Update patches product fields (owner or admin)
func (h *ProductHandler) Update(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	var req ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price != nil && *req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.DB.Save(product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	product.Refresh()
	h.afterWrite(c, product)

	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": product})
}

type StockUpdateRequest struct {
	// Pointer so "set" can take 0 (out of stock) past the required check.
	Quantity  *int   `json:"quantity" binding:"required,min=0"`
	Operation string `json:"operation" binding:"required,oneof=add subtract set"`
}

// UpdateStock adjusts stock. Subtraction is guarded so stock never goes
// negative, even under concurrent requests.
func (h *ProductHandler) UpdateStock(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	var req StockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	qty := *req.Quantity
	if qty == 0 && req.Operation != "set" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
		return
	}

	var res *gorm.DB
	switch req.Operation {
	case "add":
		res = h.DB.Model(product).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	case "subtract":
		res = h.DB.Model(product).
			Where("stock_quantity >= ?", qty).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
		if res.Error == nil && res.RowsAffected == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
			return
		}
	case "set":
		res = h.DB.Model(product).UpdateColumn("stock_quantity", qty)
	}
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
		return
	}

	h.DB.First(product, product.ID)
	h.afterWrite(c, product)

	c.JSON(http.StatusOK, gin.H{
		"message":        "Stock updated",
		"product_id":     product.ID,
		"stock_quantity": product.StockQuantity,
		"is_available":   product.IsAvailable,
	})
}

// UploadImages stores up to five product photos through the blob layer.
func (h *ProductHandler) UploadImages(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with 'images' files is required"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 || len(files) > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Between 1 and 5 images are required"})
		return
	}

	var urls []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, 5<<20))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
			return
		}
		key := fmt.Sprintf("products/%d/%s", product.ID, uuid.NewString())
		url, err := h.Uploads.Upload(c.Request.Context(), key, fh.Header.Get("Content-Type"), data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
			return
		}
		urls = append(urls, url)
	}

	product.Images = append(product.Images, urls...)
	if err := h.DB.Model(product).Update("images", product.Images).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	h.afterWrite(c, product)

	c.JSON(http.StatusOK, gin.H{"message": "Images uploaded", "images": product.Images})
}

type RateRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"max=500"`
}

// Rate folds a customer's rating into the product's running average.
// No purchase check; any authenticated customer may rate.
func (h *ProductHandler) Rate(c *gin.Context) {
	var product models.Product
	if err := h.DB.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product.ApplyRating(req.Rating)
	if err := h.DB.Model(&product).Updates(map[string]interface{}{
		"rating":       product.Rating,
		"review_count": product.ReviewCount,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rate product"})
		return
	}
	h.afterWrite(c, &product)

	c.JSON(http.StatusOK, gin.H{
		"message":      "Product rated successfully",
		"rating":       product.Rating,
		"review_count": product.ReviewCount,
	})
}

// Delete soft-deletes by flipping is_active.
func (h *ProductHandler) Delete(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	if err := h.DB.Model(product).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	if h.Cache != nil {
		err := h.Cache.Delete(c.Request.Context(), cache.KindProduct, idKey(product.ID))
		advise(c.Request.Context(), "product cache delete failed", err)
	}
	if h.Search != nil {
		err := h.Search.RemoveProduct(c.Request.Context(), product.ID)
		advise(c.Request.Context(), "product index remove failed", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "product_id": product.ID})
}

// afterWrite refreshes the advisory layers after a successful DB write:
// cache entry replaced, search document upserted. Database first, always.
func (h *ProductHandler) afterWrite(c *gin.Context, p *models.Product) {
	ctx := c.Request.Context()
	if h.Cache != nil {
		advise(ctx, "product cache write failed", h.Cache.Put(ctx, cache.KindProduct, idKey(p.ID), p))
	}
	if h.Search != nil {
		advise(ctx, "product index write failed", h.Search.IndexProduct(ctx, p))
	}
}

// ownedProduct loads the product from :id and enforces that the caller
// owns its store (or is an admin).
func (h *ProductHandler) ownedProduct(c *gin.Context) (*models.Product, bool) {
	var product models.Product
	if err := h.DB.Preload("Store").First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}

	if middleware.GetRole(c) != models.RoleAdmin && product.Store.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This product does not belong to your store"})
		return nil, false
	}
	return &product, true
}

// ownedStore loads a store by id and enforces ownership (or admin).
func (h *ProductHandler) ownedStore(c *gin.Context, storeID uint) (*models.Store, bool) {
	var store models.Store
	if err := h.DB.First(&store, storeID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return nil, false
	}
	if middleware.GetRole(c) != models.RoleAdmin && store.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This store does not belong to you"})
		return nil, false
	}
	return &store, true
}

// orderByIDs re-sorts products into the relevance order the index gave.
func orderByIDs(products []models.Product, ids []uint) []models.Product {
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(products))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
