package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type OrderHandler struct {
	DB    *gorm.DB
	Cache cache.Service
}

// List returns orders visible to the caller: customers see their own,
// store owners their stores', delivery partners their assignments,
// admins everything.
func (h *OrderHandler) List(c *gin.Context) {
	page, limit, offset := pagination(c)
	userID := middleware.GetUserID(c)

	query := h.DB.Model(&models.Order{})
	switch middleware.GetRole(c) {
	case models.RoleCustomer:
		query = query.Where("customer_id = ?", userID)
	case models.RoleStoreOwner:
		query = query.Where("store_id IN (?)",
			h.DB.Model(&models.Store{}).Select("id").Where("owner_id = ?", userID))
	case models.RoleDeliveryPartner:
		query = query.Where("delivery_partner_id = ?", userID)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if storeID := c.Query("store_id"); storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}

	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Preload("Store").Order("created_at desc").Offset(offset).Limit(limit).Find(&orders)

	c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": pageMeta(page, limit, total)})
}

// Get returns one order if the caller is a party to it, cache first.
func (h *OrderHandler) Get(c *gin.Context) {
	order, source, ok := h.cachedOrder(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":             order,
		"valid_next_states": statemachine.ValidTransitionsFrom(order.Status),
		"source":            source,
	})
}

// History returns the order's status audit trail.
func (h *OrderHandler) History(c *gin.Context) {
	order, _, ok := h.cachedOrder(c)
	if !ok {
		return
	}

	var history []models.OrderStatusHistory
	h.DB.Where("order_id = ?", order.ID).Order("created_at asc").Find(&history)

	c.JSON(http.StatusOK, gin.H{"order_number": order.OrderNumber, "history": history})
}

type OrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	StoreID              uint               `json:"store_id" binding:"required"`
	Items                []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress      models.Address     `json:"delivery_address" binding:"required"`
	DeliveryInstructions string             `json:"delivery_instructions"`
	PaymentMethod        string             `json:"payment_method" binding:"required,oneof=cod razorpay"`
	Discount             float64            `json:"discount" binding:"min=0"`
}

// Create places a new order. Stock checks, price snapshotting, the
// decrement and the insert all happen in one transaction so a failure at
// any step leaves stock untouched.
func (h *OrderHandler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var store models.Store
	if err := h.DB.First(&store, req.StoreID).Error; err != nil || !store.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	}
	if !store.IsOpenAt(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Store is currently closed"})
		return
	}

	var order models.Order
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, line := range req.Items {
			var product models.Product
			if err := tx.First(&product, line.ProductID).Error; err != nil ||
				!product.IsActive || product.StoreID != store.ID {
				return badRequest(fmt.Sprintf("Product %d is not available from this store", line.ProductID))
			}
			if product.StockQuantity < line.Quantity {
				return badRequest(fmt.Sprintf("Insufficient stock for %s: %d available",
					product.Name, product.StockQuantity))
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
				Quantity:  line.Quantity,
				Unit:      product.Unit,
				Total:     product.Price * float64(line.Quantity),
			})
		}

		subtotal, tax, total := models.ComputeTotals(items, store.DeliveryFee, req.Discount)
		if subtotal < store.MinimumOrderAmount {
			return badRequest(fmt.Sprintf("Order subtotal %.2f is below the store minimum of %.2f",
				subtotal, store.MinimumOrderAmount))
		}

		// Guarded decrement: the WHERE re-checks stock so two concurrent
		// orders cannot both take the last unit.
		for _, it := range items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", it.ProductID, it.Quantity).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return badRequest(fmt.Sprintf("Insufficient stock for %s", it.Name))
			}
		}

		eta := time.Now().Add(time.Duration(store.AvgPreparationMinutes+30) * time.Minute)
		order = models.Order{
			OrderNumber:           models.NewOrderNumber(time.Now()),
			CustomerID:            middleware.GetUserID(c),
			StoreID:               store.ID,
			Items:                 items,
			Subtotal:              subtotal,
			Tax:                   tax,
			DeliveryFee:           store.DeliveryFee,
			Discount:              req.Discount,
			Total:                 total,
			Status:                models.StatusPending,
			PaymentStatus:         models.PaymentPending,
			PaymentMethod:         req.PaymentMethod,
			DeliveryAddress:       req.DeliveryAddress,
			DeliveryInstructions:  req.DeliveryInstructions,
			EstimatedDeliveryTime: &eta,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  models.StatusPending,
			ChangedBy: order.CustomerID,
			Note:      "Order placed",
		}).Error
	})
	if err != nil {
		var br *requestError
		if errors.As(err, &br) {
			c.JSON(http.StatusBadRequest, gin.H{"error": br.msg})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

type StatusUpdateRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

// UpdateStatus moves an order through the state machine. The caller's
// role decides which edges are reachable; ownership is checked on top.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := statemachine.Actor(middleware.GetRole(c))
	if err := statemachine.CanTransition(order.Status, req.Status, actor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.transition(c, order, req.Status, req.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Order status updated",
		"order":             order,
		"valid_next_states": statemachine.ValidTransitionsFrom(order.Status),
	})
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// Cancel lets a customer withdraw an order that has not left the store.
// Cancelled stock goes back on the shelf in the same transaction.
func (h *OrderHandler) Cancel(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := statemachine.Actor(middleware.GetRole(c))
	if err := statemachine.CanTransition(order.Status, models.StatusCancelled, actor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	order.CancellationReason = req.Reason
	order.CancelledBy = &userID
	if err := h.transition(c, order, models.StatusCancelled, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
}

type AssignDeliveryRequest struct {
	DeliveryPartnerID uint `json:"delivery_partner_id" binding:"required"`
}

// AssignDelivery attaches a delivery partner to an order (store owner or
// admin). The partner must be an active delivery_partner account.
func (h *OrderHandler) AssignDelivery(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}
	if order.IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is already closed"})
		return
	}

	var req AssignDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var partner models.User
	if err := h.DB.First(&partner, req.DeliveryPartnerID).Error; err != nil ||
		partner.Role != models.RoleDeliveryPartner || !partner.IsActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not an active delivery partner"})
		return
	}

	if err := h.DB.Model(order).Update("delivery_partner_id", partner.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign delivery partner"})
		return
	}
	order.DeliveryPartnerID = &partner.ID
	h.dropCache(c, order.ID)

	c.JSON(http.StatusOK, gin.H{
		"message":          "Delivery partner assigned",
		"order_number":     order.OrderNumber,
		"delivery_partner": gin.H{"id": partner.ID, "name": partner.Name, "phone": partner.Phone},
	})
}

// Rate records the customer's rating for a delivered order and folds it
// into the store's running average.
func (h *OrderHandler) Rate(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}
	if order.CustomerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the customer may rate this order"})
		return
	}
	if !order.IsDelivered() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only delivered orders can be rated"})
		return
	}
	if order.Rating != 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Order has already been rated"})
		return
	}

	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(map[string]interface{}{
			"rating": req.Rating,
			"review": req.Review,
		}).Error; err != nil {
			return err
		}
		var store models.Store
		if err := tx.First(&store, order.StoreID).Error; err != nil {
			return err
		}
		store.ApplyRating(req.Rating)
		return tx.Model(&store).Updates(map[string]interface{}{
			"rating":       store.Rating,
			"review_count": store.ReviewCount,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rate order"})
		return
	}
	h.dropCache(c, order.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Thanks for your rating", "rating": req.Rating})
}

// Track is the public tracking endpoint, keyed by order number so it
// leaks nothing enumerable.
func (h *OrderHandler) Track(c *gin.Context) {
	var order models.Order
	if err := h.DB.Preload("Store").
		Where("order_number = ?", c.Param("number")).
		First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_number":            order.OrderNumber,
		"status":                  order.Status,
		"store_name":              order.Store.Name,
		"estimated_delivery_time": order.EstimatedDeliveryTime,
		"actual_delivery_time":    order.ActualDeliveryTime,
	})
}

// transition performs the status change plus its side effects in one
// transaction: stock restore on cancellation, delivery timestamp on
// delivery, always a history row. The order struct is updated in place.
func (h *OrderHandler) transition(c *gin.Context, order *models.Order, to models.OrderStatus, note string) error {
	from := order.Status
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.StatusCancelled:
			for _, it := range order.Items {
				if err := tx.Model(&models.Product{}).
					Where("id = ?", it.ProductID).
					UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", it.Quantity)).
					Error; err != nil {
					return err
				}
			}
			if order.CancellationReason != "" {
				updates["cancellation_reason"] = order.CancellationReason
				updates["cancelled_by"] = order.CancelledBy
			}
		case models.StatusDelivered:
			now := time.Now()
			updates["actual_delivery_time"] = &now
			order.ActualDeliveryTime = &now
		}

		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  middleware.GetUserID(c),
			Note:       note,
		}).Error
	})
	if err != nil {
		return err
	}

	order.Status = to
	h.dropCache(c, order.ID)
	return nil
}

// cachedOrder is the read path: try the order cache, fall back to the
// database and repopulate on a miss. Access is checked on whichever copy
// is served. Mutating handlers use visibleOrder so state checks always
// run against committed data.
func (h *OrderHandler) cachedOrder(c *gin.Context) (*models.Order, string, bool) {
	id := c.Param("id")
	if h.Cache != nil {
		var cached models.Order
		ok, err := h.Cache.Get(c.Request.Context(), cache.KindOrder, id, &cached)
		advise(c.Request.Context(), "order cache read failed", err)
		if ok {
			if !h.access(c, &cached) {
				return nil, "", false
			}
			return &cached, "cache", true
		}
	}

	order, ok := h.visibleOrder(c)
	if !ok {
		return nil, "", false
	}
	if h.Cache != nil {
		err := h.Cache.Put(c.Request.Context(), cache.KindOrder, id, order)
		advise(c.Request.Context(), "order cache write failed", err)
	}
	return order, "database", true
}

// visibleOrder loads the order from :id and enforces that the caller is
// one of its parties (or an admin).
func (h *OrderHandler) visibleOrder(c *gin.Context) (*models.Order, bool) {
	var order models.Order
	if err := h.DB.Preload("Store").First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	if !h.access(c, &order) {
		return nil, false
	}
	return &order, true
}

// access enforces that the caller is one of the order's parties (or an
// admin).
func (h *OrderHandler) access(c *gin.Context, order *models.Order) bool {
	userID := middleware.GetUserID(c)
	switch middleware.GetRole(c) {
	case models.RoleAdmin:
	case models.RoleCustomer:
		if order.CustomerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
			return false
		}
	case models.RoleStoreOwner:
		if order.Store.OwnerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your store's order"})
			return false
		}
	case models.RoleDeliveryPartner:
		if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your delivery"})
			return false
		}
	}
	return true
}

func (h *OrderHandler) dropCache(c *gin.Context, id uint) {
	if h.Cache == nil {
		return
	}
	err := h.Cache.Delete(c.Request.Context(), cache.KindOrder, idKey(id))
	advise(c.Request.Context(), "order cache delete failed", err)
}

// requestError carries a user-facing validation message out of a
// transaction closure.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }
