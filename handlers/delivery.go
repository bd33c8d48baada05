package handlers

import (
	"net/http"
	"time"

	"grocery-delivery-api/geo"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxPickupDistanceMeters caps how far a partner may claim an order from.
const maxPickupDistanceMeters = 50_000

// averageSpeedKmh is the flat speed assumption behind every ETA.
const averageSpeedKmh = 20.0

type DeliveryHandler struct {
	DB     *gorm.DB
	Orders *OrderHandler
}

// AvailableOrders lists unassigned orders that are ready for pickup,
// annotated with pickup distance when the partner sent a position.
func (h *DeliveryHandler) AvailableOrders(c *gin.Context) {
	var query struct {
		Lat float64 `form:"lat"`
		Lng float64 `form:"lng"`
	}
	c.ShouldBindQuery(&query)
	partnerAt := models.Coordinates{Lat: query.Lat, Lng: query.Lng}

	var orders []models.Order
	h.DB.Preload("Store").
		Where("delivery_partner_id IS NULL AND status = ?", models.StatusReadyForPickup).
		Order("created_at asc").Limit(50).Find(&orders)

	type availableOrder struct {
		Order            models.Order `json:"order"`
		PickupDistanceKm *float64     `json:"pickup_distance_km,omitempty"`
	}
	out := make([]availableOrder, 0, len(orders))
	for i := range orders {
		entry := availableOrder{Order: orders[i]}
		if !partnerAt.Zero() && !orders[i].Store.Coordinates.Zero() {
			km := roundKm(geo.Distance(partnerAt, orders[i].Store.Coordinates) / 1000)
			entry.PickupDistanceKm = &km
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{"count": len(out), "orders": out})
}

// MyDeliveries lists the partner's assigned orders, active first.
func (h *DeliveryHandler) MyDeliveries(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Order{}).
		Where("delivery_partner_id = ?", middleware.GetUserID(c))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Preload("Store").Order("created_at desc").Offset(offset).Limit(limit).Find(&orders)

	c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": pageMeta(page, limit, total)})
}

// Accept claims an unassigned ready order. The assignment is a guarded
// UPDATE so two partners racing for the same order get exactly one
// winner; the loser is told the order is already taken.
func (h *DeliveryHandler) Accept(c *gin.Context) {
	partnerID := middleware.GetUserID(c)

	var order models.Order
	if err := h.DB.Preload("Store").First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != models.StatusReadyForPickup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not ready for pickup"})
		return
	}

	var partner models.User
	if err := h.DB.First(&partner, partnerID).Error; err == nil &&
		!partner.CurrentLocation.Zero() && !order.Store.Coordinates.Zero() {
		if geo.Distance(partner.CurrentLocation, order.Store.Coordinates) > maxPickupDistanceMeters {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Pickup location is too far away"})
			return
		}
	}

	res := h.DB.Model(&models.Order{}).
		Where("id = ? AND delivery_partner_id IS NULL AND status = ?",
			order.ID, models.StatusReadyForPickup).
		Update("delivery_partner_id", partnerID)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept order"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order was already taken"})
		return
	}
	h.Orders.dropCache(c, order.ID)

	c.JSON(http.StatusOK, gin.H{
		"message":      "Order accepted",
		"order_number": order.OrderNumber,
		"pickup": gin.H{
			"store_name":  order.Store.Name,
			"address":     order.Store.Address,
			"coordinates": order.Store.Coordinates,
		},
		"dropoff": order.DeliveryAddress,
	})
}

type LocationUpdateRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

// UpdateLocation records the partner's current position.
func (h *DeliveryHandler) UpdateLocation(c *gin.Context) {
	var req LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	err := h.DB.Model(&models.User{}).
		Where("id = ?", middleware.GetUserID(c)).
		Updates(map[string]interface{}{
			"current_location":    models.Coordinates{Lat: req.Lat, Lng: req.Lng},
			"location_updated_at": &now,
		}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update location"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Location updated"})
}

// Start marks an assigned order as out for delivery.
func (h *DeliveryHandler) Start(c *gin.Context) {
	h.advance(c, models.StatusOutForDelivery, "Picked up by delivery partner")
}

// Complete marks an out-for-delivery order as delivered.
func (h *DeliveryHandler) Complete(c *gin.Context) {
	h.advance(c, models.StatusDelivered, "Delivered to customer")
}

func (h *DeliveryHandler) advance(c *gin.Context, to models.OrderStatus, note string) {
	order, ok := h.assigned(c)
	if !ok {
		return
	}

	if err := statemachine.CanTransition(order.Status, to, statemachine.ActorDeliveryPartner); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Orders.transition(c, order, to, note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": note, "order": order})
}

// Route plans the partner's multi-stop run: current position, then all
// pickups and dropoffs ordered nearest-first, with a distance and ETA.
func (h *DeliveryHandler) Route(c *gin.Context) {
	var query struct {
		Lat float64 `form:"lat" binding:"required"`
		Lng float64 `form:"lng" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}

	var orders []models.Order
	h.DB.Preload("Store").
		Where("delivery_partner_id = ? AND status IN ?",
			middleware.GetUserID(c),
			[]models.OrderStatus{models.StatusReadyForPickup, models.StatusOutForDelivery}).
		Find(&orders)
	if len(orders) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No active deliveries", "stops": []geo.RoutePoint{}})
		return
	}

	points := []geo.RoutePoint{{
		Type:        geo.PointStart,
		Name:        "Current location",
		Coordinates: models.Coordinates{Lat: query.Lat, Lng: query.Lng},
	}}
	for i := range orders {
		o := &orders[i]
		if o.Status == models.StatusReadyForPickup && !o.Store.Coordinates.Zero() {
			points = append(points, geo.RoutePoint{
				Type:        geo.PointPickup,
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Name:        o.Store.Name,
				Coordinates: o.Store.Coordinates,
				Address:     &o.Store.Address,
			})
		}
		if !o.DeliveryAddress.Coordinates.Zero() {
			points = append(points, geo.RoutePoint{
				Type:        geo.PointDelivery,
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Name:        "Customer",
				Coordinates: o.DeliveryAddress.Coordinates,
				Address:     &o.DeliveryAddress,
			})
		}
	}

	route := geo.OptimizeRoute(points)
	totalKm := geo.RouteLength(route) / 1000
	etaMinutes := totalKm / averageSpeedKmh * 60

	c.JSON(http.StatusOK, gin.H{
		"stops":             route,
		"total_distance_km": roundKm(totalKm),
		"eta_minutes":       int(etaMinutes + 0.5),
	})
}

// Earnings sums delivery fees from the partner's delivered orders, with
// a per-day breakdown over the requested window (default 30 days).
func (h *DeliveryHandler) Earnings(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), 30)
	if days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var orders []models.Order
	h.DB.Where("delivery_partner_id = ? AND status = ? AND actual_delivery_time >= ?",
		middleware.GetUserID(c), models.StatusDelivered, since).
		Find(&orders)

	var total float64
	perDay := map[string]float64{}
	for i := range orders {
		total += orders[i].DeliveryFee
		if orders[i].ActualDeliveryTime != nil {
			day := orders[i].ActualDeliveryTime.Format("2006-01-02")
			perDay[day] += orders[i].DeliveryFee
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"days":           days,
		"deliveries":     len(orders),
		"total_earnings": total,
		"per_day":        perDay,
	})
}

// assigned loads the order from :id and checks it belongs to the caller.
func (h *DeliveryHandler) assigned(c *gin.Context) (*models.Order, bool) {
	var order models.Order
	if err := h.DB.Preload("Store").First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	partnerID := middleware.GetUserID(c)
	if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != partnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Order is not assigned to you"})
		return nil, false
	}
	return &order, true
}
