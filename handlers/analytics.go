package handlers

import (
	"net/http"
	"sort"
	"time"

	"grocery-delivery-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AnalyticsHandler serves the admin reporting endpoints. Everything here
// reads committed order data; nothing mutates.
type AnalyticsHandler struct {
	DB *gorm.DB
}

func (h *AnalyticsHandler) window(c *gin.Context) (time.Time, int) {
	days := parseIntDefault(c.Query("days"), 30)
	if days < 1 || days > 365 {
		days = 30
	}
	return time.Now().AddDate(0, 0, -days), days
}

// Dashboard is the at-a-glance summary.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	since, days := h.window(c)

	var totalOrders, deliveredOrders, cancelledOrders int64
	h.DB.Model(&models.Order{}).Where("created_at >= ?", since).Count(&totalOrders)
	h.DB.Model(&models.Order{}).
		Where("created_at >= ? AND status = ?", since, models.StatusDelivered).
		Count(&deliveredOrders)
	h.DB.Model(&models.Order{}).
		Where("created_at >= ? AND status IN ?", since,
			[]models.OrderStatus{models.StatusCancelled, models.StatusRefunded}).
		Count(&cancelledOrders)

	var revenue struct{ Total float64 }
	h.DB.Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0) as total").
		Where("created_at >= ? AND status = ?", since, models.StatusDelivered).
		Scan(&revenue)

	var customers, stores, partners int64
	h.DB.Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleCustomer, true).Count(&customers)
	h.DB.Model(&models.Store{}).Where("is_active = ?", true).Count(&stores)
	h.DB.Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleDeliveryPartner, true).Count(&partners)

	c.JSON(http.StatusOK, gin.H{
		"days":              days,
		"total_orders":      totalOrders,
		"delivered_orders":  deliveredOrders,
		"cancelled_orders":  cancelledOrders,
		"revenue":           revenue.Total,
		"active_customers":  customers,
		"active_stores":     stores,
		"delivery_partners": partners,
	})
}

// Sales breaks delivered revenue down per day.
func (h *AnalyticsHandler) Sales(c *gin.Context) {
	since, days := h.window(c)

	var orders []models.Order
	h.DB.Where("created_at >= ? AND status = ?", since, models.StatusDelivered).
		Find(&orders)

	perDay := map[string]gin.H{}
	var totalRevenue float64
	for i := range orders {
		day := orders[i].CreatedAt.Format("2006-01-02")
		entry, ok := perDay[day]
		if !ok {
			entry = gin.H{"orders": 0, "revenue": 0.0}
		}
		entry["orders"] = entry["orders"].(int) + 1
		entry["revenue"] = entry["revenue"].(float64) + orders[i].Total
		perDay[day] = entry
		totalRevenue += orders[i].Total
	}

	c.JSON(http.StatusOK, gin.H{
		"days":          days,
		"total_orders":  len(orders),
		"total_revenue": totalRevenue,
		"per_day":       perDay,
	})
}

// Products ranks products by units sold across delivered orders. Line
// items live in a JSON column, so the rollup happens here rather than
// in SQL.
func (h *AnalyticsHandler) Products(c *gin.Context) {
	since, days := h.window(c)

	var orders []models.Order
	h.DB.Where("created_at >= ? AND status = ?", since, models.StatusDelivered).
		Find(&orders)

	type productStat struct {
		ProductID uint    `json:"product_id"`
		Name      string  `json:"name"`
		Units     int     `json:"units_sold"`
		Revenue   float64 `json:"revenue"`
	}
	byID := map[uint]*productStat{}
	for i := range orders {
		for _, it := range orders[i].Items {
			s, ok := byID[it.ProductID]
			if !ok {
				s = &productStat{ProductID: it.ProductID, Name: it.Name}
				byID[it.ProductID] = s
			}
			s.Units += it.Quantity
			s.Revenue += it.Total
		}
	}

	stats := make([]productStat, 0, len(byID))
	for _, s := range byID {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Units > stats[j].Units })
	if len(stats) > 20 {
		stats = stats[:20]
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "top_products": stats})
}

// Customers ranks customers by spend over the window.
func (h *AnalyticsHandler) Customers(c *gin.Context) {
	since, days := h.window(c)

	type customerStat struct {
		CustomerID uint    `json:"customer_id"`
		Name       string  `json:"name"`
		Orders     int     `json:"orders"`
		Spend      float64 `json:"spend"`
	}
	var stats []customerStat
	h.DB.Model(&models.Order{}).
		Select("orders.customer_id, users.name, COUNT(*) as orders, SUM(orders.total) as spend").
		Joins("JOIN users ON users.id = orders.customer_id").
		Where("orders.created_at >= ? AND orders.status = ?", since, models.StatusDelivered).
		Group("orders.customer_id, users.name").
		Order("spend desc").
		Limit(20).
		Scan(&stats)

	c.JSON(http.StatusOK, gin.H{"days": days, "top_customers": stats})
}

// Delivery reports fulfilment performance: how many orders arrived and
// how long they took from placement to doorstep.
func (h *AnalyticsHandler) Delivery(c *gin.Context) {
	since, days := h.window(c)

	var orders []models.Order
	h.DB.Where("created_at >= ? AND status = ? AND actual_delivery_time IS NOT NULL",
		since, models.StatusDelivered).
		Find(&orders)

	var totalMinutes float64
	var onTime int
	for i := range orders {
		o := &orders[i]
		minutes := o.ActualDeliveryTime.Sub(o.CreatedAt).Minutes()
		totalMinutes += minutes
		if o.EstimatedDeliveryTime != nil && !o.ActualDeliveryTime.After(*o.EstimatedDeliveryTime) {
			onTime++
		}
	}

	avgMinutes := 0.0
	if len(orders) > 0 {
		avgMinutes = totalMinutes / float64(len(orders))
	}

	c.JSON(http.StatusOK, gin.H{
		"days":                 days,
		"deliveries":           len(orders),
		"avg_delivery_minutes": avgMinutes,
		"on_time":              onTime,
	})
}

// Revenue splits takings per store over the window.
func (h *AnalyticsHandler) Revenue(c *gin.Context) {
	since, days := h.window(c)

	type storeStat struct {
		StoreID uint    `json:"store_id"`
		Name    string  `json:"name"`
		Orders  int     `json:"orders"`
		Revenue float64 `json:"revenue"`
	}
	var stats []storeStat
	h.DB.Model(&models.Order{}).
		Select("orders.store_id, stores.name, COUNT(*) as orders, SUM(orders.total) as revenue").
		Joins("JOIN stores ON stores.id = orders.store_id").
		Where("orders.created_at >= ? AND orders.status = ?", since, models.StatusDelivered).
		Group("orders.store_id, stores.name").
		Order("revenue desc").
		Scan(&stats)

	var refunds struct {
		Count int64
		Total float64
	}
	h.DB.Model(&models.Order{}).
		Select("COUNT(*) as count, COALESCE(SUM(refund_amount), 0) as total").
		Where("refunded_at >= ?", since).
		Scan(&refunds)

	c.JSON(http.StatusOK, gin.H{
		"days":            days,
		"per_store":       stats,
		"refunds_count":   refunds.Count,
		"refunds_total":   refunds.Total,
	})
}
