package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/payments"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PaymentHandler struct {
	DB      *gorm.DB
	Gateway *payments.Gateway // nil when Razorpay is not configured
	Orders  *OrderHandler
}

// gatewayReady guards every endpoint that needs Razorpay credentials.
func (h *PaymentHandler) gatewayReady(c *gin.Context) bool {
	if h.Gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is not configured"})
		return false
	}
	return true
}

type PaymentOrderRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

// CreateOrder registers the order with the gateway and hands the client
// what it needs to open checkout. Amounts go to the gateway in paise.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	if !h.gatewayReady(c) {
		return
	}

	var req PaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order models.Order
	if err := h.DB.First(&order, req.OrderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.CustomerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
		return
	}
	if order.IsPaid() {
		c.JSON(http.StatusConflict, gin.H{"error": "Order is already paid"})
		return
	}

	amountPaise := int64(order.Total*100 + 0.5)
	gwOrder, err := h.Gateway.CreateOrder(amountPaise, order.OrderNumber, map[string]interface{}{
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway rejected the order"})
		return
	}

	gatewayOrderID, _ := gwOrder["id"].(string)
	if err := h.DB.Model(&order).Update("payment_id", gatewayOrderID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record gateway order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key_id":           h.Gateway.KeyID,
		"gateway_order_id": gatewayOrderID,
		"amount":           amountPaise,
		"currency":         "INR",
		"order_number":     order.OrderNumber,
	})
}

type VerifyPaymentRequest struct {
	OrderID           uint   `json:"order_id" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// Verify checks the checkout signature, confirms the payment was
// captured, then marks the order paid and confirmed.
func (h *PaymentHandler) Verify(c *gin.Context) {
	if !h.gatewayReady(c) {
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order models.Order
	if err := h.DB.First(&order, req.OrderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.CustomerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
		return
	}
	if order.PaymentID != req.RazorpayOrderID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment does not belong to this order"})
		return
	}

	if !h.Gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment signature"})
		return
	}

	payment, err := h.Gateway.FetchPayment(req.RazorpayPaymentID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to verify payment with gateway"})
		return
	}
	if status, _ := payment["status"].(string); status != "captured" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment was not captured"})
		return
	}

	if err := h.markPaid(c, &order, req.RazorpayPaymentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment verified", "order": order})
}

type RefundRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Reason  string `json:"reason" binding:"required,max=500"`
}

// Refund returns the money for a paid order that has not left the store,
// restores its stock and closes it as refunded. This is the only path
// into the refunded state.
func (h *PaymentHandler) Refund(c *gin.Context) {
	if !h.gatewayReady(c) {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order models.Order
	if err := h.DB.First(&order, req.OrderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if !order.IsPaid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not paid"})
		return
	}
	if !order.CanBeCancelled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order can no longer be refunded"})
		return
	}

	amountPaise := int64(order.Total*100 + 0.5)
	refund, err := h.Gateway.Refund(order.PaymentID, amountPaise, map[string]interface{}{
		"order_number": order.OrderNumber,
		"reason":       req.Reason,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Gateway refused the refund"})
		return
	}
	refundID, _ := refund["id"].(string)

	userID := middleware.GetUserID(c)
	now := time.Now()
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, it := range order.Items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", it.ProductID).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", it.Quantity)).
				Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":         models.StatusRefunded,
			"payment_status": models.PaymentRefunded,
			"refund_id":      refundID,
			"refund_amount":  order.Total,
			"refund_reason":  req.Reason,
			"refunded_at":    &now,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   models.StatusRefunded,
			ChangedBy:  userID,
			Note:       req.Reason,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record refund"})
		return
	}
	order.Status = models.StatusRefunded
	order.PaymentStatus = models.PaymentRefunded
	h.Orders.dropCache(c, order.ID)

	c.JSON(http.StatusOK, gin.H{
		"message":       "Refund issued",
		"refund_id":     refundID,
		"refund_amount": order.Total,
	})
}

// GetByOrder returns the payment details of one order.
func (h *PaymentHandler) GetByOrder(c *gin.Context) {
	order, ok := h.Orders.visibleOrder(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
		"payment_method": order.PaymentMethod,
		"payment_id":     order.PaymentID,
		"total":          order.Total,
		"refund_id":      order.RefundID,
		"refund_amount":  order.RefundAmount,
		"refunded_at":    order.RefundedAt,
	})
}

// History lists the caller's payments, newest first.
func (h *PaymentHandler) History(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Order{}).
		Where("customer_id = ? AND payment_status <> ?",
			middleware.GetUserID(c), models.PaymentPending)

	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Order("created_at desc").Offset(offset).Limit(limit).Find(&orders)

	entries := make([]gin.H, 0, len(orders))
	for i := range orders {
		entries = append(entries, gin.H{
			"order_number":   orders[i].OrderNumber,
			"payment_status": orders[i].PaymentStatus,
			"payment_method": orders[i].PaymentMethod,
			"total":          orders[i].Total,
			"created_at":     orders[i].CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"payments": entries, "pagination": pageMeta(page, limit, total)})
}

// Analytics is the admin payment report: paid and refunded volumes, the
// split per payment method and a daily order trend over the window.
func (h *PaymentHandler) Analytics(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), 30)
	if days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var stats struct {
		TotalOrders    int64   `json:"total_orders"`
		TotalAmount    float64 `json:"total_amount"`
		PaidOrders     int64   `json:"paid_orders"`
		PaidAmount     float64 `json:"paid_amount"`
		RefundedOrders int64   `json:"refunded_orders"`
		RefundedAmount float64 `json:"refunded_amount"`
	}
	h.DB.Model(&models.Order{}).
		Select(`COUNT(*) as total_orders,
			COALESCE(SUM(total), 0) as total_amount,
			COUNT(CASE WHEN payment_status = ? THEN 1 END) as paid_orders,
			COALESCE(SUM(CASE WHEN payment_status = ? THEN total ELSE 0 END), 0) as paid_amount,
			COUNT(CASE WHEN payment_status = ? THEN 1 END) as refunded_orders,
			COALESCE(SUM(CASE WHEN payment_status = ? THEN refund_amount ELSE 0 END), 0) as refunded_amount`,
			models.PaymentPaid, models.PaymentPaid,
			models.PaymentRefunded, models.PaymentRefunded).
		Where("created_at >= ?", since).
		Scan(&stats)

	type methodStat struct {
		PaymentMethod string  `json:"payment_method"`
		Count         int64   `json:"count"`
		Amount        float64 `json:"amount"`
	}
	var methods []methodStat
	h.DB.Model(&models.Order{}).
		Select("payment_method, COUNT(*) as count, COALESCE(SUM(total), 0) as amount").
		Where("created_at >= ?", since).
		Group("payment_method").
		Scan(&methods)

	var orders []models.Order
	h.DB.Select("created_at", "total").Where("created_at >= ?", since).Find(&orders)
	perDay := map[string]gin.H{}
	for i := range orders {
		day := orders[i].CreatedAt.Format("2006-01-02")
		entry, ok := perDay[day]
		if !ok {
			entry = gin.H{"orders": 0, "amount": 0.0}
		}
		entry["orders"] = entry["orders"].(int) + 1
		entry["amount"] = entry["amount"].(float64) + orders[i].Total
		perDay[day] = entry
	}

	c.JSON(http.StatusOK, gin.H{
		"days":            days,
		"statistics":      stats,
		"payment_methods": methods,
		"daily_trends":    perDay,
	})
}

// Webhook handles gateway callbacks. The raw body is HMAC-verified
// before anything is parsed; unverified posts get a 400 and no work.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if h.Gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}
	if !h.Gateway.VerifyWebhookSignature(body, c.GetHeader("X-Razorpay-Signature")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		return
	}

	entity := event.Payload.Payment.Entity
	var order models.Order
	if err := h.DB.Where("payment_id = ?", entity.OrderID).First(&order).Error; err != nil {
		// Not our order; acknowledge so the gateway stops retrying.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	switch event.Event {
	case "payment.captured":
		if !order.IsPaid() {
			if err := h.markPaid(c, &order, entity.ID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
				return
			}
		}
	case "payment.failed":
		if order.PaymentStatus == models.PaymentPending {
			h.DB.Model(&order).Update("payment_status", models.PaymentFailed)
			h.Orders.dropCache(c, order.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// markPaid records a captured payment and auto-confirms a pending order.
func (h *PaymentHandler) markPaid(c *gin.Context, order *models.Order, paymentID string) error {
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"payment_status": models.PaymentPaid,
			"payment_id":     paymentID,
		}
		if order.Status == models.StatusPending {
			updates["status"] = models.StatusConfirmed
			if err := tx.Create(&models.OrderStatusHistory{
				OrderID:    order.ID,
				FromStatus: models.StatusPending,
				ToStatus:   models.StatusConfirmed,
				ChangedBy:  order.CustomerID,
				Note:       "Payment captured",
			}).Error; err != nil {
				return err
			}
		}
		return tx.Model(order).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	order.PaymentStatus = models.PaymentPaid
	order.PaymentID = paymentID
	if order.Status == models.StatusPending {
		order.Status = models.StatusConfirmed
	}
	h.Orders.dropCache(c, order.ID)
	return nil
}
