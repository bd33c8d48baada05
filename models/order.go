package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents all possible states of a delivery order
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// TaxRate is the fixed 5% applied to every order's subtotal.
const TaxRate = 0.05

// OrderItem is a denormalized snapshot of product, price and quantity at
// order time. Later price changes never affect historical orders.
type OrderItem struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit"`
	Total     float64 `json:"total"`
}

type OrderItems []OrderItem

type Order struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	OrderNumber string `json:"order_number" gorm:"uniqueIndex;not null"`

	CustomerID        uint  `json:"customer_id" gorm:"not null;index"`
	Customer          User  `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	StoreID           uint  `json:"store_id" gorm:"not null;index"`
	Store             Store `json:"store,omitempty" gorm:"foreignKey:StoreID"`
	DeliveryPartnerID *uint `json:"delivery_partner_id" gorm:"index"`
	DeliveryPartner   *User `json:"delivery_partner,omitempty" gorm:"foreignKey:DeliveryPartnerID"`

	Items OrderItems `json:"items" gorm:"serializer:json;not null"`

	// Totals are computed once at creation and persisted, never re-derived.
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`

	Status        OrderStatus   `json:"status" gorm:"not null;default:'pending';index"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"not null;default:'pending';index"`
	PaymentMethod string        `json:"payment_method"`
	PaymentID     string        `json:"payment_id,omitempty"`

	RefundID     string     `json:"refund_id,omitempty"`
	RefundAmount float64    `json:"refund_amount,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`

	DeliveryAddress      Address `json:"delivery_address" gorm:"serializer:json"`
	DeliveryInstructions string  `json:"delivery_instructions"`

	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
	ActualDeliveryTime    *time.Time `json:"actual_delivery_time"`

	Rating int    `json:"rating,omitempty"`
	Review string `json:"review,omitempty"`

	CancellationReason string `json:"cancellation_reason,omitempty"`
	CancelledBy        *uint  `json:"cancelled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrderNumber mints a public tracking number like ORD-20260829-1A2B3C4D.
func NewOrderNumber(t time.Time) string {
	frag := uuid.NewString()[:8]
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), frag)
}

// ComputeTotals derives subtotal, tax and grand total from line items.
// total = subtotal + tax + deliveryFee - discount.
func ComputeTotals(items []OrderItem, deliveryFee, discount float64) (subtotal, tax, total float64) {
	for _, it := range items {
		subtotal += it.Total
	}
	tax = subtotal * TaxRate
	total = subtotal + tax + deliveryFee - discount
	return subtotal, tax, total
}

// CanBeCancelled limits customer-initiated cancellation (and refunds) to
// orders that have not left the store yet.
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusPreparing:
		return true
	}
	return false
}

func (o *Order) IsDelivered() bool {
	return o.Status == StatusDelivered
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// IsTerminal reports whether no further lifecycle transitions are possible.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// OrderStatusHistory is the audit trail of every transition.
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"not null;index"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	ChangedBy  uint        `json:"changed_by"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"created_at"`
}
