package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	items := []OrderItem{
		{ProductID: 1, Name: "Rice 5kg", Price: 30, Quantity: 2, Total: 60},
		{ProductID: 2, Name: "Milk 1l", Price: 20, Quantity: 2, Total: 40},
	}

	subtotal, tax, total := ComputeTotals(items, 25, 5)

	assert.Equal(t, 100.0, subtotal)
	assert.Equal(t, 5.0, tax) // 5% of subtotal
	assert.Equal(t, 125.0, total)
}

func TestComputeTotalsEmpty(t *testing.T) {
	subtotal, tax, total := ComputeTotals(nil, 25, 0)
	assert.Equal(t, 0.0, subtotal)
	assert.Equal(t, 0.0, tax)
	assert.Equal(t, 25.0, total)
}

func TestCanBeCancelled(t *testing.T) {
	cancellable := []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing}
	for _, s := range cancellable {
		assert.True(t, (&Order{Status: s}).CanBeCancelled(), string(s))
	}

	locked := []OrderStatus{
		StatusReadyForPickup, StatusOutForDelivery,
		StatusDelivered, StatusCancelled, StatusRefunded,
	}
	for _, s := range locked {
		assert.False(t, (&Order{Status: s}).CanBeCancelled(), string(s))
	}
}

func TestNewOrderNumber(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	n := NewOrderNumber(ts)
	assert.True(t, strings.HasPrefix(n, "ORD-20260829-"), n)
	assert.Len(t, n, len("ORD-20260829-")+8)

	// Two mints must differ.
	assert.NotEqual(t, n, NewOrderNumber(ts))
}

func TestOrderIsTerminal(t *testing.T) {
	assert.True(t, (&Order{Status: StatusDelivered}).IsTerminal())
	assert.True(t, (&Order{Status: StatusCancelled}).IsTerminal())
	assert.True(t, (&Order{Status: StatusRefunded}).IsTerminal())
	assert.False(t, (&Order{Status: StatusPreparing}).IsTerminal())
}
