package statemachine

import (
	"errors"
	"fmt"
	"strings"

	"grocery-delivery-api/models"
)

// Actor identifies who is attempting a transition.
type Actor string

const (
	ActorCustomer        Actor = "customer"
	ActorStoreOwner      Actor = "store_owner"
	ActorDeliveryPartner Actor = "delivery_partner"
	ActorAdmin           Actor = "admin"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

// validTransitions is the authoritative state machine definition. Store
// owners drive the kitchen-side states, delivery partners the road-side
// ones, customers may only bail out early. Admins can take any edge in the
// table but nothing outside it; refunded has no inbound edge here at all —
// it is reachable only through the payment refund flow.
var validTransitions = []Transition{
	{From: models.StatusPending, To: models.StatusConfirmed, Actor: ActorStoreOwner},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorStoreOwner},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: ActorCustomer},

	{From: models.StatusConfirmed, To: models.StatusPreparing, Actor: ActorStoreOwner},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorStoreOwner},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorCustomer},

	{From: models.StatusPreparing, To: models.StatusReadyForPickup, Actor: ActorStoreOwner},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorStoreOwner},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorCustomer},

	{From: models.StatusReadyForPickup, To: models.StatusOutForDelivery, Actor: ActorDeliveryPartner},
	{From: models.StatusReadyForPickup, To: models.StatusCancelled, Actor: ActorStoreOwner},

	{From: models.StatusOutForDelivery, To: models.StatusDelivered, Actor: ActorDeliveryPartner},
	{From: models.StatusOutForDelivery, To: models.StatusCancelled, Actor: ActorStoreOwner},
}

type transitionKey struct {
	From models.OrderStatus
	To   models.OrderStatus
}

// edge lookup independent of actor, then actor sets per edge
var transitionMap = func() map[transitionKey]map[Actor]bool {
	m := make(map[transitionKey]map[Actor]bool)
	for _, t := range validTransitions {
		k := transitionKey{t.From, t.To}
		if m[k] == nil {
			m[k] = make(map[Actor]bool)
		}
		m[k][t.Actor] = true
	}
	return m
}()

var ErrInvalidTransition = errors.New("invalid order status transition")
var ErrActorNotAllowed = errors.New("actor not allowed for this transition")

// CanTransition checks whether actor may move an order from one state to
// another. Admins may take any edge present in the table.
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	actors, ok := transitionMap[transitionKey{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s → %s (valid next states: %s)",
			ErrInvalidTransition, from, to, describeValidFrom(from))
	}
	if actor == ActorAdmin || actors[actor] {
		return nil
	}
	return fmt.Errorf("%w: %s may not move an order from %s to %s",
		ErrActorNotAllowed, actor, from, to)
}

// ValidTransitionsFrom returns all valid next states from a given state.
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// IsTerminal reports whether status accepts no further transitions.
func IsTerminal(status models.OrderStatus) bool {
	switch status {
	case models.StatusDelivered, models.StatusCancelled, models.StatusRefunded:
		return true
	}
	return false
}

// GetAllTransitions returns the full state machine for documentation.
func GetAllTransitions() []Transition {
	return validTransitions
}

func describeValidFrom(status models.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
