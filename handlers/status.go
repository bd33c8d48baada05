package handlers

import (
	"net/http"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/database"
	"grocery-delivery-api/search"
	"grocery-delivery-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StatusHandler struct {
	DB     *gorm.DB
	Cache  cache.Service
	Search *search.Index
}

// Health is the liveness probe: process up, nothing else checked.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports each dependency separately. The database is the only
// hard dependency: if it is down the endpoint returns 503; cache and
// search are advisory and only flip their own flag.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	dbOK := database.Ping(h.DB) == nil

	cacheStatus := "disabled"
	if h.Cache != nil {
		cacheStatus = "down"
		if h.Cache.Healthy(ctx) {
			cacheStatus = "ok"
		}
	}

	searchStatus := "disabled"
	if h.Search != nil {
		searchStatus = "down"
		if h.Search.Healthy(ctx) {
			searchStatus = "ok"
		}
	}

	code := http.StatusOK
	overall := "ok"
	if !dbOK {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(code, gin.H{
		"status":   overall,
		"database": map[bool]string{true: "ok", false: "down"}[dbOK],
		"cache":    cacheStatus,
		"search":   searchStatus,
	})
}

// StateMachine publishes the order lifecycle so clients can render what
// comes next without hardcoding the graph.
func (h *StatusHandler) StateMachine(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()
	out := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}
	c.JSON(http.StatusOK, gin.H{"transitions": out})
}
