package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgewatch/vigil/pkg/coordinator"
	"github.com/edgewatch/vigil/pkg/models"
	"github.com/edgewatch/vigil/pkg/store"
	"github.com/edgewatch/vigil/pkg/version"
)

// triggerAnalysis runs the full pipeline synchronously and returns the
// published record.
func (s *Server) triggerAnalysis(c *gin.Context) {
	var signal models.ThreatSignal
	if err := c.ShouldBindJSON(&signal); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	record, err := s.coordinator.Analyze(c.Request.Context(), signal)
	if err != nil {
		status := statusForPipelineError(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// statusForPipelineError maps coordinator failure classes to HTTP codes.
func statusForPipelineError(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrInvalidSignal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coordinator.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, coordinator.ErrContextUnavailable),
		errors.Is(err, coordinator.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// listThreats returns recent records, newest first. The limit query
// parameter is clamped to the configured maximum.
func (s *Server) listThreats(c *gin.Context) {
	limit := s.recentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, s.recentLimit)
	}

	records, err := s.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": records, "count": len(records)})
}

// getThreat returns one record by signal id.
func (s *Server) getThreat(c *gin.Context) {
	record, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis record for id " + c.Param("id")})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// health reports liveness. It answers 200 whenever the process serves
// requests, regardless of dependency state.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        version.Full(),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// ready reports whether every pipeline component can serve traffic.
func (s *Server) ready(c *gin.Context) {
	ctx := c.Request.Context()
	components := gin.H{
		"coordinator": s.coordinator.Ready(ctx),
		"store":       s.store.Ready(ctx),
		"websocket":   s.ws.Running(),
	}

	for _, ok := range components {
		if ok != true {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "components": components})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "components": components})
}
