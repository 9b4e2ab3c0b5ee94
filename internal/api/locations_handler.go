// Package api implements the HTTP API for the geosync service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/geosync/internal/domain"
	"github.com/fieldops/geosync/internal/events"
	"github.com/fieldops/geosync/internal/logger"
	"github.com/fieldops/geosync/internal/sheet"
)

// LocationStore defines the record store operations the handlers need.
type LocationStore interface {
	FetchAll(ctx context.Context) ([]domain.Location, error)
	FetchOne(ctx context.Context, id int) (*domain.Location, error)
	UpdateFields(ctx context.Context, id int, update domain.LocationUpdate) (*domain.Location, error)
}

// BackfillTrigger starts a backfill pass. The pass applies its own
// guards, so triggering is always safe.
type BackfillTrigger interface {
	RunBackfillPass(ctx context.Context)
}

// EventPublisher broadcasts location events.
type EventPublisher interface {
	PublishAsync(event events.LocationEvent)
}

// LocationsHandler handles location-related HTTP requests.
type LocationsHandler struct {
	store     LocationStore
	backfill  BackfillTrigger
	publisher EventPublisher
	logger    logger.Logger
}

// NewLocationsHandler creates a new locations handler. publisher may
// be nil when Redis is not configured.
func NewLocationsHandler(
	store LocationStore,
	backfill BackfillTrigger,
	publisher EventPublisher,
	log logger.Logger,
) *LocationsHandler {
	return &LocationsHandler{
		store:     store,
		backfill:  backfill,
		publisher: publisher,
		logger:    log,
	}
}

// Register mounts the location routes on the given router group.
func (h *LocationsHandler) Register(group *gin.RouterGroup) {
	group.GET("/locations", h.ListLocations)
	group.GET("/locations/:id", h.GetLocation)
	group.PATCH("/locations/:id", h.UpdateLocation)
	group.POST("/locations/:id/show", h.ShowLocation)
}

// ListLocations handles GET /api/v1/locations.
//
// Every read doubles as a backfill trigger: the pass runs in the
// background and the response never waits on geocoding.
func (h *LocationsHandler) ListLocations(c *gin.Context) {
	locations, err := h.store.FetchAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list locations", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve locations",
		})
		return
	}

	if h.backfill != nil {
		go h.backfill.RunBackfillPass(context.Background())
	}

	c.JSON(http.StatusOK, gin.H{
		"locations": locations,
		"total":     len(locations),
	})
}

// GetLocation handles GET /api/v1/locations/:id.
func (h *LocationsHandler) GetLocation(c *gin.Context) {
	id, ok := h.locationID(c)
	if !ok {
		return
	}

	location, err := h.store.FetchOne(c.Request.Context(), id)
	if err != nil {
		h.renderStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, location)
}

// UpdateLocationRequest is the body for PATCH /api/v1/locations/:id.
// Absent fields are left untouched.
type UpdateLocationRequest struct {
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
	FollowUpDate *string `json:"follow_up_date"`
}

// UpdateLocation handles PATCH /api/v1/locations/:id.
func (h *LocationsHandler) UpdateLocation(c *gin.Context) {
	id, ok := h.locationID(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	update := domain.LocationUpdate{
		Notes:        req.Notes,
		FollowUpDate: req.FollowUpDate,
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		update.Status = &status
	}

	if update.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No fields to update",
		})
		return
	}

	location, err := h.store.UpdateFields(c.Request.Context(), id, update)
	if err != nil {
		h.renderStoreError(c, err)
		return
	}

	if h.publisher != nil {
		h.publisher.PublishAsync(events.LocationEvent{
			EventType:  events.LocationUpdated,
			LocationID: location.ID,
		})
	}

	c.JSON(http.StatusOK, location)
}

// ShowLocation handles POST /api/v1/locations/:id/show. It broadcasts
// a highlight request to connected map clients and does not wait for
// delivery.
func (h *LocationsHandler) ShowLocation(c *gin.Context) {
	id, ok := h.locationID(c)
	if !ok {
		return
	}

	location, err := h.store.FetchOne(c.Request.Context(), id)
	if err != nil {
		h.renderStoreError(c, err)
		return
	}

	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Event broadcasting is not configured",
		})
		return
	}

	h.publisher.PublishAsync(events.LocationEvent{
		EventType:  events.LocationShown,
		LocationID: location.ID,
		Payload: events.ShowLocationPayload{
			CompanyName: location.CompanyName,
			Lat:         location.Lat,
			Lng:         location.Lng,
		},
	})

	c.JSON(http.StatusAccepted, gin.H{
		"status": "broadcast",
	})
}

// locationID parses and validates the :id path parameter.
func (h *LocationsHandler) locationID(c *gin.Context) (int, bool) {
	raw := c.Param("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid location ID",
		})
		return 0, false
	}
	return id, true
}

// renderStoreError maps record store errors onto HTTP status codes.
func (h *LocationsHandler) renderStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Location not found",
		})
	case errors.Is(err, sheet.ErrInvalidStatus), errors.Is(err, sheet.ErrNotesTooLong):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, sheet.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Record store quota exceeded, try again later",
		})
	default:
		h.logger.Error("Record store request failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Record store request failed",
		})
	}
}
