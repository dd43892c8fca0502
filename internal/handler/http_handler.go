package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staysearch/unit-index/internal/availability"
	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/indexer"
	"github.com/staysearch/unit-index/internal/search"
	pkglog "github.com/staysearch/unit-index/pkg/log"
	"github.com/staysearch/unit-index/pkg/response"
)

// Handler handles HTTP requests for the unit index service.
type Handler struct {
	engine       *search.Engine
	availability *availability.Service
	indexer      *indexer.Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(engine *search.Engine, avail *availability.Service, idx *indexer.Service) *Handler {
	return &Handler{
		engine:       engine,
		availability: avail,
		indexer:      idx,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/search/units", h.SearchUnits)
		api.POST("/search/units", h.SearchUnitsBody)
		api.POST("/search/units/relaxed", h.SearchUnitsRelaxed)
		api.GET("/search/properties", h.SearchProperties)

		api.GET("/units/:unitID/availability", h.CheckAvailability)
		api.GET("/units/:unitID/calendar/:year/:month", h.MonthlyCalendar)
		api.POST("/units/:unitID/availability", h.BulkAvailability)
		api.POST("/units/:unitID/bookings", h.BlockForBooking)

		api.PUT("/bookings/:bookingID/state", h.UpdateBookingState)
		api.DELETE("/bookings/:bookingID", h.ReleaseBooking)
	}

	admin := r.Group("/api/v1/admin/index")
	{
		admin.POST("/units/:unitID", h.IndexUnit)
		admin.PUT("/units/:unitID", h.ReindexUnit)
		admin.DELETE("/units/:unitID", h.DeleteUnit)
		admin.POST("/properties/:propertyID/cascade", h.CascadeProperty)
		admin.POST("/unit-types/:unitTypeID/fields", h.CascadeFieldChange)
		admin.POST("/rebuild", h.RebuildAll)
		admin.POST("/cleanup", h.CleanupOrphans)
		admin.GET("/stats", h.IndexStatistics)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// bindSearchQuery builds a search request from query parameters. The geo
// radius rides as flat lat/lon/radius_km params.
func bindSearchQuery(c *gin.Context) (*domain.SearchRequest, error) {
	var req domain.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return nil, err
	}
	if c.Query("radius_km") != "" {
		var geo domain.GeoFilter
		if err := c.ShouldBindQuery(&geo); err != nil {
			return nil, err
		}
		req.Geo = &geo
	}
	return &req, nil
}

// SearchUnits handles a unit search driven by query parameters.
func (h *Handler) SearchUnits(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	req, err := bindSearchQuery(c)
	if err != nil {
		l.Warn().Err(err).Msg("invalid search request")
		response.BadRequest(c, err.Error())
		return
	}

	h.runUnitSearch(c, req)
}

// SearchUnitsBody handles a unit search with the full request body,
// including dynamic field filters.
func (h *Handler) SearchUnitsBody(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid search request")
		response.BadRequest(c, err.Error())
		return
	}

	h.runUnitSearch(c, &req)
}

func (h *Handler) runUnitSearch(c *gin.Context, req *domain.SearchRequest) {
	ctx := c.Request.Context()

	result, err := h.engine.SearchUnits(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, "invalid search request")
			return
		}
		pkglog.Ctx(ctx).Error().Err(err).Msg("unit search failed")
		response.InternalError(c, "search failed")
		return
	}

	response.Success(c, result)
}

// SearchUnitsRelaxed runs the progressive relaxation search.
func (h *Handler) SearchUnitsRelaxed(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid relaxed search request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.engine.SearchUnitsRelaxed(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, "invalid search request")
			return
		}
		l.Error().Err(err).Msg("relaxed search failed")
		response.InternalError(c, "search failed")
		return
	}

	response.Success(c, result)
}

// SearchProperties handles the property roll-up search.
func (h *Handler) SearchProperties(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	req, err := bindSearchQuery(c)
	if err != nil {
		l.Warn().Err(err).Msg("invalid property search request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.engine.SearchPropertiesWithUnits(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, "invalid search request")
			return
		}
		l.Error().Err(err).Msg("property search failed")
		response.InternalError(c, "search failed")
		return
	}

	response.Success(c, result)
}

// CheckAvailability answers one unit's availability for a stay range.
func (h *Handler) CheckAvailability(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	unitID := c.Param("unitID")

	checkIn, err := parseDate(c.Query("check_in"))
	if err != nil {
		response.BadRequest(c, "invalid check_in date")
		return
	}
	checkOut, err := parseDate(c.Query("check_out"))
	if err != nil {
		response.BadRequest(c, "invalid check_out date")
		return
	}

	available, err := h.availability.CheckAvailability(ctx, unitID, checkIn, checkOut, c.Query("exclude_booking_id"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, "check_out must follow check_in")
			return
		}
		l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("availability check failed")
		response.InternalError(c, "availability check failed")
		return
	}

	response.Success(c, gin.H{
		"unit_id":   unitID,
		"available": available,
	})
}

// MonthlyCalendar returns one unit's calendar for a month.
func (h *Handler) MonthlyCalendar(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	unitID := c.Param("unitID")

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.BadRequest(c, "invalid year")
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		response.BadRequest(c, "invalid month")
		return
	}

	days, err := h.availability.GetMonthlyCalendar(ctx, unitID, year, time.Month(month))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(c, "unit not found")
			return
		}
		l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("calendar load failed")
		response.InternalError(c, "calendar load failed")
		return
	}

	response.Success(c, gin.H{
		"unit_id": unitID,
		"year":    year,
		"month":   month,
		"days":    days,
	})
}

type bulkAvailabilityRequest struct {
	Periods []availability.BulkPeriod `json:"periods" binding:"required"`
}

// BulkAvailability applies day schedules for one or more periods in a
// single write.
func (h *Handler) BulkAvailability(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	unitID := c.Param("unitID")

	var req bulkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.availability.ApplyBulkAvailability(ctx, unitID, req.Periods); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, err.Error())
			return
		}
		l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("bulk availability write failed")
		response.InternalError(c, "availability update failed")
		return
	}

	response.Success(c, gin.H{"unit_id": unitID, "periods": len(req.Periods)})
}

type blockBookingRequest struct {
	BookingID string    `json:"booking_id" binding:"required"`
	State     string    `json:"state"`
	CheckIn   time.Time `json:"check_in" binding:"required" time_format:"2006-01-02"`
	CheckOut  time.Time `json:"check_out" binding:"required" time_format:"2006-01-02"`
}

// BlockForBooking holds every night of a stay for a booking.
func (h *Handler) BlockForBooking(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	unitID := c.Param("unitID")

	var req blockBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	state := domain.BookingState(req.State)
	if state == "" {
		state = domain.BookingConfirmed
	}

	if err := h.availability.BlockForBooking(ctx, unitID, req.BookingID, state, req.CheckIn, req.CheckOut); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, err.Error())
			return
		}
		l.Error().Err(err).
			Str(pkglog.FieldUnitID, unitID).
			Str(pkglog.FieldBookingID, req.BookingID).
			Msg("booking block failed")
		response.InternalError(c, "booking block failed")
		return
	}

	response.Success(c, gin.H{"unit_id": unitID, "booking_id": req.BookingID})
}

// UpdateBookingState moves a booking to a new lifecycle state.
func (h *Handler) UpdateBookingState(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	bookingID := c.Param("bookingID")

	var req struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.availability.UpdateBookingState(ctx, bookingID, domain.BookingState(req.State))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			response.NotFound(c, "booking not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			response.BadRequest(c, err.Error())
		default:
			l.Error().Err(err).Str(pkglog.FieldBookingID, bookingID).Msg("booking state update failed")
			response.InternalError(c, "booking update failed")
		}
		return
	}

	response.Success(c, gin.H{"booking_id": bookingID, "state": req.State})
}

// ReleaseBooking frees every night held by a booking.
func (h *Handler) ReleaseBooking(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)
	bookingID := c.Param("bookingID")

	if err := h.availability.ReleaseBooking(ctx, bookingID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			response.NotFound(c, "booking not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			response.BadRequest(c, err.Error())
		default:
			l.Error().Err(err).Str(pkglog.FieldBookingID, bookingID).Msg("booking release failed")
			response.InternalError(c, "booking release failed")
		}
		return
	}

	response.Success(c, gin.H{"booking_id": bookingID, "released": true})
}

// IndexUnit indexes one unit on demand.
func (h *Handler) IndexUnit(c *gin.Context) {
	ctx := c.Request.Context()
	unitID := c.Param("unitID")

	indexed, err := h.indexer.IndexUnit(ctx, unitID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("index unit failed")
		response.InternalError(c, "index unit failed")
		return
	}

	response.Success(c, gin.H{"unit_id": unitID, "indexed": indexed})
}

// ReindexUnit rebuilds one unit's index entry from scratch.
func (h *Handler) ReindexUnit(c *gin.Context) {
	ctx := c.Request.Context()
	unitID := c.Param("unitID")

	indexed, err := h.indexer.ReindexUnit(ctx, unitID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("reindex unit failed")
		response.InternalError(c, "reindex unit failed")
		return
	}

	response.Success(c, gin.H{"unit_id": unitID, "indexed": indexed})
}

// DeleteUnit removes one unit from the index.
func (h *Handler) DeleteUnit(c *gin.Context) {
	ctx := c.Request.Context()
	unitID := c.Param("unitID")

	if err := h.indexer.DeleteUnit(ctx, unitID, c.Query("property_id")); err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("delete unit failed")
		response.InternalError(c, "delete unit failed")
		return
	}

	response.Success(c, gin.H{"unit_id": unitID, "deleted": true})
}

// CascadeProperty reindexes or removes every unit of a property.
func (h *Handler) CascadeProperty(c *gin.Context) {
	ctx := c.Request.Context()
	propertyID := c.Param("propertyID")

	var req struct {
		Op string `json:"op" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	done, err := h.indexer.CascadeProperty(ctx, propertyID, indexer.CascadeOp(req.Op))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, err.Error())
			return
		}
		pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldPropertyID, propertyID).Msg("property cascade failed")
		response.InternalError(c, "property cascade failed")
		return
	}

	response.Success(c, gin.H{"property_id": propertyID, "units": done})
}

// CascadeFieldChange propagates a unit-type field mutation to its units.
func (h *Handler) CascadeFieldChange(c *gin.Context) {
	ctx := c.Request.Context()
	unitTypeID := c.Param("unitTypeID")

	var change indexer.FieldChange
	if err := c.ShouldBindJSON(&change); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	done, err := h.indexer.CascadeUnitTypeFieldChange(ctx, unitTypeID, change)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			response.BadRequest(c, err.Error())
			return
		}
		pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldUnitTypeID, unitTypeID).Msg("field cascade failed")
		response.InternalError(c, "field cascade failed")
		return
	}

	response.Success(c, gin.H{"unit_type_id": unitTypeID, "units": done})
}

// RebuildAll kicks off a full index rebuild in the background.
func (h *Handler) RebuildAll(c *gin.Context) {
	batchSize, _ := strconv.Atoi(c.DefaultQuery("batch_size", "0"))

	// The rebuild outlives the request; detach it from the request context
	// but keep the request logger.
	ctx := pkglog.WithLogger(context.Background(), pkglog.Ctx(c.Request.Context()))
	go func() {
		if _, err := h.indexer.RebuildAll(ctx, batchSize); err != nil {
			pkglog.Ctx(ctx).Error().Err(err).Msg("index rebuild failed")
		}
	}()

	response.Accepted(c, gin.H{"status": "rebuilding"})
}

// CleanupOrphans sweeps index entries whose source rows are gone.
func (h *Handler) CleanupOrphans(c *gin.Context) {
	ctx := c.Request.Context()

	removed, err := h.indexer.CleanupOrphans(ctx)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Msg("orphan cleanup failed")
		response.InternalError(c, "cleanup failed")
		return
	}

	response.Success(c, gin.H{"removed": removed})
}

// IndexStatistics reports live counts and metadata for both indexes.
func (h *Handler) IndexStatistics(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.indexer.GetIndexStatistics(ctx)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).Msg("index statistics failed")
		response.InternalError(c, "statistics failed")
		return
	}

	response.Success(c, stats)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
