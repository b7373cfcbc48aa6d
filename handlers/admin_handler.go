package handlers

import (
	"net/http"

	"travel-booking/models"
	"travel-booking/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	app      *pocketbase.PocketBase
	stats    *services.StatsService
	bookings *services.BookingService
	capacity *services.CapacityService
}

func NewAdminHandler(app *pocketbase.PocketBase, statsService *services.StatsService, bookingService *services.BookingService, capacityService *services.CapacityService) *AdminHandler {
	return &AdminHandler{
		app:      app,
		stats:    statsService,
		bookings: bookingService,
		capacity: capacityService,
	}
}

// GetDashboardStats - aggregate numbers for the admin dashboard
func (h *AdminHandler) GetDashboardStats(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	stats, err := h.stats.ComputeStats(e.Request.Context())
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, stats)
}

// TransitionBooking - manual status transition, still validated by the
// transition table
func (h *AdminHandler) TransitionBooking(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	var req struct {
		BookingID string `json:"booking_id"`
		Target    string `json:"target_status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.bookings.TransitionStatus(e.Request.Context(), req.BookingID, models.BookingStatus(req.Target)); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Booking updated"})
}

// GetPackageCapacity - live ledger counters for one package
func (h *AdminHandler) GetPackageCapacity(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	packageID := e.Request.PathValue("packageId")
	capacity, booked, err := h.capacity.Snapshot(e.Request.Context(), packageID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"package_id": packageID,
		"capacity":   capacity,
		"booked":     booked,
		"available":  capacity - booked,
	})
}
