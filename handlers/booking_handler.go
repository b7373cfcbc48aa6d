package handlers

import (
	"net/http"

	"travel-booking/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type BookingHandler struct {
	app      *pocketbase.PocketBase
	bookings *services.BookingService
}

func NewBookingHandler(app *pocketbase.PocketBase, bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{
		app:      app,
		bookings: bookingService,
	}
}

// CreateBooking - reserve capacity and create the booking
func (h *BookingHandler) CreateBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req services.CreateBookingRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	req.UserID = e.Auth.Id
	req.IdempotencyKey = e.Request.Header.Get("Idempotency-Key")

	booking, err := h.bookings.CreateBooking(e.Request.Context(), req)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, booking)
}

// CancelBooking - cancel the caller's booking and release its seats
func (h *BookingHandler) CancelBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	ctx := e.Request.Context()

	booking, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		return apiError(err)
	}
	if booking.UserID != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Not your booking", nil)
	}

	if err := h.bookings.CancelBooking(ctx, bookingID); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Booking cancelled"})
}

// GetBookingHistory - the caller's bookings, newest first
func (h *BookingHandler) GetBookingHistory(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookings, err := h.bookings.HistoryForUser(e.Request.Context(), e.Auth.Id, 20)
	if err != nil {
		return apiError(err)
	}

	result := make([]map[string]any, 0, len(bookings))
	for _, booking := range bookings {
		packageName := "Unknown"
		if pkgID := booking.PackageID(); pkgID != "" {
			if record, err := h.app.FindRecordById("packages", pkgID); err == nil {
				packageName = record.GetString("name")
			}
		}

		result = append(result, map[string]any{
			"id":             booking.ID,
			"reference":      booking.Reference,
			"package_name":   packageName,
			"traveler_count": booking.TravelerCount,
			"departure_date": booking.DepartureDate.Format("2006-01-02"),
			"status":         booking.Status,
			"payment_status": booking.PaymentStatus,
			"total_price":    booking.TotalPrice,
			"created":        booking.CreatedAt,
		})
	}

	return e.JSON(http.StatusOK, result)
}

func isAdmin(e *core.RequestEvent) bool {
	return e.Auth != nil && e.Auth.Collection().Name == "admins"
}
