package handlers

import (
	"net/http"

	"travel-booking/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app      *pocketbase.PocketBase
	payments *services.PaymentService
	bookings *services.BookingService
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService, bookingService *services.BookingService) *PaymentHandler {
	return &PaymentHandler{
		app:      app,
		payments: paymentService,
		bookings: bookingService,
	}
}

// StartPayment - open a payment attempt for a booking
func (h *PaymentHandler) StartPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	ctx := e.Request.Context()

	booking, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		return apiError(err)
	}
	if booking.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Not your booking", nil)
	}

	var req struct {
		Method string `json:"method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Method == "" {
		req.Method = "qr_code"
	}

	payment, err := h.payments.StartPaymentAttempt(ctx, bookingID, req.Method)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, payment)
}

// Webhook - payment-status events from the gateway or manual
// reconciliation
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	var req struct {
		BookingID     string `json:"booking_id"`
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, ok := services.GatewayStatus(req.Status)
	if !ok {
		return apis.NewBadRequestError("Unknown payment status", nil)
	}

	if err := h.payments.ApplyPaymentEvent(e.Request.Context(), req.BookingID, event, req.TransactionID); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment event applied"})
}

// CheckPaymentStatus - poll one payment attempt
func (h *PaymentHandler) CheckPaymentStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	payment, err := h.payments.GetPayment(e.Request.Context(), e.Request.PathValue("paymentId"))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": payment.ID,
		"booking_id": payment.BookingID,
		"status":     payment.Status,
		"amount":     payment.Amount,
	})
}
