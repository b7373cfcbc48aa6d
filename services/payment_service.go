package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"travel-booking/config"
	"travel-booking/internal/status"
	"travel-booking/internal/store"
	"travel-booking/models"
	"travel-booking/monitoring"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

const paymentChannel = "payment-notifications"

// PaymentService couples payment events to booking status. Events
// arrive from the gateway over PubNub or from manual reconciliation
// through the webhook route; both funnel into ApplyPaymentEvent.
type PaymentService struct {
	store    store.Store
	bookings *BookingService
	Redis    *redis.Client
	PubNub   *pubnub.PubNub
	config   *config.Config
}

func NewPaymentService(st store.Store, bookingService *BookingService, redisClient *redis.Client, pn *pubnub.PubNub, cfg *config.Config) *PaymentService {
	service := &PaymentService{
		store:    st,
		bookings: bookingService,
		Redis:    redisClient,
		PubNub:   pn,
		config:   cfg,
	}

	if pn != nil {
		go service.SubscribeToPaymentNotifications()
	}

	return service
}

// StartPaymentAttempt opens a pending payment row for the booking's
// total and a gateway session with a TTL. Calling it again while an
// attempt is still pending returns that attempt.
func (s *PaymentService) StartPaymentAttempt(ctx context.Context, bookingID, method string) (*models.Payment, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingCancelled {
		return nil, fmt.Errorf("%w: booking %s is cancelled", status.ErrInvalidPaymentTransition, bookingID)
	}
	if booking.PaymentStatus == models.PaymentPaid || booking.PaymentStatus == models.PaymentRefunded {
		return nil, fmt.Errorf("%w: booking %s is already settled", status.ErrInvalidPaymentTransition, bookingID)
	}

	if existing, err := s.store.LatestPayment(ctx, bookingID); err == nil && existing.Status == models.AttemptPending {
		return existing, nil
	}

	payment := &models.Payment{
		BookingID: bookingID,
		Amount:    booking.TotalPrice,
		Method:    method,
		Status:    models.AttemptPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	sessionKey := fmt.Sprintf("payment:session:%s", payment.ID)
	sessionData := map[string]any{
		"payment_id": payment.ID,
		"booking_id": bookingID,
		"user_id":    booking.UserID,
		"amount":     booking.TotalPrice.String(),
		"created_at": time.Now().Unix(),
	}
	for k, v := range sessionData {
		s.Redis.HSet(ctx, sessionKey, k, v)
	}
	s.Redis.Expire(ctx, sessionKey, s.config.PaymentSessionTTL)

	return payment, nil
}

// GetPayment loads one payment attempt.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, paymentID)
}

// ApplyPaymentEvent moves the booking's active payment attempt to
// newStatus and drives the coupled booking-status side effects.
// Applying the status the attempt already holds is a no-op, which
// makes duplicate webhook delivery harmless.
func (s *PaymentService) ApplyPaymentEvent(ctx context.Context, bookingID string, newStatus models.PaymentAttemptStatus, transactionID string) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	// money must never land on a cancelled booking: a late gateway
	// completion (or a backfill) belongs to the refund path, not here
	if booking.Status == models.BookingCancelled &&
		(newStatus == models.AttemptCompleted || newStatus == models.AttemptPending) {
		monitoring.TrackPaymentEvent(string(newStatus), "rejected")
		return fmt.Errorf("%w: booking %s is cancelled", status.ErrInvalidPaymentTransition, bookingID)
	}

	attempt, err := s.store.LatestPayment(ctx, bookingID)
	if errors.Is(err, status.ErrNotFound) {
		attempt, err = s.openAttemptFor(ctx, booking, newStatus)
		if err != nil {
			return err
		}
		if newStatus == models.AttemptPending {
			return nil
		}
	} else if err != nil {
		return err
	}

	if attempt.Status == newStatus {
		monitoring.TrackPaymentEvent(string(newStatus), "duplicate")
		return nil
	}

	// a failed attempt is superseded by a fresh pending row, keeping
	// the attempt history intact
	if newStatus == models.AttemptPending && attempt.Status == models.AttemptFailed {
		retry := &models.Payment{
			BookingID: bookingID,
			Amount:    booking.TotalPrice,
			Method:    attempt.Method,
			Status:    models.AttemptPending,
		}
		return s.store.CreatePayment(ctx, retry)
	}

	if !attempt.Status.CanTransitionTo(newStatus) {
		monitoring.TrackPaymentEvent(string(newStatus), "rejected")
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidPaymentTransition, attempt.Status, newStatus)
	}
	if newStatus == models.AttemptRefunded && booking.Status == models.BookingCompleted && !s.config.AllowRefundAfterTravel {
		monitoring.TrackPaymentEvent(string(newStatus), "rejected")
		return fmt.Errorf("%w: refund after travel is disabled", status.ErrInvalidPaymentTransition)
	}

	if err := s.store.UpdatePaymentStatus(ctx, attempt.ID, attempt.Status, newStatus, transactionID); err != nil {
		if errors.Is(err, status.ErrConflict) {
			// racing duplicate: success if the other writer applied
			// the same event
			if current, lerr := s.store.GetPayment(ctx, attempt.ID); lerr == nil && current.Status == newStatus {
				monitoring.TrackPaymentEvent(string(newStatus), "duplicate")
				return nil
			}
		}
		return err
	}

	if err := s.applySideEffects(ctx, booking, newStatus); err != nil {
		return err
	}

	monitoring.TrackPaymentEvent(string(newStatus), "applied")
	return nil
}

// openAttemptFor backfills a payment row when an event arrives before
// any attempt was started, which happens with manual reconciliation.
func (s *PaymentService) openAttemptFor(ctx context.Context, booking *models.Booking, event models.PaymentAttemptStatus) (*models.Payment, error) {
	if event != models.AttemptPending && event != models.AttemptCompleted {
		return nil, fmt.Errorf("%w: no payment attempt for booking %s", status.ErrInvalidPaymentTransition, booking.ID)
	}

	attempt := &models.Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalPrice,
		Method:    "manual",
		Status:    models.AttemptPending,
	}
	if err := s.store.CreatePayment(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *PaymentService) applySideEffects(ctx context.Context, booking *models.Booking, event models.PaymentAttemptStatus) error {
	switch event {
	case models.AttemptCompleted:
		if booking.PaymentStatus.CanTransitionTo(models.PaymentPaid) {
			if err := s.store.UpdateBookingPaymentState(ctx, booking.ID, booking.PaymentStatus, models.PaymentPaid); err != nil {
				return err
			}
		}
		// policy: paid implies confirmed
		if booking.Status == models.BookingPending {
			if err := s.bookings.TransitionStatus(ctx, booking.ID, models.BookingConfirmed); err != nil && !errors.Is(err, status.ErrInvalidTransition) {
				return err
			}
		}
		s.notifyUser(booking.UserID, map[string]any{
			"type":       "payment_success",
			"booking_id": booking.ID,
			"reference":  booking.Reference,
		})

	case models.AttemptFailed:
		if booking.PaymentStatus == models.PaymentUnpaid {
			if err := s.store.UpdateBookingPaymentState(ctx, booking.ID, models.PaymentUnpaid, models.PaymentFailed); err != nil {
				return err
			}
		}

	case models.AttemptRefunded:
		if booking.PaymentStatus == models.PaymentPaid {
			if err := s.store.UpdateBookingPaymentState(ctx, booking.ID, models.PaymentPaid, models.PaymentRefunded); err != nil {
				return err
			}
		}
		// refund cancels the trip unless travel already happened
		if booking.Status == models.BookingPending || booking.Status == models.BookingConfirmed {
			if err := s.bookings.TransitionStatus(ctx, booking.ID, models.BookingCancelled); err != nil && !errors.Is(err, status.ErrConflict) {
				return err
			}
		}
		s.notifyUser(booking.UserID, map[string]any{
			"type":       "payment_refunded",
			"booking_id": booking.ID,
			"reference":  booking.Reference,
		})
	}

	return nil
}

// SubscribeToPaymentNotifications feeds gateway events from the
// payment channel into ApplyPaymentEvent.
func (s *PaymentService) SubscribeToPaymentNotifications() {
	listener := pubnub.NewListener()

	s.PubNub.AddListener(listener)
	s.PubNub.Subscribe().
		Channels([]string{paymentChannel}).
		Execute()

	for message := range listener.Message {
		go s.handlePaymentNotification(message)
	}
}

func (s *PaymentService) handlePaymentNotification(message *pubnub.PNMessage) {
	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	var notification models.PaymentNotification
	jsonData, _ := json.Marshal(data)
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		log.Printf("Error parsing payment notification: %v", err)
		return
	}

	event, ok := GatewayStatus(notification.Status)
	if !ok {
		log.Printf("Unknown gateway payment status: %s", notification.Status)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.ApplyPaymentEvent(ctx, notification.BookingID, event, notification.TransactionID); err != nil {
		slog.Error("Failed to apply gateway payment event",
			"booking_id", notification.BookingID, "status", notification.Status, "error", err)
	}
}

// GatewayStatus maps the gateway's wire vocabulary onto attempt
// statuses.
func GatewayStatus(raw string) (models.PaymentAttemptStatus, bool) {
	switch raw {
	case "success", "completed":
		return models.AttemptCompleted, true
	case "failed", "expired":
		return models.AttemptFailed, true
	case "refunded":
		return models.AttemptRefunded, true
	case "pending", "created":
		return models.AttemptPending, true
	}
	return "", false
}

func (s *PaymentService) notifyUser(userID string, payload map[string]any) {
	if s.PubNub == nil {
		return
	}
	channel := fmt.Sprintf("user-%s", userID)
	s.PubNub.Publish().
		Channel(channel).
		Message(payload).
		Execute()
}
