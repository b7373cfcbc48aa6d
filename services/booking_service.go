package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"travel-booking/config"
	"travel-booking/internal/status"
	"travel-booking/internal/store"
	"travel-booking/models"
	"travel-booking/monitoring"
	"travel-booking/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Ledger is the capacity counter the coordinator reserves against.
type Ledger interface {
	Reserve(ctx context.Context, packageID string, count int) error
	Release(ctx context.Context, packageID string, count int) error
}

// BookingService orchestrates a reservation as one compensatable
// unit: validate travelers, reserve capacity, persist the booking.
// Capacity reserved in step two never outlives a failed step three.
type BookingService struct {
	store  store.Store
	ledger Ledger
	Redis  *redis.Client
	config *config.Config
}

func NewBookingService(st store.Store, ledger Ledger, redisClient *redis.Client, cfg *config.Config) *BookingService {
	return &BookingService{
		store:  st,
		ledger: ledger,
		Redis:  redisClient,
		config: cfg,
	}
}

type CreateBookingRequest struct {
	PackageID       string                  `json:"package_id"`
	UserID          string                  `json:"-"`
	Travelers       []models.TravelerDetail `json:"travelers"`
	SpecialRequests string                  `json:"special_requests"`
	DepartureDate   string                  `json:"departure_date"` // YYYY-MM-DD
	IdempotencyKey  string                  `json:"-"`
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("booking:idem:%s", key)
}

// CreateBooking books travelerCount seats on the package, snapshotting
// the package price into the booking total. On persistence failure the
// already-reserved capacity is released before the error surfaces.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	count := len(req.Travelers)
	if count < 1 {
		return nil, &status.ValidationError{Violations: []status.Violation{
			{TravelerIndex: 0, Field: "travelers", Reason: "required"},
		}}
	}

	// duplicate delivery of the same request returns the original
	// booking instead of reserving twice. Only redis.Nil means "no
	// prior request"; any other error fails closed, otherwise a retry
	// during an outage would reserve twice under the same key.
	if req.IdempotencyKey != "" {
		existingID, err := s.Redis.Get(ctx, idempotencyKey(req.IdempotencyKey)).Result()
		switch {
		case err == nil && existingID != "":
			return s.store.GetBooking(ctx, existingID)
		case err != nil && !errors.Is(err, redis.Nil):
			return nil, fmt.Errorf("%w: idempotency check: %v", status.ErrPersistence, err)
		}
	}

	if violations := ValidateTravelers(req.Travelers); len(violations) > 0 {
		return nil, &status.ValidationError{Violations: violations}
	}

	pkg, err := s.store.GetPackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	departure, err := time.Parse("2006-01-02", req.DepartureDate)
	if err != nil || !pkg.OffersDeparture(departure) {
		return nil, &status.ValidationError{Violations: []status.Violation{
			{TravelerIndex: 0, Field: "departure_date", Reason: "not_offered"},
		}}
	}

	if err := s.ledger.Reserve(ctx, req.PackageID, count); err != nil {
		if errors.Is(err, status.ErrCapacityExceeded) {
			monitoring.TrackBookingOperation("create", "capacity_exceeded")
		}
		return nil, err
	}

	reference, err := utils.BookingReference()
	if err != nil {
		reference = ""
	}

	booking := &models.Booking{
		Reference:       reference,
		Target:          models.PackageTarget(req.PackageID),
		UserID:          req.UserID,
		TravelerCount:   count,
		TravelerDetails: req.Travelers,
		SpecialRequests: req.SpecialRequests,
		DepartureDate:   departure,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentUnpaid,
		TotalPrice:      pkg.Price.Mul(decimal.NewFromInt(int64(count))),
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.config.PersistTimeout)
	defer cancel()

	if err := s.store.CreateBooking(saveCtx, booking); err != nil {
		s.compensate(ctx, req.PackageID, count)
		monitoring.TrackBookingOperation("create", "persistence_error")
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if err := s.Redis.Set(ctx, idempotencyKey(req.IdempotencyKey), booking.ID, s.config.IdempotencyTTL).Err(); err != nil {
			slog.Error("Failed to record idempotency key", "booking_id", booking.ID, "error", err)
		}
	}

	monitoring.TrackBookingOperation("create", "success")
	return booking, nil
}

// compensate undoes a reservation whose booking never persisted. Runs
// detached from the request deadline: the request already failed, the
// counter must still come back.
func (s *BookingService) compensate(ctx context.Context, packageID string, count int) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.releaseWithRetry(releaseCtx, packageID, count); err != nil {
		monitoring.TrackBookingOperation("release", "failure")
		slog.Error("Failed to release capacity after persist failure",
			"package_id", packageID, "count", count, "error", err)
	}
}

const releaseAttempts = 3

// releaseWithRetry returns seats to the ledger, retrying transient
// failures before the caller counts the leak.
func (s *BookingService) releaseWithRetry(ctx context.Context, packageID string, count int) error {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
		if err = s.ledger.Release(ctx, packageID, count); err == nil {
			return nil
		}
	}
	return err
}

// CancelBooking transitions the booking to cancelled and returns its
// seats to the package. A paid booking must go through the refund path
// first, otherwise it would end up cancelled-but-paid.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) error {
	return s.TransitionStatus(ctx, bookingID, models.BookingCancelled)
}

// TransitionStatus applies an admin- or flow-driven status change,
// validated against the legal transition table. A transition into
// cancelled is paired with exactly one capacity release.
func (s *BookingService) TransitionStatus(ctx context.Context, bookingID string, target models.BookingStatus) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if !booking.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, booking.Status, target)
	}
	if target == models.BookingCancelled && booking.PaymentStatus == models.PaymentPaid {
		return fmt.Errorf("%w: booking %s is paid, refund before cancelling", status.ErrInvalidTransition, bookingID)
	}

	if err := s.store.UpdateBookingStatus(ctx, bookingID, booking.Status, target); err != nil {
		monitoring.TrackBookingOperation("transition", "conflict")
		return err
	}

	if target == models.BookingCancelled {
		if pkgID := booking.PackageID(); pkgID != "" {
			if err := s.releaseWithRetry(ctx, pkgID, booking.TravelerCount); err != nil {
				monitoring.TrackBookingOperation("release", "failure")
				slog.Error("Failed to release capacity on cancellation",
					"booking_id", bookingID, "package_id", pkgID, "error", err)
			}
		}
	}

	monitoring.TrackBookingTransition(string(booking.Status), string(target))
	return nil
}

// Get loads a single booking.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

// HistoryForUser lists the caller's bookings, newest first.
func (s *BookingService) HistoryForUser(ctx context.Context, userID string, limit int) ([]models.Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID, limit)
}
