package store

import (
	"context"
	"time"

	"travel-booking/models"
)

// Store is the persistence surface the booking core runs against. The
// production implementation sits on PocketBase collections; tests swap
// in an in-memory double.
type Store interface {
	// Packages
	GetPackage(ctx context.Context, id string) (*models.TourPackage, error)
	ListPackages(ctx context.Context) ([]models.TourPackage, error)
	// SetPackageBooked mirrors the ledger's booked counter onto the
	// package row. The ledger stays authoritative; this keeps admin
	// listings honest.
	SetPackageBooked(ctx context.Context, id string, booked int) error

	// Bookings
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string, limit int) ([]models.Booking, error)
	ListConfirmedDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
	// UpdateBookingStatus commits the transition only if the row still
	// holds the expected current status; returns status.ErrConflict
	// when a concurrent writer got there first.
	UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus) error
	UpdateBookingPaymentState(ctx context.Context, id string, from, to models.PaymentState) error

	// Payments
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	// LatestPayment returns the newest attempt for the booking, or
	// status.ErrNotFound when none exists yet.
	LatestPayment(ctx context.Context, bookingID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentAttemptStatus, transactionID string) error
}
