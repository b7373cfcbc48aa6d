package services

import (
	"context"
	"testing"
	"time"

	"travel-booking/config"
	"travel-booking/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func setupTestCompletionService() (*CompletionService, *memStore) {
	db, _ := redismock.NewClientMock()
	st := newMemStore()
	ledger := new(MockLedger)
	cfg := &config.Config{PersistTimeout: 5 * time.Second}
	bookingService := NewBookingService(st, ledger, db, cfg)
	return NewCompletionService(st, bookingService, time.Hour), st
}

func TestCompletionService_SweepOnce(t *testing.T) {
	service, st := setupTestCompletionService()

	yesterday := time.Now().Add(-24 * time.Hour)
	nextWeek := time.Now().Add(7 * 24 * time.Hour)

	st.seedBooking(models.Booking{
		ID: "bk_departed", Target: models.PackageTarget("pkg1"),
		Status: models.BookingConfirmed, PaymentStatus: models.PaymentPaid,
		DepartureDate: yesterday,
	})
	st.seedBooking(models.Booking{
		ID: "bk_upcoming", Target: models.PackageTarget("pkg1"),
		Status: models.BookingConfirmed, PaymentStatus: models.PaymentPaid,
		DepartureDate: nextWeek,
	})
	st.seedBooking(models.Booking{
		ID: "bk_pending", Target: models.PackageTarget("pkg1"),
		Status: models.BookingPending, PaymentStatus: models.PaymentUnpaid,
		DepartureDate: yesterday,
	})

	completed := service.SweepOnce(context.Background())

	assert.Equal(t, 1, completed)
	assert.Equal(t, models.BookingCompleted, st.booking("bk_departed").Status)
	assert.Equal(t, models.BookingConfirmed, st.booking("bk_upcoming").Status)
	// pending bookings never auto-complete
	assert.Equal(t, models.BookingPending, st.booking("bk_pending").Status)
}

func TestCompletionService_SweepOnce_Empty(t *testing.T) {
	service, _ := setupTestCompletionService()
	assert.Equal(t, 0, service.SweepOnce(context.Background()))
}

func TestCompletionService_StartStop(t *testing.T) {
	service, _ := setupTestCompletionService()

	service.Start()
	service.Stop()
}
