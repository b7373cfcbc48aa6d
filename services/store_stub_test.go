package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"travel-booking/internal/status"
	"travel-booking/models"

	"github.com/stretchr/testify/mock"
)

// memStore is the in-memory store double shared by the service tests.
// It mimics the guarded-update semantics of the real store: status
// writes only commit when the row still holds the expected value.
type memStore struct {
	mu           sync.Mutex
	packages     map[string]models.TourPackage
	bookings     map[string]models.Booking
	payments     map[string]models.Payment
	paymentOrder []string

	bookingSeq int
	paymentSeq int

	createBookingErr error
}

func newMemStore() *memStore {
	return &memStore{
		packages: make(map[string]models.TourPackage),
		bookings: make(map[string]models.Booking),
		payments: make(map[string]models.Payment),
	}
}

func (m *memStore) seedPackage(p models.TourPackage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages[p.ID] = p
}

func (m *memStore) seedBooking(b models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *memStore) seedPayment(p models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	m.paymentOrder = append(m.paymentOrder, p.ID)
}

func (m *memStore) booking(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) payment(id string) models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) GetPackage(ctx context.Context, id string) (*models.TourPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.packages[id]
	if !ok {
		return nil, fmt.Errorf("%w: package %s", status.ErrNotFound, id)
	}
	return &pkg, nil
}

func (m *memStore) ListPackages(ctx context.Context) ([]models.TourPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TourPackage, 0, len(m.packages))
	for _, pkg := range m.packages {
		out = append(out, pkg)
	}
	return out, nil
}

func (m *memStore) SetPackageBooked(ctx context.Context, id string, booked int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.packages[id]
	if !ok {
		return fmt.Errorf("%w: package %s", status.ErrNotFound, id)
	}
	pkg.Booked = booked
	m.packages[id] = pkg
	return nil
}

func (m *memStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createBookingErr != nil {
		return m.createBookingErr
	}
	m.bookingSeq++
	b.ID = fmt.Sprintf("bk_%03d", m.bookingSeq)
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", status.ErrNotFound, id)
	}
	return &b, nil
}

func (m *memStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) ListBookingsByUser(ctx context.Context, userID string, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListConfirmedDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingConfirmed && b.DepartureDate.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %s", status.ErrNotFound, id)
	}
	if b.Status != from {
		return fmt.Errorf("%w: booking %s is %s, expected %s", status.ErrConflict, id, b.Status, from)
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	m.bookings[id] = b
	return nil
}

func (m *memStore) UpdateBookingPaymentState(ctx context.Context, id string, from, to models.PaymentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %s", status.ErrNotFound, id)
	}
	if b.PaymentStatus != from {
		return fmt.Errorf("%w: booking %s payment is %s, expected %s", status.ErrConflict, id, b.PaymentStatus, from)
	}
	b.PaymentStatus = to
	b.UpdatedAt = time.Now()
	m.bookings[id] = b
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentSeq++
	p.ID = fmt.Sprintf("pay_%03d", m.paymentSeq)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.payments[p.ID] = *p
	m.paymentOrder = append(m.paymentOrder, p.ID)
	return nil
}

func (m *memStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", status.ErrNotFound, id)
	}
	return &p, nil
}

func (m *memStore) LatestPayment(ctx context.Context, bookingID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.paymentOrder) - 1; i >= 0; i-- {
		p := m.payments[m.paymentOrder[i]]
		if p.BookingID == bookingID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: no payment for booking %s", status.ErrNotFound, bookingID)
}

func (m *memStore) UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentAttemptStatus, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment %s", status.ErrNotFound, id)
	}
	if p.Status != from {
		return fmt.Errorf("%w: payment %s is %s, expected %s", status.ErrConflict, id, p.Status, from)
	}
	p.Status = to
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.UpdatedAt = time.Now()
	m.payments[id] = p
	return nil
}

// MockLedger mocks the capacity ledger for booking service tests.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Reserve(ctx context.Context, packageID string, count int) error {
	args := m.Called(ctx, packageID, count)
	return args.Error(0)
}

func (m *MockLedger) Release(ctx context.Context, packageID string, count int) error {
	args := m.Called(ctx, packageID, count)
	return args.Error(0)
}
