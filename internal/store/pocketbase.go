package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"travel-booking/internal/status"
	"travel-booking/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PocketBaseStore persists everything in PocketBase collections.
// Status transitions go through single guarded UPDATE statements so
// two racing writers on the same row cannot clobber each other.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) GetPackage(ctx context.Context, id string) (*models.TourPackage, error) {
	record, err := s.app.FindRecordById("packages", id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return packageFromRecord(record)
}

func (s *PocketBaseStore) ListPackages(ctx context.Context) ([]models.TourPackage, error) {
	records, err := s.app.FindRecordsByFilter("packages", "id != ''", "-created", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages: %v", status.ErrPersistence, err)
	}
	packages := make([]models.TourPackage, 0, len(records))
	for _, record := range records {
		pkg, err := packageFromRecord(record)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *pkg)
	}
	return packages, nil
}

func (s *PocketBaseStore) SetPackageBooked(ctx context.Context, id string, booked int) error {
	res, err := s.app.DB().NewQuery(
		"UPDATE packages SET booked={:booked}, updated={:now} WHERE id={:id}",
	).Bind(dbx.Params{
		"booked": booked,
		"now":    types.NowDateTime(),
		"id":     id,
	}).Execute()
	if err != nil {
		return fmt.Errorf("%w: mirror booked counter: %v", status.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrNotFound
	}
	return nil
}

func (s *PocketBaseStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", status.ErrPersistence, err)
	}

	collection, err := s.app.FindCollectionByNameOrId("bookings")
	if err != nil {
		return fmt.Errorf("%w: bookings collection: %v", status.ErrPersistence, err)
	}

	record := core.NewRecord(collection)
	record.Set("reference", b.Reference)
	record.Set("target_kind", string(b.Target.Kind))
	record.Set("target_id", b.Target.ID)
	record.Set("user_id", b.UserID)
	record.Set("traveler_count", b.TravelerCount)
	record.Set("traveler_details", b.TravelerDetails)
	record.Set("special_requests", b.SpecialRequests)
	record.Set("departure_date", b.DepartureDate.Format(dateLayout))
	record.Set("status", string(b.Status))
	record.Set("payment_status", string(b.PaymentStatus))
	record.Set("total_price", b.TotalPrice.InexactFloat64())

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("%w: save booking: %v", status.ErrPersistence, err)
	}

	b.ID = record.Id
	b.CreatedAt = record.GetDateTime("created").Time()
	b.UpdatedAt = record.GetDateTime("updated").Time()
	return nil
}

func (s *PocketBaseStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return bookingFromRecord(record)
}

func (s *PocketBaseStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	records, err := s.app.FindRecordsByFilter("bookings", "id != ''", "-created", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", status.ErrPersistence, err)
	}
	return bookingsFromRecords(records)
}

func (s *PocketBaseStore) ListBookingsByUser(ctx context.Context, userID string, limit int) ([]models.Booking, error) {
	records, err := s.app.FindRecordsByFilter(
		"bookings",
		"user_id = {:userId}",
		"-created",
		limit,
		0,
		dbx.Params{"userId": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list user bookings: %v", status.ErrPersistence, err)
	}
	return bookingsFromRecords(records)
}

func (s *PocketBaseStore) ListConfirmedDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	records, err := s.app.FindRecordsByFilter(
		"bookings",
		"status = 'confirmed' && departure_date < {:cutoff}",
		"departure_date",
		0,
		0,
		dbx.Params{"cutoff": cutoff.Format(dateLayout)},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list departed bookings: %v", status.ErrPersistence, err)
	}
	return bookingsFromRecords(records)
}

func (s *PocketBaseStore) UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus) error {
	return s.guardedUpdate(ctx, "bookings", id, "status", string(from), string(to))
}

func (s *PocketBaseStore) UpdateBookingPaymentState(ctx context.Context, id string, from, to models.PaymentState) error {
	return s.guardedUpdate(ctx, "bookings", id, "payment_status", string(from), string(to))
}

func (s *PocketBaseStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	collection, err := s.app.FindCollectionByNameOrId("payments")
	if err != nil {
		return fmt.Errorf("%w: payments collection: %v", status.ErrPersistence, err)
	}

	record := core.NewRecord(collection)
	record.Set("booking_id", p.BookingID)
	record.Set("amount", p.Amount.InexactFloat64())
	record.Set("method", p.Method)
	record.Set("status", string(p.Status))
	record.Set("transaction_id", p.TransactionID)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("%w: save payment: %v", status.ErrPersistence, err)
	}

	p.ID = record.Id
	p.CreatedAt = record.GetDateTime("created").Time()
	p.UpdatedAt = record.GetDateTime("updated").Time()
	return nil
}

func (s *PocketBaseStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	record, err := s.app.FindRecordById("payments", id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return paymentFromRecord(record), nil
}

func (s *PocketBaseStore) LatestPayment(ctx context.Context, bookingID string) (*models.Payment, error) {
	records, err := s.app.FindRecordsByFilter(
		"payments",
		"booking_id = {:bookingId}",
		"-created",
		1,
		0,
		dbx.Params{"bookingId": bookingID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: latest payment: %v", status.ErrPersistence, err)
	}
	if len(records) == 0 {
		return nil, status.ErrNotFound
	}
	return paymentFromRecord(records[0]), nil
}

func (s *PocketBaseStore) UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentAttemptStatus, transactionID string) error {
	res, err := s.app.DB().NewQuery(
		"UPDATE payments SET status={:to}, transaction_id={:txn}, updated={:now} WHERE id={:id} AND status={:from}",
	).Bind(dbx.Params{
		"to":   string(to),
		"txn":  transactionID,
		"now":  types.NowDateTime(),
		"id":   id,
		"from": string(from),
	}).Execute()
	if err != nil {
		return fmt.Errorf("%w: update payment status: %v", status.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missReason(ctx, "payments", id)
	}
	return nil
}

// guardedUpdate commits a one-column transition in a single statement
// keyed on the expected current value.
func (s *PocketBaseStore) guardedUpdate(ctx context.Context, table, id, column, from, to string) error {
	res, err := s.app.DB().NewQuery(fmt.Sprintf(
		"UPDATE %s SET %s={:to}, updated={:now} WHERE id={:id} AND %s={:from}",
		table, column, column,
	)).Bind(dbx.Params{
		"to":   to,
		"now":  types.NowDateTime(),
		"id":   id,
		"from": from,
	}).Execute()
	if err != nil {
		return fmt.Errorf("%w: update %s.%s: %v", status.ErrPersistence, table, column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missReason(ctx, table, id)
	}
	return nil
}

// missReason distinguishes a lost race from a missing row after a
// guarded update matched nothing.
func (s *PocketBaseStore) missReason(ctx context.Context, table, id string) error {
	if _, err := s.app.FindRecordById(table, id); err != nil {
		return status.ErrNotFound
	}
	return status.ErrConflict
}

func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.ErrNotFound
	}
	return fmt.Errorf("%w: %v", status.ErrPersistence, err)
}

func packageFromRecord(record *core.Record) (*models.TourPackage, error) {
	pkg := &models.TourPackage{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Description: record.GetString("description"),
		Capacity:    record.GetInt("capacity"),
		Booked:      record.GetInt("booked"),
		Price:       decimal.NewFromFloat(record.GetFloat("price")),
		Status:      record.GetString("status"),
	}

	var rawDates []string
	if err := record.UnmarshalJSONField("departure_dates", &rawDates); err == nil {
		for _, raw := range rawDates {
			if d, err := time.Parse(dateLayout, raw); err == nil {
				pkg.DepartureDates = append(pkg.DepartureDates, d)
			}
		}
	}

	return pkg, nil
}

func bookingFromRecord(record *core.Record) (*models.Booking, error) {
	b := &models.Booking{
		ID:        record.Id,
		Reference: record.GetString("reference"),
		Target: models.BookingTarget{
			Kind: models.TargetKind(record.GetString("target_kind")),
			ID:   record.GetString("target_id"),
		},
		UserID:          record.GetString("user_id"),
		TravelerCount:   record.GetInt("traveler_count"),
		SpecialRequests: record.GetString("special_requests"),
		Status:          models.BookingStatus(record.GetString("status")),
		PaymentStatus:   models.PaymentState(record.GetString("payment_status")),
		TotalPrice:      decimal.NewFromFloat(record.GetFloat("total_price")),
		CreatedAt:       record.GetDateTime("created").Time(),
		UpdatedAt:       record.GetDateTime("updated").Time(),
	}

	if raw := record.GetString("departure_date"); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			b.DepartureDate = d
		}
	}

	if err := record.UnmarshalJSONField("traveler_details", &b.TravelerDetails); err != nil {
		return nil, fmt.Errorf("%w: traveler details on booking %s: %v", status.ErrPersistence, record.Id, err)
	}

	return b, nil
}

func bookingsFromRecords(records []*core.Record) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0, len(records))
	for _, record := range records {
		b, err := bookingFromRecord(record)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

func paymentFromRecord(record *core.Record) *models.Payment {
	return &models.Payment{
		ID:            record.Id,
		BookingID:     record.GetString("booking_id"),
		Amount:        decimal.NewFromFloat(record.GetFloat("amount")),
		Method:        record.GetString("method"),
		Status:        models.PaymentAttemptStatus(record.GetString("status")),
		TransactionID: record.GetString("transaction_id"),
		CreatedAt:     record.GetDateTime("created").Time(),
		UpdatedAt:     record.GetDateTime("updated").Time(),
	}
}
