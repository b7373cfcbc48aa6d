package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// bookingTransitions lists every legal status move. Completed and
// cancelled are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// PaymentState is the payment side of a booking, independent of its
// booking status.
type PaymentState string

const (
	PaymentUnpaid   PaymentState = "unpaid"
	PaymentPaid     PaymentState = "paid"
	PaymentRefunded PaymentState = "refunded"
	PaymentFailed   PaymentState = "failed"
)

var paymentStateTransitions = map[PaymentState][]PaymentState{
	PaymentUnpaid: {PaymentPaid, PaymentFailed},
	PaymentFailed: {PaymentPaid},
	PaymentPaid:   {PaymentRefunded},
}

func (s PaymentState) CanTransitionTo(target PaymentState) bool {
	for _, next := range paymentStateTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type TravelerDetail struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	PassportNumber string `json:"passport_number"`
	BirthDate      string `json:"birth_date"` // YYYY-MM-DD
	Gender         Gender `json:"gender"`
}

type Booking struct {
	ID              string           `json:"id"`
	Reference       string           `json:"reference"`
	Target          BookingTarget    `json:"target"`
	UserID          string           `json:"user_id"`
	TravelerCount   int              `json:"traveler_count"`
	TravelerDetails []TravelerDetail `json:"traveler_details"`
	SpecialRequests string           `json:"special_requests,omitempty"`
	DepartureDate   time.Time        `json:"departure_date"`
	Status          BookingStatus    `json:"status"`
	PaymentStatus   PaymentState     `json:"payment_status"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// PackageID returns the referenced package id, or "" when the booking
// targets something else.
func (b *Booking) PackageID() string {
	if b.Target.Kind == TargetPackage {
		return b.Target.ID
	}
	return ""
}
