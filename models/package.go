package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TourPackage struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Capacity       int             `json:"capacity"`
	Booked         int             `json:"booked"`
	Price          decimal.Decimal `json:"price"`
	DepartureDates []time.Time     `json:"departure_dates"`
	Status         string          `json:"status"` // draft, published, archived
}

// OffersDeparture reports whether date matches one of the package's
// offered departure dates (compared by calendar day).
func (p *TourPackage) OffersDeparture(date time.Time) bool {
	y, m, d := date.Date()
	for _, offered := range p.DepartureDates {
		oy, om, od := offered.Date()
		if oy == y && om == m && od == d {
			return true
		}
	}
	return false
}

// TargetKind discriminates what a booking references. Exactly one
// target is set per booking.
type TargetKind string

const (
	TargetPackage TargetKind = "package"
	TargetVilla   TargetKind = "villa"
	TargetOther   TargetKind = "other"
)

type BookingTarget struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func PackageTarget(packageID string) BookingTarget {
	return BookingTarget{Kind: TargetPackage, ID: packageID}
}

func (t BookingTarget) Valid() bool {
	switch t.Kind {
	case TargetPackage, TargetVilla, TargetOther:
		return t.ID != ""
	}
	return false
}
