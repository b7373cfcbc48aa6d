package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MonthlyStat struct {
	Month    string          `json:"month"` // YYYY-MM
	Bookings int             `json:"bookings"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PackageStat struct {
	PackageID   string `json:"package_id"`
	PackageName string `json:"package_name"`
	Bookings    int    `json:"bookings"`
}

type CancellationStat struct {
	BookingID   string    `json:"booking_id"`
	Reference   string    `json:"reference"`
	PackageName string    `json:"package_name"`
	UserID      string    `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type DashboardStats struct {
	BookingsByStatus map[BookingStatus]int `json:"bookings_by_status"`
	TotalRevenue     decimal.Decimal       `json:"total_revenue"`
	Monthly          []MonthlyStat         `json:"monthly"`
	TopPackages      []PackageStat         `json:"top_packages"`
	RecentCancelled  []CancellationStat    `json:"recent_cancelled"`
	GeneratedAt      time.Time             `json:"generated_at"`
}
