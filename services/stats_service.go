package services

import (
	"context"
	"sort"
	"time"

	"travel-booking/internal/store"
	"travel-booking/models"

	"github.com/shopspring/decimal"
)

const unknownPackageName = "Unknown"

// StatsService is the read-only aggregation behind the admin
// dashboard. It never mutates anything, and a booking pointing at a
// package that no longer resolves is reported as Unknown instead of
// failing the whole dashboard.
type StatsService struct {
	store           store.Store
	topPackages     int
	recentCancelled int
}

func NewStatsService(st store.Store, topPackages, recentCancelled int) *StatsService {
	return &StatsService{
		store:           st,
		topPackages:     topPackages,
		recentCancelled: recentCancelled,
	}
}

func (s *StatsService) ComputeStats(ctx context.Context) (*models.DashboardStats, error) {
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	packages, err := s.store.ListPackages(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(packages))
	for _, pkg := range packages {
		names[pkg.ID] = pkg.Name
	}

	stats := aggregate(bookings, names, s.topPackages, s.recentCancelled)
	stats.GeneratedAt = time.Now()
	return stats, nil
}

// aggregate folds the loaded rows into dashboard numbers. Split out
// pure so it tests without a store.
func aggregate(bookings []models.Booking, packageNames map[string]string, topN, recentN int) *models.DashboardStats {
	stats := &models.DashboardStats{
		BookingsByStatus: map[models.BookingStatus]int{
			models.BookingPending:   0,
			models.BookingConfirmed: 0,
			models.BookingCompleted: 0,
			models.BookingCancelled: 0,
		},
		TotalRevenue: decimal.Zero,
	}

	monthly := map[string]*models.MonthlyStat{}
	perPackage := map[string]int{}
	var cancelled []models.Booking

	for _, b := range bookings {
		stats.BookingsByStatus[b.Status]++

		month := b.CreatedAt.Format("2006-01")
		entry, ok := monthly[month]
		if !ok {
			entry = &models.MonthlyStat{Month: month, Revenue: decimal.Zero}
			monthly[month] = entry
		}
		entry.Bookings++

		// revenue counts money actually held: paid bookings only,
		// refunded ones drop back out
		if b.PaymentStatus == models.PaymentPaid {
			stats.TotalRevenue = stats.TotalRevenue.Add(b.TotalPrice)
			entry.Revenue = entry.Revenue.Add(b.TotalPrice)
		}

		if pkgID := b.PackageID(); pkgID != "" {
			perPackage[pkgID]++
		}

		if b.Status == models.BookingCancelled {
			cancelled = append(cancelled, b)
		}
	}

	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		stats.Monthly = append(stats.Monthly, *monthly[month])
	}

	stats.TopPackages = topPackageStats(perPackage, packageNames, topN)
	stats.RecentCancelled = recentCancellations(cancelled, packageNames, recentN)

	return stats
}

func topPackageStats(perPackage map[string]int, names map[string]string, topN int) []models.PackageStat {
	ranked := make([]models.PackageStat, 0, len(perPackage))
	for pkgID, count := range perPackage {
		name, ok := names[pkgID]
		if !ok {
			name = unknownPackageName
		}
		ranked = append(ranked, models.PackageStat{
			PackageID:   pkgID,
			PackageName: name,
			Bookings:    count,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Bookings != ranked[j].Bookings {
			return ranked[i].Bookings > ranked[j].Bookings
		}
		return ranked[i].PackageID < ranked[j].PackageID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func recentCancellations(cancelled []models.Booking, names map[string]string, recentN int) []models.CancellationStat {
	sort.Slice(cancelled, func(i, j int) bool {
		return cancelled[i].UpdatedAt.After(cancelled[j].UpdatedAt)
	})

	if recentN > 0 && len(cancelled) > recentN {
		cancelled = cancelled[:recentN]
	}

	out := make([]models.CancellationStat, 0, len(cancelled))
	for _, b := range cancelled {
		name, ok := names[b.PackageID()]
		if !ok || b.PackageID() == "" {
			name = unknownPackageName
		}
		out = append(out, models.CancellationStat{
			BookingID:   b.ID,
			Reference:   b.Reference,
			PackageName: name,
			UserID:      b.UserID,
			CancelledAt: b.UpdatedAt,
		})
	}
	return out
}
