package services

import (
	"context"
	"fmt"
	"log/slog"

	"travel-booking/internal/status"
	"travel-booking/internal/store"

	"github.com/redis/go-redis/v9"
)

// reserveScript is the whole reservation protocol: check and
// increment happen inside one script execution, so two concurrent
// reservations on the same package can never both read a stale booked
// counter. Returns {verdict, booked} with verdict 1=reserved,
// 0=capacity exceeded, -1=counter not seeded yet.
const reserveScript = `
local capacity = tonumber(redis.call('HGET', KEYS[1], 'capacity'))
local booked = tonumber(redis.call('HGET', KEYS[1], 'booked')) or 0
local n = tonumber(ARGV[1])
if capacity == nil then
	return {-1, booked}
end
if booked + n > capacity then
	return {0, booked}
end
booked = redis.call('HINCRBY', KEYS[1], 'booked', n)
return {1, booked}
`

// releaseScript decrements booked with a floor of zero, so a
// double-release can never drive the counter negative. Like
// reserveScript it refuses to run against an unseeded key (-1):
// inventing booked=0 there would later mirror a bogus zero onto the
// package row and free phantom capacity.
const releaseScript = `
local capacity = tonumber(redis.call('HGET', KEYS[1], 'capacity'))
if capacity == nil then
	return -1
end
local booked = tonumber(redis.call('HGET', KEYS[1], 'booked')) or 0
local n = tonumber(ARGV[1])
local next = booked - n
if next < 0 then
	next = 0
end
redis.call('HSET', KEYS[1], 'booked', next)
return next
`

// CapacityService owns the authoritative (capacity, booked) pair per
// package. Keys are independent per package, so reservations on
// different packages never contend.
type CapacityService struct {
	Redis *redis.Client
	store store.Store
}

func NewCapacityService(redisClient *redis.Client, st store.Store) *CapacityService {
	return &CapacityService{Redis: redisClient, store: st}
}

func capacityKey(packageID string) string {
	return fmt.Sprintf("package:capacity:%s", packageID)
}

// Reserve atomically books count travelers on the package. Returns
// status.ErrCapacityExceeded without changing anything when the
// package cannot hold them.
func (s *CapacityService) Reserve(ctx context.Context, packageID string, count int) error {
	if count < 1 {
		return status.ErrInvalidArgument
	}

	key := capacityKey(packageID)
	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.Redis.Eval(ctx, reserveScript, []string{key}, count).Result()
		if err != nil {
			return fmt.Errorf("%w: reserve script: %v", status.ErrPersistence, err)
		}

		verdict, booked, err := parseLedgerReply(result)
		if err != nil {
			return err
		}

		switch verdict {
		case 1:
			s.mirrorBooked(ctx, packageID, booked)
			return nil
		case 0:
			return status.ErrCapacityExceeded
		case -1:
			// first touch of this package since startup
			if err := s.seed(ctx, packageID); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: package %s ledger did not seed", status.ErrPersistence, packageID)
}

// Release returns count travelers to the package. Always succeeds for
// a positive count; the counter clamps at zero.
func (s *CapacityService) Release(ctx context.Context, packageID string, count int) error {
	if count < 1 {
		return status.ErrInvalidArgument
	}

	key := capacityKey(packageID)
	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.Redis.Eval(ctx, releaseScript, []string{key}, count).Result()
		if err != nil {
			return fmt.Errorf("%w: release script: %v", status.ErrPersistence, err)
		}

		booked, ok := result.(int64)
		if !ok {
			return fmt.Errorf("%w: unexpected release reply %v", status.ErrPersistence, result)
		}

		if booked >= 0 {
			s.mirrorBooked(ctx, packageID, int(booked))
			return nil
		}

		// unseeded key, e.g. a cancellation right after a Redis flush
		if err := s.seed(ctx, packageID); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: package %s ledger did not seed", status.ErrPersistence, packageID)
}

// Snapshot reads the current (capacity, booked) pair.
func (s *CapacityService) Snapshot(ctx context.Context, packageID string) (capacity, booked int, err error) {
	vals, err := s.Redis.HMGet(ctx, capacityKey(packageID), "capacity", "booked").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ledger snapshot: %v", status.ErrPersistence, err)
	}
	return ledgerField(vals[0]), ledgerField(vals[1]), nil
}

// WarmLedger seeds counters for every published package so the first
// reservation after a restart does not pay the seeding round-trip.
func (s *CapacityService) WarmLedger(ctx context.Context) error {
	packages, err := s.store.ListPackages(ctx)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if pkg.Status != "published" {
			continue
		}
		if err := s.seed(ctx, pkg.ID); err != nil {
			slog.Error("Failed to warm capacity ledger", "package_id", pkg.ID, "error", err)
		}
	}
	return nil
}

// seed loads the package row and installs its counters, without
// overwriting anything a concurrent seeder already wrote.
func (s *CapacityService) seed(ctx context.Context, packageID string) error {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return err
	}

	key := capacityKey(packageID)
	if err := s.Redis.HSetNX(ctx, key, "booked", pkg.Booked).Err(); err != nil {
		return fmt.Errorf("%w: seed booked: %v", status.ErrPersistence, err)
	}
	if err := s.Redis.HSetNX(ctx, key, "capacity", pkg.Capacity).Err(); err != nil {
		return fmt.Errorf("%w: seed capacity: %v", status.ErrPersistence, err)
	}
	return nil
}

// mirrorBooked copies the counter onto the package row. Best effort:
// the ledger is authoritative, a failed mirror only staled the admin
// listing until the next change.
func (s *CapacityService) mirrorBooked(ctx context.Context, packageID string, booked int) {
	if err := s.store.SetPackageBooked(ctx, packageID, booked); err != nil {
		slog.Error("Failed to mirror booked counter", "package_id", packageID, "booked", booked, "error", err)
	}
}

func parseLedgerReply(result any) (verdict int64, booked int, err error) {
	reply, ok := result.([]any)
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected reserve reply %v", status.ErrPersistence, result)
	}
	v, _ := reply[0].(int64)
	b, _ := reply[1].(int64)
	return v, int(b), nil
}

func ledgerField(v any) int {
	switch t := v.(type) {
	case string:
		var n int
		fmt.Sscanf(t, "%d", &n)
		return n
	case int64:
		return int(t)
	}
	return 0
}
