package services

import (
	"context"
	"testing"

	"travel-booking/internal/status"
	"travel-booking/models"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCapacityService() (*CapacityService, *memStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	st := newMemStore()
	return NewCapacityService(db, st), st, mock
}

func TestCapacityService_Reserve_Success(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Name: "Bali Escape", Capacity: 10, Booked: 2, Status: "published"})

	mock.ExpectEval(reserveScript, []string{"package:capacity:pkg1"}, 3).
		SetVal([]interface{}{int64(1), int64(5)})

	err := service.Reserve(context.Background(), "pkg1", 3)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// mirror copies the authoritative counter onto the package row
	pkg, err := st.GetPackage(context.Background(), "pkg1")
	require.NoError(t, err)
	assert.Equal(t, 5, pkg.Booked)
}

func TestCapacityService_Reserve_CapacityExceeded(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Capacity: 10, Booked: 9, Status: "published"})

	mock.ExpectEval(reserveScript, []string{"package:capacity:pkg1"}, 2).
		SetVal([]interface{}{int64(0), int64(9)})

	err := service.Reserve(context.Background(), "pkg1", 2)

	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())

	// the row keeps its previous counter: nothing was incremented
	pkg, _ := st.GetPackage(context.Background(), "pkg1")
	assert.Equal(t, 9, pkg.Booked)
}

func TestCapacityService_Reserve_SeedsUnseededLedger(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Capacity: 10, Booked: 4, Status: "published"})

	// first attempt finds no counters, seeds from the package row,
	// second attempt succeeds
	mock.ExpectEval(reserveScript, []string{"package:capacity:pkg1"}, 2).
		SetVal([]interface{}{int64(-1), int64(0)})
	mock.ExpectHSetNX("package:capacity:pkg1", "booked", 4).SetVal(true)
	mock.ExpectHSetNX("package:capacity:pkg1", "capacity", 10).SetVal(true)
	mock.ExpectEval(reserveScript, []string{"package:capacity:pkg1"}, 2).
		SetVal([]interface{}{int64(1), int64(6)})

	err := service.Reserve(context.Background(), "pkg1", 2)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityService_Reserve_UnknownPackage(t *testing.T) {
	service, _, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	mock.ExpectEval(reserveScript, []string{"package:capacity:ghost"}, 1).
		SetVal([]interface{}{int64(-1), int64(0)})

	err := service.Reserve(context.Background(), "ghost", 1)

	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCapacityService_Reserve_InvalidCount(t *testing.T) {
	service, _, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	assert.ErrorIs(t, service.Reserve(context.Background(), "pkg1", 0), status.ErrInvalidArgument)
	assert.ErrorIs(t, service.Reserve(context.Background(), "pkg1", -3), status.ErrInvalidArgument)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityService_Release_Success(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Capacity: 10, Booked: 5, Status: "published"})

	mock.ExpectEval(releaseScript, []string{"package:capacity:pkg1"}, 2).
		SetVal(int64(3))

	err := service.Release(context.Background(), "pkg1", 2)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	pkg, _ := st.GetPackage(context.Background(), "pkg1")
	assert.Equal(t, 3, pkg.Booked)
}

func TestCapacityService_Release_SeedsUnseededLedger(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Capacity: 10, Booked: 5, Status: "published"})

	// Redis lost the counters; the release must reseed from the
	// package row instead of inventing booked=0
	mock.ExpectEval(releaseScript, []string{"package:capacity:pkg1"}, 2).
		SetVal(int64(-1))
	mock.ExpectHSetNX("package:capacity:pkg1", "booked", 5).SetVal(true)
	mock.ExpectHSetNX("package:capacity:pkg1", "capacity", 10).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"package:capacity:pkg1"}, 2).
		SetVal(int64(3))

	err := service.Release(context.Background(), "pkg1", 2)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// the durable row reflects the reseeded counter, not zero
	pkg, _ := st.GetPackage(context.Background(), "pkg1")
	assert.Equal(t, 3, pkg.Booked)
}

func TestCapacityService_Release_UnknownPackage(t *testing.T) {
	service, _, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	mock.ExpectEval(releaseScript, []string{"package:capacity:ghost"}, 1).
		SetVal(int64(-1))

	err := service.Release(context.Background(), "ghost", 1)

	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCapacityService_Release_InvalidCount(t *testing.T) {
	service, _, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	assert.ErrorIs(t, service.Release(context.Background(), "pkg1", 0), status.ErrInvalidArgument)
}

func TestCapacityService_Snapshot(t *testing.T) {
	service, _, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	mock.ExpectHMGet("package:capacity:pkg1", "capacity", "booked").
		SetVal([]interface{}{"10", "4"})

	capacity, booked, err := service.Snapshot(context.Background(), "pkg1")

	require.NoError(t, err)
	assert.Equal(t, 10, capacity)
	assert.Equal(t, 4, booked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityService_WarmLedger_SeedsPublishedOnly(t *testing.T) {
	service, st, mock := setupTestCapacityService()
	defer mock.ClearExpect()

	st.seedPackage(models.TourPackage{ID: "pkg1", Capacity: 10, Booked: 2, Price: decimal.NewFromInt(100), Status: "published"})
	st.seedPackage(models.TourPackage{ID: "pkg2", Capacity: 5, Booked: 0, Status: "draft"})

	mock.ExpectHSetNX("package:capacity:pkg1", "booked", 2).SetVal(true)
	mock.ExpectHSetNX("package:capacity:pkg1", "capacity", 10).SetVal(true)

	err := service.WarmLedger(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
