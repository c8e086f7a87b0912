package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

func newTestInventoryService(rideRepo *mockRideRepository) *InventoryService {
	return NewInventoryService(rideRepo, newTestProducer(), newTestLogger())
}

// ==========================================================================
// TryReserve
// ==========================================================================

func TestInventoryService_TryReserve_Success(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("TryReserveSeats", ctx, "ride-1", 2).Return(nil)

	err := svc.TryReserve(ctx, "ride-1", 2)

	require.NoError(t, err)
	rideRepo.AssertExpectations(t)
}

func TestInventoryService_TryReserve_InvalidSeats(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	err := svc.TryReserve(ctx, "ride-1", 0)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	rideRepo.AssertNotCalled(t, "TryReserveSeats")
}

func TestInventoryService_TryReserve_InsufficientCapacity(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("TryReserveSeats", ctx, "ride-1", 3).
		Return(apperrors.InsufficientCapacity("ride-1", 3, 1))

	err := svc.TryReserve(ctx, "ride-1", 3)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientCapacity)
	rideRepo.AssertExpectations(t)
}

func TestInventoryService_TryReserve_RideNotFound(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("TryReserveSeats", ctx, "missing", 1).
		Return(apperrors.NotFound("ride", "missing"))

	err := svc.TryReserve(ctx, "missing", 1)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	rideRepo.AssertExpectations(t)
}

// ==========================================================================
// Release
// ==========================================================================

func TestInventoryService_Release_Success(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("ReleaseSeats", ctx, "ride-1", 2).Return(nil)

	err := svc.Release(ctx, "ride-1", 2)

	require.NoError(t, err)
	rideRepo.AssertExpectations(t)
}

func TestInventoryService_Release_InvalidSeats(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	err := svc.Release(ctx, "ride-1", -1)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	rideRepo.AssertNotCalled(t, "ReleaseSeats")
}

func TestInventoryService_Release_OverRelease(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("ReleaseSeats", ctx, "ride-1", 5).
		Return(apperrors.Conflict("release of 5 seats on ride ride-1 exceeds total capacity"))

	err := svc.Release(ctx, "ride-1", 5)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	rideRepo.AssertExpectations(t)
}

func TestInventoryService_Release_RideNotFound(t *testing.T) {
	ctx := context.Background()
	rideRepo := new(mockRideRepository)
	svc := newTestInventoryService(rideRepo)

	rideRepo.On("ReleaseSeats", ctx, "missing", 1).
		Return(apperrors.NotFound("ride", "missing"))

	err := svc.Release(ctx, "missing", 1)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	rideRepo.AssertExpectations(t)
}
