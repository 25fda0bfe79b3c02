package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utsavlook/booking-functions/internal/model"
)

func openBooking(id string) *model.Booking {
	return &model.Booking{
		ID:         id,
		CustomerID: "C1",
		Status:     model.StatusNeedsAssignment,
		EventDate:  time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_CommitAppliesWrites(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	s.Put(openBooking("B1"))
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx BookingTx) error {
		b, err := tx.Get(ctx, "B1")
		if err != nil {
			return err
		}
		b.Status = model.StatusConfirmed
		b.AssignedArtistIDs = []string{"A1"}
		return tx.Update(ctx, b)
	})
	require.NoError(t, err)

	b, err := s.GetByID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, []string{"A1"}, b.AssignedArtistIDs)
	assert.EqualValues(t, 2, s.Version("B1"))
}

func TestMemoryStore_AbortLeavesStoreUntouched(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	s.Put(openBooking("B1"))

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx BookingTx) error {
		b, _ := tx.Get(ctx, "B1")
		b.Status = model.StatusConfirmed
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		return ErrNotClaimable
	})
	assert.ErrorIs(t, err, ErrNotClaimable)
	b, _ := s.GetByID(context.Background(), "B1")
	assert.Equal(t, model.StatusNeedsAssignment, b.Status)
	assert.EqualValues(t, 1, s.Version("B1"))
}

func TestMemoryStore_ConcurrentWriteForcesRetry(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	s.Put(openBooking("B1"))
	ctx := context.Background()

	attempts := 0
	err := s.RunInTx(ctx, func(ctx context.Context, tx BookingTx) error {
		attempts++
		b, err := tx.Get(ctx, "B1")
		if err != nil {
			return err
		}
		if attempts == 1 {
			// Someone else writes between our read and our commit.
			require.NoError(t, s.MarkCancelled(ctx, "B1", "changed underneath"))
		}
		if b.Status != model.StatusNeedsAssignment {
			return ErrNotClaimable
		}
		b.Status = model.StatusConfirmed
		return tx.Update(ctx, b)
	})
	assert.ErrorIs(t, err, ErrNotClaimable)
	assert.Equal(t, 2, attempts)

	b, _ := s.GetByID(ctx, "B1")
	assert.Equal(t, model.StatusCancelled, b.Status)
}

func TestMemoryStore_ConflictExhaustion(t *testing.T) {
	s := NewMemoryBookingStore(RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	s.Put(openBooking("B1"))
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx BookingTx) error {
		b, err := tx.Get(ctx, "B1")
		if err != nil {
			return err
		}
		s.Put(openBooking("B1")) // always bump the version
		return tx.Update(ctx, b)
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_MissingBooking(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	ctx := context.Background()

	_, err := s.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.ErrorIs(t, s.MarkCancelled(ctx, "nope", "x"), ErrBookingNotFound)

	err = s.RunInTx(ctx, func(ctx context.Context, tx BookingTx) error {
		_, err := tx.Get(ctx, "nope")
		return err
	})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	s.Put(openBooking("B1"))

	b, _ := s.GetByID(context.Background(), "B1")
	b.Status = model.StatusDisputed
	b.AssignedArtistIDs = append(b.AssignedArtistIDs, "A7")

	again, _ := s.GetByID(context.Background(), "B1")
	assert.Equal(t, model.StatusNeedsAssignment, again.Status)
	assert.Empty(t, again.AssignedArtistIDs)
}

func TestMemoryStore_CreateRejectsDuplicateID(t *testing.T) {
	s := NewMemoryBookingStore(quick)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, openBooking("B1")))
	assert.ErrorIs(t, s.Create(ctx, openBooking("B1")), ErrConflict)
}
