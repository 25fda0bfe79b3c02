package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/utsavlook/booking-functions/internal/model"
)

// MemoryBookingStore is an in-process booking store with optimistic
// concurrency. Every document carries a version; a transaction records
// the versions it read and commits only if none of them moved. A losing
// transaction gets ErrConflict and is re-run by RunInTx.
//
// It backs the service tests and the server when no DB_HOST is set.
type MemoryBookingStore struct {
	mu     sync.Mutex
	docs   map[string]*versioned
	policy RetryPolicy
	now    func() time.Time
}

type versioned struct {
	booking *model.Booking
	version uint64
}

// NewMemoryBookingStore returns an empty store using policy for retries.
func NewMemoryBookingStore(policy RetryPolicy) *MemoryBookingStore {
	return &MemoryBookingStore{
		docs:   make(map[string]*versioned),
		policy: policy.normalized(),
		now:    time.Now,
	}
}

// Put inserts or replaces a booking without any checks. It is meant for
// seeding fixtures.
func (s *MemoryBookingStore) Put(b *model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(b.Clone())
}

func (s *MemoryBookingStore) putLocked(b *model.Booking) {
	if b.AssignedArtistIDs == nil {
		b.AssignedArtistIDs = []string{}
	}
	if d, ok := s.docs[b.ID]; ok {
		d.booking = b
		d.version++
		return
	}
	s.docs[b.ID] = &versioned{booking: b, version: 1}
}

func (s *MemoryBookingStore) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[b.ID]; ok {
		return ErrConflict
	}
	s.putLocked(b.Clone())
	return nil
}

func (s *MemoryBookingStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return d.booking.Clone(), nil
}

func (s *MemoryBookingStore) ListByCustomer(_ context.Context, customerID string) ([]model.Booking, error) {
	s.mu.Lock()
	out := make([]model.Booking, 0)
	for _, d := range s.docs {
		if d.booking.CustomerID == customerID {
			out = append(out, *d.booking.Clone())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryBookingStore) ListOpen(_ context.Context, after time.Time, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	out := make([]model.Booking, 0)
	for _, d := range s.docs {
		b := d.booking
		if b.Status == model.StatusNeedsAssignment && b.EventDate.After(after) {
			out = append(out, *b.Clone())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].EventDate.Before(out[j].EventDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkCancelled is a plain single-document write; it bumps the version so
// that any transaction which read the booking before it will conflict.
func (s *MemoryBookingStore) MarkCancelled(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return ErrBookingNotFound
	}
	b := d.booking.Clone()
	b.Status = model.StatusCancelled
	b.CancellationReason = &reason
	b.UpdatedAt = s.now().UTC()
	d.booking = b
	d.version++
	return nil
}

// RunInTx runs fn against a snapshot and commits its writes atomically
// if nothing it read changed in the meantime.
func (s *MemoryBookingStore) RunInTx(ctx context.Context, fn TxFunc) error {
	return runWithRetry(ctx, s.policy, func() error {
		tx := &memoryTx{
			store:  s,
			reads:  make(map[string]uint64),
			writes: make(map[string]*model.Booking),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.commit()
	})
}

// Version reports the current version of a booking, or 0 if absent.
func (s *MemoryBookingStore) Version(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return d.version
	}
	return 0
}

type memoryTx struct {
	store  *MemoryBookingStore
	reads  map[string]uint64 // 0 means "read as missing"
	writes map[string]*model.Booking
}

func (t *memoryTx) Get(_ context.Context, id string) (*model.Booking, error) {
	if b, ok := t.writes[id]; ok {
		return b.Clone(), nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	d, ok := t.store.docs[id]
	if !ok {
		t.reads[id] = 0
		return nil, ErrBookingNotFound
	}
	if _, seen := t.reads[id]; !seen {
		t.reads[id] = d.version
	}
	return d.booking.Clone(), nil
}

func (t *memoryTx) Update(_ context.Context, b *model.Booking) error {
	if _, ok := t.reads[b.ID]; !ok {
		// Blind writes are not supported; every update must follow a read.
		return ErrBookingNotFound
	}
	t.writes[b.ID] = b.Clone()
	return nil
}

func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range t.reads {
		var cur uint64
		if d, ok := s.docs[id]; ok {
			cur = d.version
		}
		if cur != v {
			return ErrConflict
		}
	}
	now := s.now().UTC()
	for _, b := range t.writes {
		b.UpdatedAt = now
		s.putLocked(b)
	}
	return nil
}
