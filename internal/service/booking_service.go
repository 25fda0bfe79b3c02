// Package service holds the booking business rules: the first-writer-wins
// job claim, the refund-window cancellation, and the small set of booking
// reads and writes around them. Every error returned from this package is
// a gRPC status error so the transport can map it without inspecting
// repository internals.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/utsavlook/booking-functions/internal/model"
	"github.com/utsavlook/booking-functions/internal/queue"
	"github.com/utsavlook/booking-functions/internal/repository"
)

// BookingStore is the persistence the service needs. Both the MySQL
// repository and the in-memory store satisfy it.
type BookingStore interface {
	RunInTx(ctx context.Context, fn repository.TxFunc) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	MarkCancelled(ctx context.Context, id, reason string) error
	Create(ctx context.Context, b *model.Booking) error
	ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error)
	ListOpen(ctx context.Context, after time.Time, limit int) ([]model.Booking, error)
}

// EventPublisher emits domain events. Failures are logged by the service
// and never change an operation's result.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

const (
	msgClaimed         = "Booking claimed successfully."
	msgUnauthenticated = "You must be logged in to perform this action."
	msgMissingBooking  = "A bookingId is required."
	msgNotFound        = "Booking not found."
	msgNotClaimable    = "This job has already been claimed or is no longer available."
	msgNotOwner        = "You are not authorized to cancel this booking."
	msgNotVisible      = "You are not allowed to view this booking."
	msgInternal        = "An unexpected error occurred. Please try again later."
)

// Open-jobs page size bounds.
const (
	DefaultJobsLimit = 50
	MaxJobsLimit     = 100
)

// ClaimResult is the success payload of ClaimJob.
type ClaimResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CancellationResult is the success payload of RequestCancellation.
type CancellationResult struct {
	Success    bool   `json:"success"`
	Refundable bool   `json:"refundable"`
	Message    string `json:"message"`
}

// CreateBookingInput carries the customer-supplied booking fields.
type CreateBookingInput struct {
	ServiceCategory    string
	PackageName        string
	Location           string
	EventDate          time.Time
	AdvanceAmountPaise int64
}

// BookingService implements the booking operations on top of a store.
type BookingService struct {
	store  BookingStore
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option customises a BookingService.
type Option func(*BookingService)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

// NewBookingService wires the service. A nil publisher drops events and a
// nil logger uses slog.Default.
func NewBookingService(store BookingStore, events EventPublisher, log *slog.Logger, opts ...Option) *BookingService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &BookingService{
		store:  store,
		events: events,
		log:    log,
		now:    time.Now,
		tracer: otel.Tracer("utsavlook/service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClaimJob assigns an open booking to the calling artist. The read of the
// booking's status and the write that confirms it happen in one store
// transaction, so of any number of concurrent claims exactly one succeeds
// and the rest see FailedPrecondition.
func (s *BookingService) ClaimJob(ctx context.Context, callerID, bookingID string) (ClaimResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.claim_job", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("caller.id", callerID),
	))
	defer span.End()

	if callerID == "" {
		return ClaimResult{}, s.fail(span, status.Error(codes.Unauthenticated, msgUnauthenticated))
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return ClaimResult{}, s.fail(span, status.Error(codes.InvalidArgument, msgMissingBooking))
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		b, err := tx.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.StatusNeedsAssignment {
			return repository.ErrNotClaimable
		}
		b.Status = model.StatusConfirmed
		b.AssignedArtistIDs = []string{callerID}
		return tx.Update(ctx, b)
	})
	if err != nil {
		return ClaimResult{}, s.fail(span, s.mapStoreErr(ctx, "claimJob", bookingID, callerID, err))
	}

	s.publish(ctx, queue.KeyBookingClaimed, queue.BookingClaimedEvent{
		BookingID: bookingID,
		ArtistID:  callerID,
		ClaimedAt: s.now().UTC().Format(time.RFC3339),
	})
	s.log.InfoContext(ctx, "job claimed", "booking_id", bookingID, "artist_id", callerID)
	return ClaimResult{Success: true, Message: msgClaimed}, nil
}

// RequestCancellation cancels the caller's own booking and records
// whether the advance is refundable. The status write is a single
// non-transactional update; a repeated request simply cancels again.
func (s *BookingService) RequestCancellation(ctx context.Context, callerID, bookingID string) (CancellationResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.request_cancellation", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("caller.id", callerID),
	))
	defer span.End()

	if callerID == "" {
		return CancellationResult{}, s.fail(span, status.Error(codes.Unauthenticated, msgUnauthenticated))
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return CancellationResult{}, s.fail(span, status.Error(codes.InvalidArgument, msgMissingBooking))
	}

	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return CancellationResult{}, s.fail(span, s.mapStoreErr(ctx, "requestCancellation", bookingID, callerID, err))
	}
	if b.CustomerID != callerID {
		return CancellationResult{}, s.fail(span, status.Error(codes.PermissionDenied, msgNotOwner))
	}

	now := s.now()
	d := EvaluateCancellation(b.EventDate, now)
	span.SetAttributes(
		attribute.Float64("booking.hours_until_event", d.HoursUntilEvent),
		attribute.Bool("booking.refundable", d.Refundable),
	)

	if err := s.store.MarkCancelled(ctx, bookingID, d.Reason); err != nil {
		return CancellationResult{}, s.fail(span, s.mapStoreErr(ctx, "requestCancellation", bookingID, callerID, err))
	}

	s.publish(ctx, queue.KeyBookingCancelled, queue.BookingCancelledEvent{
		BookingID:   bookingID,
		CustomerID:  callerID,
		Refundable:  d.Refundable,
		Reason:      d.Reason,
		CancelledAt: now.UTC().Format(time.RFC3339),
	})
	s.log.InfoContext(ctx, "booking cancelled",
		"booking_id", bookingID, "customer_id", callerID,
		"refundable", d.Refundable, "hours_until_event", d.HoursUntilEvent)
	return CancellationResult{Success: true, Refundable: d.Refundable, Message: d.Message}, nil
}

// CreateBooking places a new booking owned by the caller. It starts in
// NeedsAssignment with no artists.
func (s *BookingService) CreateBooking(ctx context.Context, callerID string, in CreateBookingInput) (*model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer span.End()

	if callerID == "" {
		return nil, s.fail(span, status.Error(codes.Unauthenticated, msgUnauthenticated))
	}
	now := s.now().UTC()
	if err := validateCreate(in, now); err != nil {
		return nil, s.fail(span, err)
	}

	b := &model.Booking{
		ID:                 uuid.NewString(),
		CustomerID:         callerID,
		Status:             model.StatusNeedsAssignment,
		AssignedArtistIDs:  []string{},
		EventDate:          in.EventDate.UTC().Truncate(time.Microsecond),
		ServiceCategory:    in.ServiceCategory,
		PackageName:        strings.TrimSpace(in.PackageName),
		Location:           strings.TrimSpace(in.Location),
		AdvanceAmountPaise: in.AdvanceAmountPaise,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, s.fail(span, s.mapStoreErr(ctx, "createBooking", b.ID, callerID, err))
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))

	s.publish(ctx, queue.KeyBookingCreated, queue.BookingCreatedEvent{
		BookingID:          b.ID,
		CustomerID:         b.CustomerID,
		ServiceCategory:    b.ServiceCategory,
		EventDate:          b.EventDate.Format(time.RFC3339),
		AdvanceAmountPaise: b.AdvanceAmountPaise,
		CreatedAt:          now.Format(time.RFC3339),
	})
	return b, nil
}

func validateCreate(in CreateBookingInput, now time.Time) error {
	switch {
	case !model.ValidCategory(in.ServiceCategory):
		return status.Error(codes.InvalidArgument, "serviceCategory must be one of mehndi, makeup, photography.")
	case strings.TrimSpace(in.PackageName) == "":
		return status.Error(codes.InvalidArgument, "packageName is required.")
	case strings.TrimSpace(in.Location) == "":
		return status.Error(codes.InvalidArgument, "location is required.")
	case in.EventDate.IsZero() || !in.EventDate.After(now):
		return status.Error(codes.InvalidArgument, "eventDate must be in the future.")
	case in.AdvanceAmountPaise < 0:
		return status.Error(codes.InvalidArgument, "advanceAmountPaise must not be negative.")
	}
	return nil
}

// GetBooking returns a booking to its customer, an assigned artist, or an admin.
func (s *BookingService) GetBooking(ctx context.Context, callerID string, role model.Role, bookingID string) (*model.Booking, error) {
	if callerID == "" {
		return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, status.Error(codes.InvalidArgument, msgMissingBooking)
	}
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapStoreErr(ctx, "getBooking", bookingID, callerID, err)
	}
	if role != model.RoleAdmin && b.CustomerID != callerID && !b.HasArtist(callerID) {
		return nil, status.Error(codes.PermissionDenied, msgNotVisible)
	}
	return b, nil
}

// ListCustomerBookings returns the caller's bookings, newest first.
func (s *BookingService) ListCustomerBookings(ctx context.Context, callerID string) ([]model.Booking, error) {
	if callerID == "" {
		return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
	}
	out, err := s.store.ListByCustomer(ctx, callerID)
	if err != nil {
		return nil, s.mapStoreErr(ctx, "listCustomerBookings", "", callerID, err)
	}
	return out, nil
}

// ListOpenJobs returns bookings waiting for an artist whose event has not
// happened yet, soonest first. A zero limit means DefaultJobsLimit.
func (s *BookingService) ListOpenJobs(ctx context.Context, limit int) ([]model.Booking, error) {
	if limit == 0 {
		limit = DefaultJobsLimit
	}
	if limit < 1 || limit > MaxJobsLimit {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be between 1 and %d.", MaxJobsLimit)
	}
	out, err := s.store.ListOpen(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, s.mapStoreErr(ctx, "listOpenJobs", "", "", err)
	}
	return out, nil
}

// mapStoreErr converts repository sentinels to status errors. Anything
// unrecognised is logged with its detail and surfaced as a bare Internal.
func (s *BookingService) mapStoreErr(ctx context.Context, op, bookingID, callerID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return status.Error(codes.NotFound, msgNotFound)
	case errors.Is(err, repository.ErrNotClaimable):
		return status.Error(codes.FailedPrecondition, msgNotClaimable)
	case errors.Is(err, repository.ErrForbidden):
		return status.Error(codes.PermissionDenied, msgNotOwner)
	}
	s.log.ErrorContext(ctx, "booking operation failed",
		"op", op, "booking_id", bookingID, "caller_id", callerID, "err", err)
	return status.Error(codes.Internal, msgInternal)
}

func (s *BookingService) fail(span trace.Span, err error) error {
	span.SetStatus(otelcodes.Error, status.Code(err).String())
	return err
}

func (s *BookingService) publish(ctx context.Context, key string, ev any) {
	if err := s.events.PublishJSON(ctx, key, ev); err != nil {
		s.log.WarnContext(ctx, "publish event failed", "key", key, "err", err)
	}
}
