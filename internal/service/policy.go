package service

import "time"

// RefundWindow is how far ahead of the event a cancellation must be made
// for the advance payment to be refunded. The comparison is strict: a
// booking exactly 72h out is not refundable.
const RefundWindow = 72 * time.Hour

// Cancellation reasons persisted on the booking.
const (
	ReasonWithinRefundWindow  = "Customer cancelled within refund window."
	ReasonOutsideRefundWindow = "Customer cancelled outside refund window."
)

// Messages returned to the customer.
const (
	MessageRefundable    = "Booking cancelled. Your refund will be processed."
	MessageNonRefundable = "Booking cancelled. Please note the advance payment is non-refundable for cancellations within 72 hours of the event."
)

// CancellationDecision is the outcome of applying the refund policy.
type CancellationDecision struct {
	Refundable      bool
	HoursUntilEvent float64
	Reason          string
	Message         string
}

// EvaluateCancellation applies the refund policy for a cancellation made
// at now. Events in the past yield a negative HoursUntilEvent and are
// never refundable.
func EvaluateCancellation(eventDate, now time.Time) CancellationDecision {
	until := eventDate.Sub(now)
	d := CancellationDecision{HoursUntilEvent: until.Hours()}
	if until > RefundWindow {
		d.Refundable = true
		d.Reason = ReasonWithinRefundWindow
		d.Message = MessageRefundable
		return d
	}
	d.Reason = ReasonOutsideRefundWindow
	d.Message = MessageNonRefundable
	return d
}
