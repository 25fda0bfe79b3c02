// Package queue defines the booking domain events exchanged over RabbitMQ,
// the topic publisher that emits them and the audit consumer that records them.
package queue

// Routing keys on the booking topic exchange.
const (
    KeyBookingCreated   = "booking.created"
    KeyBookingClaimed   = "booking.claimed"
    KeyBookingCancelled = "booking.cancelled"

    // KeyAllBookings binds a queue to every booking event.
    KeyAllBookings = "booking.*"
)

// BookingCreatedEvent is published when a customer places a new booking.
type BookingCreatedEvent struct {
    BookingID          string `json:"booking_id"`
    CustomerID         string `json:"customer_id"`
    ServiceCategory    string `json:"service_category"`
    EventDate          string `json:"event_date"`
    AdvanceAmountPaise int64  `json:"advance_amount_paise"`
    CreatedAt          string `json:"created_at"`
}

// BookingClaimedEvent is published after an artist wins a claim. It carries
// enough for notification workers to tell the customer who is coming.
type BookingClaimedEvent struct {
    BookingID string `json:"booking_id"`
    ArtistID  string `json:"artist_id"`
    ClaimedAt string `json:"claimed_at"`
}

// BookingCancelledEvent is published after a customer cancels. Refund
// execution downstream keys off Refundable; nothing here moves money.
type BookingCancelledEvent struct {
    BookingID   string `json:"booking_id"`
    CustomerID  string `json:"customer_id"`
    Refundable  bool   `json:"refundable"`
    Reason      string `json:"reason"`
    CancelledAt string `json:"cancelled_at"`
}
