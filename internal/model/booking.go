package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    StatusNeedsAssignment BookingStatus = "NeedsAssignment"
    StatusConfirmed       BookingStatus = "Confirmed"
    StatusCompleted       BookingStatus = "Completed"
    StatusCancelled       BookingStatus = "Cancelled"
    StatusDisputed        BookingStatus = "Disputed"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
    switch s {
    case StatusNeedsAssignment, StatusConfirmed, StatusCompleted, StatusCancelled, StatusDisputed:
        return true
    }
    return false
}

// Booking is a customer's order for an artist service on a given event date.
// It is the only record the claim and cancellation operations touch.
//
// Fields:
//  ID                 – opaque identifier (UUID), assigned at creation.
//  CustomerID         – owning customer, immutable.
//  Status             – lifecycle state.
//  AssignedArtistIDs  – artists assigned to the booking; empty while
//                       NeedsAssignment, exactly one after a claim.
//  EventDate          – scheduled time of the event in UTC.
//  CancellationReason – set only when the customer cancels.
//  ServiceCategory    – mehndi, makeup or photography.
//  PackageName        – name of the selected service package.
//  Location           – venue or address of the event.
//  AdvanceAmountPaise – advance paid at checkout, in paise.
type Booking struct {
    ID                 string        `json:"id"`
    CustomerID         string        `json:"customerId"`
    Status             BookingStatus `json:"status"`
    AssignedArtistIDs  []string      `json:"assignedArtistIds"`
    EventDate          time.Time     `json:"eventDate"`
    CancellationReason *string       `json:"cancellationReason,omitempty"`
    ServiceCategory    string        `json:"serviceCategory"`
    PackageName        string        `json:"packageName"`
    Location           string        `json:"location"`
    AdvanceAmountPaise int64         `json:"advanceAmountPaise"`
    CreatedAt          time.Time     `json:"createdAt"`
    UpdatedAt          time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (b *Booking) Clone() *Booking {
    if b == nil {
        return nil
    }
    cp := *b
    if b.AssignedArtistIDs != nil {
        cp.AssignedArtistIDs = append([]string(nil), b.AssignedArtistIDs...)
    }
    if b.CancellationReason != nil {
        r := *b.CancellationReason
        cp.CancellationReason = &r
    }
    return &cp
}

// HasArtist reports whether artistID is among the assigned artists.
func (b *Booking) HasArtist(artistID string) bool {
    for _, id := range b.AssignedArtistIDs {
        if id == artistID {
            return true
        }
    }
    return false
}
