package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) []byte {
    t.Helper()
    b, err := json.Marshal(v)
    require.NoError(t, err)
    return b
}

func TestFormatAuditLine(t *testing.T) {
    line, err := FormatAuditLine(KeyBookingClaimed, mustJSON(t, BookingClaimedEvent{
        BookingID: "B1", ArtistID: "A1", ClaimedAt: "2026-01-01T10:00:00Z",
    }))
    require.NoError(t, err)
    assert.Equal(t, "[2026-01-01T10:00:00Z] Booking claimed | booking_id=B1 | artist_id=A1\n", line)

    line, err = FormatAuditLine(KeyBookingCancelled, mustJSON(t, BookingCancelledEvent{
        BookingID: "B2", CustomerID: "C1", Refundable: true,
        Reason: "Customer cancelled within refund window.", CancelledAt: "2026-01-02T08:00:00Z",
    }))
    require.NoError(t, err)
    assert.Contains(t, line, "refundable=true")
    assert.Contains(t, line, `reason="Customer cancelled within refund window."`)

    line, err = FormatAuditLine(KeyBookingCreated, mustJSON(t, BookingCreatedEvent{
        BookingID: "B3", CustomerID: "C1", ServiceCategory: "makeup", AdvanceAmountPaise: 50000,
    }))
    require.NoError(t, err)
    assert.Contains(t, line, "advance=50000 paise")
}

func TestFormatAuditLineRejectsBadInput(t *testing.T) {
    _, err := FormatAuditLine("booking.exploded", []byte(`{}`))
    assert.Error(t, err)

    _, err = FormatAuditLine(KeyBookingClaimed, []byte(`not json`))
    assert.Error(t, err)
}

func TestAppendLineCreatesDirectory(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "booking.log")
    require.NoError(t, appendLine(path, "one\n"))
    require.NoError(t, appendLine(path, "two\n"))

    b, err := os.ReadFile(path)
    require.NoError(t, err)
    assert.Equal(t, "one\ntwo\n", string(b))
}
