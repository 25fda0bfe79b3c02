package queue

import (
    "context"
    "encoding/json"
    "errors"
    "testing"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type fakeChannel struct {
    closed   bool
    failNext error
    keys     []string
    bodies   [][]byte
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
    if f.closed {
        return amqp.ErrClosed
    }
    if err := f.failNext; err != nil {
        f.failNext = nil
        return err
    }
    f.keys = append(f.keys, key)
    f.bodies = append(f.bodies, msg.Body)
    return nil
}

func (f *fakeChannel) IsClosed() bool { return f.closed }

// fakeBroker hands out a fresh channel per dial.
type fakeBroker struct {
    dials    int
    closes   int
    channels []*fakeChannel
    down     bool
}

func (b *fakeBroker) dial() (*session, error) {
    b.dials++
    if b.down {
        return nil, errors.New("connection refused")
    }
    ch := &fakeChannel{}
    b.channels = append(b.channels, ch)
    return &session{ch: ch, close: func() error { b.closes++; return nil }}, nil
}

func (b *fakeBroker) last() *fakeChannel { return b.channels[len(b.channels)-1] }

func TestPublisherPublishesJSON(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    require.NoError(t, p.PublishJSON(context.Background(), KeyBookingClaimed, BookingClaimedEvent{BookingID: "B1", ArtistID: "A1"}))

    ch := b.last()
    require.Equal(t, []string{KeyBookingClaimed}, ch.keys)
    var got BookingClaimedEvent
    require.NoError(t, json.Unmarshal(ch.bodies[0], &got))
    assert.Equal(t, "B1", got.BookingID)
    assert.Equal(t, 1, b.dials)
}

func TestPublisherReconnectsAfterConnectionLoss(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    b.last().closed = true
    require.NoError(t, p.PublishJSON(context.Background(), KeyBookingCancelled, BookingCancelledEvent{BookingID: "B2"}))

    assert.Equal(t, 2, b.dials)
    assert.Equal(t, 1, b.closes)
    assert.Equal(t, []string{KeyBookingCancelled}, b.last().keys)
}

func TestPublisherRetriesOnceOnErrClosed(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    // Closed between the IsClosed check and the publish.
    b.last().failNext = amqp.ErrClosed
    require.NoError(t, p.PublishJSON(context.Background(), KeyBookingCreated, BookingCreatedEvent{BookingID: "B3"}))

    assert.Equal(t, 2, b.dials)
    assert.Empty(t, b.channels[0].keys)
    assert.Equal(t, []string{KeyBookingCreated}, b.channels[1].keys)
}

func TestPublisherRecoversOnceBrokerIsBack(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    b.last().closed = true
    b.down = true
    err = p.PublishJSON(context.Background(), KeyBookingClaimed, BookingClaimedEvent{BookingID: "B4"})
    require.Error(t, err)
    assert.Contains(t, err.Error(), "reconnect rabbitmq")

    b.down = false
    require.NoError(t, p.PublishJSON(context.Background(), KeyBookingClaimed, BookingClaimedEvent{BookingID: "B4"}))
    assert.Equal(t, []string{KeyBookingClaimed}, b.last().keys)
}

func TestPublisherOtherErrorsDoNotRedial(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    boom := errors.New("frame too large")
    b.last().failNext = boom
    assert.ErrorIs(t, p.PublishJSON(context.Background(), KeyBookingClaimed, BookingClaimedEvent{}), boom)
    assert.Equal(t, 1, b.dials)
}

func TestPublisherClose(t *testing.T) {
    b := &fakeBroker{}
    p, err := newPublisher("booking.events", b.dial)
    require.NoError(t, err)

    require.NoError(t, p.Close())
    assert.Equal(t, 1, b.closes)
    assert.ErrorIs(t, p.PublishJSON(context.Background(), KeyBookingClaimed, BookingClaimedEvent{}), ErrPublisherClosed)
    assert.Equal(t, 1, b.dials)
}

func TestNewPublisherDialFailure(t *testing.T) {
    b := &fakeBroker{down: true}
    _, err := newPublisher("booking.events", b.dial)
    assert.Error(t, err)
}
