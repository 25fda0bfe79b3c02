package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer binds a durable queue to every booking event and appends
// one line per event to a log file.
type AuditConsumer struct {
    URL      string
    Exchange string
    Queue    string
    LogPath  string
    Logger   *slog.Logger
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff (1s doubling up to 30s) whenever the broker goes away.
// Malformed messages are rejected without requeue so they cannot loop.
func (c *AuditConsumer) Run(ctx context.Context) error {
    wait := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Logger.Warn("booking-audit: dial failed", "err", err, "retry_in", wait)
            if !sleepCtx(ctx, wait) {
                return ctx.Err()
            }
            if wait < 30*time.Second {
                wait *= 2
            }
            continue
        }
        wait = time.Second // reset after successful connect

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Logger.Warn("booking-audit: consume loop ended, reconnecting", "err", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Logger.Warn("booking-audit: set QoS failed", "err", err)
    }
    if err := ch.ExchangeDeclare(c.Exchange, "topic", true, false, false, false, nil); err != nil {
        return fmt.Errorf("declare exchange: %w", err)
    }
    q, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, KeyAllBookings, c.Exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        line, err := FormatAuditLine(d.RoutingKey, d.Body)
        if err == nil {
            err = appendLine(c.LogPath, line)
        }
        if err != nil {
            c.Logger.Error("booking-audit: handle message failed", "key", d.RoutingKey, "err", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// FormatAuditLine renders one event as a single human-friendly line.
func FormatAuditLine(key string, body []byte) (string, error) {
    switch key {
    case KeyBookingCreated:
        var ev BookingCreatedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", key, err)
        }
        return fmt.Sprintf("[%s] Booking created | booking_id=%s | customer_id=%s | category=%s | event_date=%s | advance=%d paise\n",
            ev.CreatedAt, ev.BookingID, ev.CustomerID, ev.ServiceCategory, ev.EventDate, ev.AdvanceAmountPaise), nil
    case KeyBookingClaimed:
        var ev BookingClaimedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", key, err)
        }
        return fmt.Sprintf("[%s] Booking claimed | booking_id=%s | artist_id=%s\n",
            ev.ClaimedAt, ev.BookingID, ev.ArtistID), nil
    case KeyBookingCancelled:
        var ev BookingCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", key, err)
        }
        return fmt.Sprintf("[%s] Booking cancelled | booking_id=%s | customer_id=%s | refundable=%t | reason=%q\n",
            ev.CancelledAt, ev.BookingID, ev.CustomerID, ev.Refundable, ev.Reason), nil
    }
    return "", fmt.Errorf("unknown routing key %q", key)
}

func appendLine(path, line string) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
