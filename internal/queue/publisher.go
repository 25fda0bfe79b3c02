package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPublisherClosed is returned by PublishJSON after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    IsClosed() bool
}

// session is one connection plus the channel published on.
type session struct {
    ch    channel
    close func() error
}

type dialFunc func() (*session, error)

// Publisher emits JSON events to a durable topic exchange. The connection
// is long-lived; once the broker drops it the next publish dials again.
type Publisher struct {
    mu       sync.Mutex
    dial     dialFunc
    sess     *session
    exchange string
    closed   bool
}

// NewPublisher dials url and declares the exchange (idempotent).
func NewPublisher(url, exchange string) (*Publisher, error) {
    return newPublisher(exchange, func() (*session, error) { return dialSession(url, exchange) })
}

func newPublisher(exchange string, dial dialFunc) (*Publisher, error) {
    sess, err := dial()
    if err != nil {
        return nil, err
    }
    return &Publisher{dial: dial, sess: sess, exchange: exchange}, nil
}

func dialSession(url, exchange string) (*session, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, fmt.Errorf("dial rabbitmq: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("open channel: %w", err)
    }
    if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("declare exchange: %w", err)
    }
    return &session{ch: ch, close: func() error {
        _ = ch.Close()
        return conn.Close()
    }}, nil
}

// PublishJSON marshals v and publishes it under key. Messages are
// persistent so they survive a broker restart. A publish that finds the
// channel closed reconnects and tries once more.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        return fmt.Errorf("marshal %s: %w", key, err)
    }
    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.closed {
        return ErrPublisherClosed
    }

    for attempt := 0; attempt < 2; attempt++ {
        if p.sess == nil || p.sess.ch.IsClosed() {
            if err = p.redial(); err != nil {
                return err
            }
        }
        err = p.sess.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
        if err == nil || !errors.Is(err, amqp.ErrClosed) {
            return err
        }
        p.drop()
    }
    return fmt.Errorf("publish %s: %w", key, err)
}

// redial replaces the current session. Callers hold p.mu.
func (p *Publisher) redial() error {
    p.drop()
    sess, err := p.dial()
    if err != nil {
        return fmt.Errorf("reconnect rabbitmq: %w", err)
    }
    p.sess = sess
    return nil
}

func (p *Publisher) drop() {
    if p.sess != nil {
        _ = p.sess.close()
        p.sess = nil
    }
}

func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    if p.sess == nil {
        return nil
    }
    err := p.sess.close()
    p.sess = nil
    return err
}

// NopPublisher drops every event. main falls back to it when RabbitMQ is
// not configured or unreachable.
type NopPublisher struct{}

func (NopPublisher) PublishJSON(context.Context, string, any) error { return nil }
