package config // package config loads application configuration from environment variables

import (
    "errors"
    "log"
    "time"

    "github.com/kelseyhightower/envconfig"

    "github.com/utsavlook/booking-functions/internal/database"
    "github.com/utsavlook/booking-functions/internal/repository"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag.
type Config struct {
    Env      string `envconfig:"APP_ENV" default:"dev"`     // application environment (dev/test/prod)
    Port     string `envconfig:"APP_PORT" default:"8080"`   // HTTP port to listen on
    LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug, info, warn or error

    // An empty DB_HOST runs the service on the in-memory store.
    DBUser string `envconfig:"DB_USER" default:"root"`
    DBPass string `envconfig:"DB_PASS"`
    DBHost string `envconfig:"DB_HOST"`
    DBPort string `envconfig:"DB_PORT" default:"3306"`
    DBName string `envconfig:"DB_NAME" default:"utsavlook"`

    JWTSecret string `envconfig:"JWT_SECRET" required:"true"` // HS256 key shared with the auth provider

    // Claim transaction retry policy.
    TxMaxAttempts    int           `envconfig:"TX_MAX_ATTEMPTS" default:"5"`
    TxInitialBackoff time.Duration `envconfig:"TX_INITIAL_BACKOFF" default:"20ms"`
    TxMaxBackoff     time.Duration `envconfig:"TX_MAX_BACKOFF" default:"500ms"`

    RabbitMQURL     string `envconfig:"RABBITMQ_URL"`
    BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.events"`
    AuditQueue      string `envconfig:"BOOKING_AUDIT_QUEUE" default:"booking.audit"`
    AuditEnabled    bool   `envconfig:"BOOKING_AUDIT_ENABLED" default:"false"`
    AuditLogPath    string `envconfig:"BOOKING_AUDIT_LOG" default:"logs/booking.log"`

    OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
    ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"utsavlook-booking"`

    ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Parse reads the environment into a Config.
func Parse() (Config, error) {
    var c Config
    if err := envconfig.Process("", &c); err != nil {
        return Config{}, err
    }
    // envconfig accepts a required variable that is set but empty.
    if c.JWTSecret == "" {
        return Config{}, errors.New("missing required env var: JWT_SECRET")
    }
    return c, nil
}

// Load is Parse for main: a missing required variable is fatal.
func Load() Config {
    c, err := Parse()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    return c
}

// UseMemoryStore reports whether no database has been configured.
func (c Config) UseMemoryStore() bool { return c.DBHost == "" }

// Database returns the MySQL connection options.
func (c Config) Database() database.Options {
    return database.Options{
        User:     c.DBUser,
        Password: c.DBPass,
        Host:     c.DBHost,
        Port:     c.DBPort,
        Name:     c.DBName,
    }
}

// RetryPolicy returns the policy the claim transaction runner uses.
func (c Config) RetryPolicy() repository.RetryPolicy {
    return repository.RetryPolicy{
        MaxAttempts:    c.TxMaxAttempts,
        InitialBackoff: c.TxInitialBackoff,
        MaxBackoff:     c.TxMaxBackoff,
    }
}
