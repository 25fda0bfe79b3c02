package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id                   CHAR(36)     NOT NULL PRIMARY KEY,
		customer_id          VARCHAR(128) NOT NULL,
		status               VARCHAR(32)  NOT NULL,
		event_date           DATETIME(6)  NOT NULL,
		cancellation_reason  VARCHAR(255) NULL,
		service_category     VARCHAR(32)  NOT NULL,
		package_name         VARCHAR(255) NOT NULL,
		location             VARCHAR(512) NOT NULL,
		advance_amount_paise BIGINT       NOT NULL DEFAULT 0,
		created_at           DATETIME(6)  NOT NULL,
		updated_at           DATETIME(6)  NOT NULL,
		KEY idx_bookings_customer (customer_id, created_at),
		KEY idx_bookings_open (status, event_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_artists (
		booking_id CHAR(36)     NOT NULL,
		artist_id  VARCHAR(128) NOT NULL,
		PRIMARY KEY (booking_id, artist_id),
		KEY idx_booking_artists_artist (artist_id),
		CONSTRAINT fk_booking_artists_booking FOREIGN KEY (booking_id)
			REFERENCES bookings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the booking tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
