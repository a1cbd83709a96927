package storage

import (
	"context"

	"github.com/mobrickeu-cmd/gym-planner/libs/db"
)

// schemaDDL is idempotent; EnsureSchema runs it at startup so a fresh
// database is usable without a separate migration step.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	age        INTEGER NOT NULL DEFAULT 0,
	weight     DOUBLE PRECISION NOT NULL DEFAULT 0,
	premium    BOOLEAN NOT NULL DEFAULT FALSE,
	sessions   INTEGER NOT NULL DEFAULT 0 CHECK (sessions >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reservations (
	id            TEXT PRIMARY KEY,
	customer_id   TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	date          TEXT NOT NULL,
	time_slot     TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS reservations_date_slot_idx ON reservations (date, time_slot);
CREATE INDEX IF NOT EXISTS reservations_customer_idx ON reservations (customer_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	event_id       UUID NOT NULL DEFAULT gen_random_uuid(),
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	traceparent    TEXT NOT NULL DEFAULT '',
	tracestate     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox_events (id) WHERE published_at IS NULL;
`

func EnsureSchema(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
