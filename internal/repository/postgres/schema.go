package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS doctors (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	image          TEXT NOT NULL DEFAULT '',
	specialization TEXT NOT NULL,
	degree         TEXT NOT NULL,
	experience     TEXT NOT NULL,
	about          TEXT NOT NULL,
	available      BOOLEAN NOT NULL DEFAULT TRUE,
	fee            NUMERIC(12,2) NOT NULL,
	address        JSONB NOT NULL DEFAULT '{}'::jsonb,
	slots_booked   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS patients (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	image         TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	gender        TEXT NOT NULL DEFAULT '',
	dob           TEXT NOT NULL DEFAULT '',
	address       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS appointments (
	id           UUID PRIMARY KEY,
	patient_id   UUID NOT NULL REFERENCES patients (id),
	doctor_id    UUID NOT NULL REFERENCES doctors (id),
	slot_date    TEXT NOT NULL,
	slot_time    TEXT NOT NULL,
	patient_data JSONB NOT NULL,
	doctor_data  JSONB NOT NULL,
	amount       NUMERIC(12,2) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	cancelled    BOOLEAN NOT NULL DEFAULT FALSE,
	is_completed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_idx
	ON appointments (doctor_id, slot_date, slot_time) WHERE NOT cancelled;

CREATE INDEX IF NOT EXISTS appointments_created_at_idx ON appointments (created_at DESC);
CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
