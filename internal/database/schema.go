package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                  BIGSERIAL PRIMARY KEY,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL UNIQUE,
	phone               TEXT NOT NULL,
	role                TEXT NOT NULL DEFAULT 'user',
	total_contributions NUMERIC(15,2) NOT NULL DEFAULT 0,
	total_savings       NUMERIC(15,2) NOT NULL DEFAULT 0,
	total_loans         NUMERIC(15,2) NOT NULL DEFAULT 0,
	consecutive_misses  INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS loans (
	id                BIGSERIAL PRIMARY KEY,
	user_id           BIGINT NOT NULL REFERENCES users(id),
	amount            NUMERIC(15,2) NOT NULL CHECK (amount > 0),
	interest_rate     NUMERIC(5,2) NOT NULL DEFAULT 10,
	base_total_amount NUMERIC(15,2) NOT NULL,
	total_amount      NUMERIC(15,2) NOT NULL,
	amount_paid       NUMERIC(15,2) NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','approved','rejected','paid','overdue')),
	duration_months   INTEGER NOT NULL DEFAULT 1,
	usage             TEXT NOT NULL,
	rejection_reason  TEXT,
	approved_by       BIGINT REFERENCES users(id),
	approved_at       TIMESTAMPTZ,
	due_date          TIMESTAMPTZ,
	overdue_days      INTEGER NOT NULL DEFAULT 0,
	overdue_penalty   NUMERIC(15,2) NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS loans_one_open_per_user
	ON loans (user_id) WHERE status IN ('pending','approved','overdue');

CREATE TABLE IF NOT EXISTS missed_contributions (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            BIGINT NOT NULL REFERENCES users(id),
	missed_date        DATE NOT NULL,
	consecutive_misses INTEGER NOT NULL,
	penalty_amount     NUMERIC(15,2) NOT NULL,
	is_paid            BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at            TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, missed_date)
);

CREATE TABLE IF NOT EXISTS transactions (
	id                     BIGSERIAL PRIMARY KEY,
	kind                   TEXT NOT NULL
		CHECK (kind IN ('contribution','saving','loan_repayment','penalty_payment')),
	user_id                BIGINT NOT NULL REFERENCES users(id),
	amount                 NUMERIC(15,2) NOT NULL CHECK (amount > 0),
	status                 TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','completed','failed')),
	correlation_id         TEXT UNIQUE,
	receipt_ref            TEXT,
	reference              TEXT NOT NULL DEFAULT '',
	failure_reason         TEXT,
	next_allowed_at        TIMESTAMPTZ,
	description            TEXT,
	loan_id                BIGINT REFERENCES loans(id),
	missed_contribution_id BIGINT REFERENCES missed_contributions(id),
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	settled_at             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS transactions_pending
	ON transactions (created_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS transactions_user_kind
	ON transactions (user_id, kind, status);
CREATE UNIQUE INDEX IF NOT EXISTS transactions_one_pending_penalty
	ON transactions (missed_contribution_id) WHERE status = 'pending' AND kind = 'penalty_payment';
`

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
