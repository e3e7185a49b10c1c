package postgres

import (
	"context"
	"fmt"
)

// migration is one forward-only schema step. Versions sort lexically.
type migration struct {
	Version string
	Name    string
	Up      string
}

var migrations = []migration{
	{
		Version: "000001",
		Name:    "create_accounts",
		Up: `
CREATE TABLE IF NOT EXISTS accounts (
    id               TEXT PRIMARY KEY,
    energy_available NUMERIC(20,3) NOT NULL DEFAULT 0 CHECK (energy_available >= 0),
    energy_locked    NUMERIC(20,3) NOT NULL DEFAULT 0 CHECK (energy_locked >= 0),
    money_available  NUMERIC(20,5) NOT NULL DEFAULT 0 CHECK (money_available >= 0),
    money_locked     NUMERIC(20,5) NOT NULL DEFAULT 0 CHECK (money_locked >= 0),
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    version          INT NOT NULL DEFAULT 1,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	},
	{
		Version: "000002",
		Name:    "create_offers",
		Up: `
CREATE TABLE IF NOT EXISTS offers (
    id          TEXT PRIMARY KEY,
    seller_id   TEXT NOT NULL REFERENCES accounts (id),
    amount      NUMERIC(20,3) NOT NULL CHECK (amount > 0),
    remaining   NUMERIC(20,3) NOT NULL CHECK (remaining >= 0),
    unit_price  NUMERIC(20,2) NOT NULL CHECK (unit_price > 0),
    status      TEXT NOT NULL DEFAULT 'ACTIVE',
    version     INT NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_offers_seller ON offers (seller_id);
CREATE INDEX IF NOT EXISTS idx_offers_open ON offers (status, expires_at)
    WHERE status IN ('ACTIVE', 'PARTIALLY_FILLED');`,
	},
	{
		Version: "000003",
		Name:    "create_trades",
		Up: `
CREATE TABLE IF NOT EXISTS trades (
    id              TEXT PRIMARY KEY,
    offer_id        TEXT NOT NULL REFERENCES offers (id),
    buyer_id        TEXT NOT NULL REFERENCES accounts (id),
    seller_id       TEXT NOT NULL REFERENCES accounts (id),
    amount          NUMERIC(20,3) NOT NULL,
    unit_price      NUMERIC(20,2) NOT NULL,
    total_price     NUMERIC(20,5) NOT NULL,
    carbon_saved_kg NUMERIC(20,6) NOT NULL DEFAULT 0,
    executed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_buyer ON trades (buyer_id, executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_seller ON trades (seller_id, executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_offer ON trades (offer_id);`,
	},
	{
		Version: "000004",
		Name:    "create_ledger_entries",
		Up: `
CREATE TABLE IF NOT EXISTS ledger_entries (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    account_id    TEXT NOT NULL REFERENCES accounts (id),
    resource      TEXT NOT NULL,
    bucket        TEXT NOT NULL,
    delta         NUMERIC(20,5) NOT NULL,
    balance_after NUMERIC(20,5) NOT NULL,
    operation     TEXT NOT NULL,
    reference     TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries (account_id, seq DESC);`,
	},
}

// Migrate applies pending migrations in order, one transaction each.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", m.Name, err)
		}

		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}

		s.log.Info().Str("version", m.Version).Str("name", m.Name).Msg("applied migration")
	}

	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
