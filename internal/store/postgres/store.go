// Package postgres implements store.Store on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type txKey struct{}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger}
}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// WithinTx runs fn inside one SQL transaction. Rows read with the returned ctx
// are locked FOR UPDATE until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// storeErr maps driver errors onto the ledger's error kinds.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return models.ErrAlreadyExists
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w: %w", op, models.ErrVersionConflict, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

func forUpdate(ctx context.Context, query string) string {
	if inTx(ctx) {
		return query + " FOR UPDATE"
	}
	return query
}

// Accounts

const accountColumns = `id, energy_available, energy_locked, money_available, money_locked, active, version, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID,
		&a.Energy.Available, &a.Energy.Locked,
		&a.Money.Available, &a.Money.Locked,
		&a.Active, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	a.Version = 1
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Energy.Available, a.Energy.Locked, a.Money.Available, a.Money.Locked,
		a.Active, a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		forUpdate(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`), accountID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, storeErr("get account", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	args := []any{}
	if limit > 0 {
		args = append(args, limit, offset)
		query += ` LIMIT $1 OFFSET $2`
	} else if offset > 0 {
		args = append(args, offset)
		query += ` OFFSET $1`
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	result := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("scan account", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateAccounts writes every account or none, checking each version.
func (s *Store) UpdateAccounts(ctx context.Context, accounts ...*models.Account) error {
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		for _, a := range accounts {
			result, err := s.conn(ctx).ExecContext(ctx, `
				UPDATE accounts
				SET energy_available = $1, energy_locked = $2, money_available = $3, money_locked = $4,
				    active = $5, version = version + 1, updated_at = $6
				WHERE id = $7 AND version = $8`,
				a.Energy.Available, a.Energy.Locked, a.Money.Available, a.Money.Locked,
				a.Active, a.UpdatedAt, a.ID, a.Version)
			if err != nil {
				return storeErr("update account", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return storeErr("update account", err)
			}
			if rowsAffected == 0 {
				return fmt.Errorf("account %s: %w", a.ID, models.ErrVersionConflict)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, a := range accounts {
		a.Version++
	}
	return nil
}

// Offers

const offerColumns = `id, seller_id, amount, remaining, unit_price, status, version, created_at, expires_at, updated_at`

func scanOffer(row rowScanner) (*models.Offer, error) {
	var o models.Offer
	err := row.Scan(&o.ID, &o.SellerID, &o.Amount, &o.Remaining, &o.UnitPrice,
		&o.Status, &o.Version, &o.CreatedAt, &o.ExpiresAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	o.Version = 1
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.SellerID, o.Amount, o.Remaining, o.UnitPrice,
		string(o.Status), o.Version, o.CreatedAt, o.ExpiresAt, o.UpdatedAt)
	if err != nil {
		return storeErr("create offer", err)
	}
	return nil
}

func (s *Store) GetOffer(ctx context.Context, offerID string) (*models.Offer, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		forUpdate(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`), offerID)
	o, err := scanOffer(row)
	if err != nil {
		return nil, storeErr("get offer", err)
	}
	return o, nil
}

func (s *Store) ListOffers(ctx context.Context, q store.OfferQuery) ([]*models.Offer, error) {
	var (
		where []string
		args  []any
	)
	if q.SellerID != "" {
		args = append(args, q.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + offerColumns + ` FROM offers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list offers", err)
	}
	defer rows.Close()

	result := make([]*models.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, storeErr("scan offer", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOffer(ctx context.Context, o *models.Offer) error {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE offers
		SET remaining = $1, status = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		o.Remaining, string(o.Status), o.UpdatedAt, o.ID, o.Version)
	if err != nil {
		return storeErr("update offer", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("update offer", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("offer %s: %w", o.ID, models.ErrVersionConflict)
	}

	o.Version++
	return nil
}

// Trades

const tradeColumns = `id, offer_id, buyer_id, seller_id, amount, unit_price, total_price, carbon_saved_kg, executed_at`

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(&t.ID, &t.OfferID, &t.BuyerID, &t.SellerID,
		&t.Amount, &t.UnitPrice, &t.TotalPrice, &t.CarbonSavedKg, &t.ExecutedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) AppendTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.OfferID, t.BuyerID, t.SellerID,
		t.Amount, t.UnitPrice, t.TotalPrice, t.CarbonSavedKg, t.ExecutedAt)
	if err != nil {
		return storeErr("append trade", err)
	}
	return nil
}

func (s *Store) GetTrade(ctx context.Context, tradeID string) (*models.Trade, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		return nil, storeErr("get trade", err)
	}
	return t, nil
}

func (s *Store) ListTrades(ctx context.Context, f models.TradeFilter) ([]*models.Trade, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		where = append(where, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", len(args), len(args)))
	}
	if f.OfferID != "" {
		args = append(args, f.OfferID)
		where = append(where, fmt.Sprintf("offer_id = $%d", len(args)))
	}

	query := `SELECT ` + tradeColumns + ` FROM trades`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY executed_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list trades", err)
	}
	defer rows.Close()

	result := make([]*models.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, storeErr("scan trade", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Ledger entries

// AppendEntries writes the batch with a single multi-row INSERT.
func (s *Store) AppendEntries(ctx context.Context, entries ...*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO ledger_entries
		(id, account_id, resource, bucket, delta, balance_after, operation, reference, created_at)
		VALUES `

	values := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*9)
	for i, e := range entries {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.ID, e.AccountID, string(e.Resource), string(e.Bucket),
			e.Delta, e.BalanceAfter, e.Operation, e.Reference, e.CreatedAt,
		)
	}
	query += strings.Join(values, ", ")

	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return storeErr("append entries", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	query := `SELECT id, account_id, resource, bucket, delta, balance_after, operation, reference, created_at
		FROM ledger_entries WHERE account_id = $1 ORDER BY seq DESC`
	args := []any{accountID}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $2`
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list entries", err)
	}
	defer rows.Close()

	result := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Resource, &e.Bucket,
			&e.Delta, &e.BalanceAfter, &e.Operation, &e.Reference, &e.CreatedAt); err != nil {
			return nil, storeErr("scan entry", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

// Lifecycle

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
