/*
Package sqlite provides a SQLite-backed implementation of the plan stores.

PURPOSE:
  Implements plan.VersionStore and plan.WireFeeStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  plan_versions:  One row per version; config and totals as JSON documents
  schedule_items: One row per payment, portion columns stored as exact
                  decimal text (never floats)
  wire_fees:      Ancillary fees, weakly referencing schedule items

LIFECYCLE ENFORCEMENT:
  Version history is append-only at this layer: inserts, status flips and
  the primary flag swap are the only writes to plan_versions. Row sets are
  replaced wholesale only through ReplaceItems, which the version manager
  gates to editable versions.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/plans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - plan/store.go: Interface definitions
  - plan/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// Store implements the plan storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plan_versions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		config_json TEXT NOT NULL,
		totals_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		created_by TEXT,
		UNIQUE(case_id, version_number)
	);

	CREATE INDEX IF NOT EXISTS idx_versions_case
		ON plan_versions(case_id, version_number DESC);
	CREATE INDEX IF NOT EXISTS idx_versions_case_primary
		ON plan_versions(case_id) WHERE is_primary;

	CREATE TABLE IF NOT EXISTS schedule_items (
		id TEXT PRIMARY KEY,
		version_id TEXT NOT NULL REFERENCES plan_versions(id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		payment_date TEXT NOT NULL,
		payment_amount TEXT NOT NULL,
		setup_fee_portion TEXT NOT NULL,
		program_fee_portion TEXT NOT NULL,
		banking_fee_portion TEXT NOT NULL,
		secondary_banking_fee_portion TEXT NOT NULL,
		additional_products_portion TEXT NOT NULL,
		escrow_amount TEXT NOT NULL,
		running_balance TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_version
		ON schedule_items(version_id, sequence_number);

	CREATE TABLE IF NOT EXISTS wire_fees (
		id TEXT PRIMARY KEY,
		schedule_item_id TEXT NOT NULL,
		fee_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wire_fees_item
		ON wire_fees(schedule_item_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VERSION STORE
// =============================================================================

func (s *Store) SaveVersion(ctx context.Context, v plan.PlanVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(v.Config)
	if err != nil {
		return err
	}
	totalsJSON, err := json.Marshal(v.Totals)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_versions (id, case_id, version_number, status, is_primary, config_json, totals_json, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(v.ID), string(v.CaseID), v.VersionNumber, string(v.Status), v.IsPrimary,
		string(configJSON), string(totalsJSON), v.CreatedAt.UTC().Format(time.RFC3339), v.CreatedBy,
	)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, v.ID, v.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, versionID plan.VersionID, items []plan.ScheduleItem) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_items (
			id, version_id, sequence_number, payment_date, payment_amount,
			setup_fee_portion, program_fee_portion, banking_fee_portion,
			secondary_banking_fee_portion, additional_products_portion,
			escrow_amount, running_balance, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		_, err := stmt.ExecContext(ctx,
			string(it.ID), string(versionID), it.SequenceNumber,
			it.PaymentDate.String(), it.PaymentAmount.String(),
			it.SetupFeePortion.String(), it.ProgramFeePortion.String(),
			it.BankingFeePortion.String(), it.SecondaryBankingFeePortion.String(),
			it.AdditionalProductsPortion.String(), it.EscrowAmount.String(),
			it.RunningBalance.String(), string(it.Status),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetVersion(ctx context.Context, id plan.VersionID) (*plan.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, case_id, version_number, status, is_primary, config_json, totals_json, created_at, created_by
		FROM plan_versions WHERE id = ?`, string(id))

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, plan.ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Items = items
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(r rowScanner) (*plan.PlanVersion, error) {
	var v plan.PlanVersion
	var id, caseID, status, configJSON, totalsJSON, createdAt string
	var createdBy sql.NullString

	if err := r.Scan(&id, &caseID, &v.VersionNumber, &status, &v.IsPrimary, &configJSON, &totalsJSON, &createdAt, &createdBy); err != nil {
		return nil, err
	}
	v.ID = plan.VersionID(id)
	v.CaseID = plan.CaseID(caseID)
	v.Status = plan.VersionStatus(status)
	v.CreatedBy = createdBy.String
	if err := json.Unmarshal([]byte(configJSON), &v.Config); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(totalsJSON), &v.Totals); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		v.CreatedAt = t
	}
	return &v, nil
}

func (s *Store) loadItems(ctx context.Context, versionID plan.VersionID) ([]plan.ScheduleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence_number, payment_date, payment_amount,
			setup_fee_portion, program_fee_portion, banking_fee_portion,
			secondary_banking_fee_portion, additional_products_portion,
			escrow_amount, running_balance, status
		FROM schedule_items WHERE version_id = ? ORDER BY sequence_number`, string(versionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []plan.ScheduleItem
	for rows.Next() {
		var it plan.ScheduleItem
		var id, date, payment, setup, program, banking, secondary, additional, escrow, running, status string
		if err := rows.Scan(&id, &it.SequenceNumber, &date, &payment, &setup, &program,
			&banking, &secondary, &additional, &escrow, &running, &status); err != nil {
			return nil, err
		}
		it.ID = plan.ItemID(id)
		it.Status = plan.ItemStatus(status)
		if it.PaymentDate, err = plan.ParseDate(date); err != nil {
			return nil, err
		}
		for dst, src := range map[*decimal.Decimal]string{
			&it.PaymentAmount:              payment,
			&it.SetupFeePortion:            setup,
			&it.ProgramFeePortion:          program,
			&it.BankingFeePortion:          banking,
			&it.SecondaryBankingFeePortion: secondary,
			&it.AdditionalProductsPortion:  additional,
			&it.EscrowAmount:               escrow,
			&it.RunningBalance:             running,
		} {
			if *dst, err = decimal.NewFromString(src); err != nil {
				return nil, err
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ListVersions(ctx context.Context, caseID plan.CaseID) ([]plan.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, version_number, status, is_primary, config_json, totals_json, created_at, created_by
		FROM plan_versions WHERE case_id = ? ORDER BY version_number DESC`, string(caseID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []plan.PlanVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range versions {
		items, err := s.loadItems(ctx, versions[i].ID)
		if err != nil {
			return nil, err
		}
		versions[i].Items = items
	}
	return versions, nil
}

func (s *Store) UpdateVersionStatus(ctx context.Context, id plan.VersionID, status plan.VersionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE plan_versions SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ReplaceItems(ctx context.Context, id plan.VersionID, items []plan.ScheduleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM plan_versions WHERE id = ?`, string(id)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return plan.ErrVersionNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedule_items WHERE version_id = ?`, string(id)); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, id, items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateItemStatus(ctx context.Context, id plan.ItemID, status plan.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_items SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return plan.ErrItemNotFound
	}
	return nil
}

// SetPrimary demotes the previous primary and promotes the target in one
// transaction, preserving the at-most-one-primary invariant.
func (s *Store) SetPrimary(ctx context.Context, caseID plan.CaseID, id plan.VersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE plan_versions SET is_primary = FALSE WHERE case_id = ?`, string(caseID)); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE plan_versions SET is_primary = TRUE WHERE id = ? AND case_id = ?`,
		string(id), string(caseID))
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteVersion(ctx context.Context, id plan.VersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedule_items WHERE version_id = ?`, string(id)); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM plan_versions WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) NextVersionNumber(ctx context.Context, caseID plan.CaseID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM plan_versions WHERE case_id = ?`,
		string(caseID)).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return plan.ErrVersionNotFound
	}
	return nil
}

// =============================================================================
// WIRE FEE STORE
// =============================================================================

func (s *Store) AddWireFee(ctx context.Context, fee plan.WireFee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wire_fees (id, schedule_item_id, fee_type, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(fee.ID), string(fee.ScheduleItemID), fee.FeeType,
		fee.Amount.String(), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ReassignWireFees(ctx context.Context, from, to plan.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE wire_fees SET schedule_item_id = ? WHERE schedule_item_id = ?`,
		string(to), string(from),
	)
	return err
}

func (s *Store) ListWireFees(ctx context.Context, itemID plan.ItemID) ([]plan.WireFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_item_id, fee_type, amount
		FROM wire_fees WHERE schedule_item_id = ? ORDER BY created_at`, string(itemID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []plan.WireFee
	for rows.Next() {
		var f plan.WireFee
		var id, item, amount string
		if err := rows.Scan(&id, &item, &f.FeeType, &amount); err != nil {
			return nil, err
		}
		f.ID = plan.WireFeeID(id)
		f.ScheduleItemID = plan.ItemID(item)
		if f.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		fees = append(fees, f)
	}
	return fees, rows.Err()
}
