package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// Names of the registry_meta counters.
const (
	metaRecordCount    = "record_count"
	metaNextTemplateID = "next_template_id"
)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Only rows with slot < record_count are part of the registry; a row written
// by an Append whose count update never landed is invisible.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Count returns the persisted record count.
func (r *CredentialRepo) Count(ctx context.Context) (uint16, error) {
	n, err := readMeta(ctx, r.db.Reader, metaRecordCount)
	if err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return uint16(n), nil
}

// Append writes the record fields at slot record_count, then advances
// record_count, inside a single transaction.
func (r *CredentialRepo) Append(ctx context.Context, modality model.Modality, key, name string) (uint16, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count, err := readMeta(ctx, tx, metaRecordCount)
	if err != nil {
		return 0, fmt.Errorf("append credential: %w", err)
	}
	if count >= math.MaxUint16 {
		return 0, fmt.Errorf("append credential: %w", driven.ErrRegistryFull)
	}

	// A stale row may sit at this slot if an earlier append never committed
	// its count; it is not part of the registry and is overwritten.
	const insert = `INSERT OR REPLACE INTO credentials (slot, modality, key, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	if _, err := tx.ExecContext(ctx, insert, count, string(modality), key, name); err != nil {
		return 0, fmt.Errorf("insert credential slot %d: %w", count, err)
	}

	if err := writeMeta(ctx, tx, metaRecordCount, count+1); err != nil {
		return 0, fmt.Errorf("append credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	return uint16(count), nil
}

// UpdateName renames the record at slot.
func (r *CredentialRepo) UpdateName(ctx context.Context, slot uint16, name string) error {
	const query = `UPDATE credentials SET name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE slot = ? AND slot < (SELECT value FROM registry_meta WHERE name = 'record_count')`

	result, err := r.db.Writer.ExecContext(ctx, query, name, slot)
	if err != nil {
		return fmt.Errorf("update name slot %d: %w", slot, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update name slot %d: %w", slot, driven.ErrSlotNotFound)
	}

	return nil
}

// FindByKey returns the name of the lowest-slot record with the given
// modality and key.
func (r *CredentialRepo) FindByKey(ctx context.Context, modality model.Modality, key string) (string, bool, error) {
	const query = `SELECT name FROM credentials
		WHERE modality = ? AND key = ?
		  AND slot < (SELECT value FROM registry_meta WHERE name = 'record_count')
		ORDER BY slot LIMIT 1`

	var name string
	err := r.db.Reader.QueryRowContext(ctx, query, string(modality), key).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find %s credential %q: %w", modality, key, err)
	}

	return name, true, nil
}

// List returns every registry record in slot order.
func (r *CredentialRepo) List(ctx context.Context) ([]model.CredentialRecord, error) {
	const query = `SELECT slot, modality, key, name FROM credentials
		WHERE slot < (SELECT value FROM registry_meta WHERE name = 'record_count')
		ORDER BY slot`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var records []model.CredentialRecord
	for rows.Next() {
		var rec model.CredentialRecord
		var modality string
		if err := rows.Scan(&rec.Slot, &modality, &rec.Key, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		rec.Modality = model.Modality(modality)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return records, nil
}

// ClearAll removes every record and resets both counters.
func (r *CredentialRepo) ClearAll(ctx context.Context) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	if err := writeMeta(ctx, tx, metaRecordCount, 0); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if err := writeMeta(ctx, tx, metaNextTemplateID, int64(model.InitialTemplateID)); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// NextTemplateID returns the persisted fingerprint slot counter.
func (r *CredentialRepo) NextTemplateID(ctx context.Context) (uint16, error) {
	n, err := readMeta(ctx, r.db.Reader, metaNextTemplateID)
	if err != nil {
		return 0, fmt.Errorf("read next template id: %w", err)
	}
	return uint16(n), nil
}

// SetNextTemplateID persists the fingerprint slot counter.
func (r *CredentialRepo) SetNextTemplateID(ctx context.Context, id uint16) error {
	if err := writeMeta(ctx, r.db.Writer, metaNextTemplateID, int64(id)); err != nil {
		return fmt.Errorf("set next template id: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readMeta(ctx context.Context, q queryer, name string) (int64, error) {
	var value int64
	err := q.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE name = ?`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}

func writeMeta(ctx context.Context, q queryer, name string, value int64) error {
	const query = `INSERT INTO registry_meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`
	if _, err := q.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
