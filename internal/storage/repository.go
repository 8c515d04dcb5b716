package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertCycleSQL = `INSERT INTO cycles (
        started_at,
        finished_at,
        processed,
        alerted,
        dispatched,
        failed,
        simulated,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id;`

	insertDispatchSQL = `INSERT INTO dispatches (
        cycle_id,
        subscriber,
        alerted,
        dispatched,
        percent_remaining,
        tx_hash,
        content_ref,
        error,
        error_kind
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	listRecentCyclesSQL = `SELECT
        id,
        started_at,
        finished_at,
        processed,
        alerted,
        dispatched,
        failed,
        simulated,
        status,
        error,
        created_at
    FROM cycles
    ORDER BY started_at DESC
    LIMIT $1;`

	listCyclesBetweenSQL = `SELECT
        id,
        started_at,
        finished_at,
        processed,
        alerted,
        dispatched,
        failed,
        simulated,
        status,
        error,
        created_at
    FROM cycles
    WHERE started_at >= $1
      AND started_at < $2
    ORDER BY started_at;`

	listDispatchesForCycleSQL = `SELECT
        id,
        cycle_id,
        subscriber,
        alerted,
        dispatched,
        percent_remaining,
        tx_hash,
        content_ref,
        error,
        error_kind,
        created_at
    FROM dispatches
    WHERE cycle_id = $1
    ORDER BY id;`

	countCyclesSQL = `SELECT COUNT(*) FROM cycles;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CycleStore defines persistence for cycle audit records.
type CycleStore interface {
	InsertCycle(ctx context.Context, cycle CycleRecord) (int64, error)
	InsertDispatches(ctx context.Context, cycleID int64, dispatches []DispatchRecord) error
	ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	ListCyclesBetween(ctx context.Context, from, to time.Time) ([]CycleRecord, error)
	ListDispatchesForCycle(ctx context.Context, cycleID int64) ([]DispatchRecord, error)
	CountCycles(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers used to serialize cycles
// across replicas.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to cycle and dispatch audit records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertCycle persists a cycle summary and returns its id.
func (s *Store) InsertCycle(ctx context.Context, cycle CycleRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var errMsg interface{}
	if cycle.Error != nil {
		errMsg = *cycle.Error
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertCycleSQL,
		cycle.StartedAt,
		cycle.FinishedAt,
		cycle.Processed,
		cycle.Alerted,
		cycle.Dispatched,
		cycle.Failed,
		cycle.Simulated,
		cycle.Status,
		errMsg,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert cycle: %w", scanErr)
	}
	return id, nil
}

// InsertDispatches persists the per-subscriber outcomes of one cycle.
func (s *Store) InsertDispatches(ctx context.Context, cycleID int64, dispatches []DispatchRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range dispatches {
		batch.Queue(insertDispatchSQL,
			cycleID,
			d.Subscriber,
			d.Alerted,
			d.Dispatched,
			d.PercentRemaining,
			nullableString(d.TxHash),
			nullableString(d.ContentRef),
			nullableString(d.Error),
			nullableString(d.ErrorKind),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range dispatches {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert dispatch: %w", execErr)
		}
	}
	return nil
}

// ListRecentCycles lists the most recent cycles ordered by descending start.
func (s *Store) ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentCyclesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	defer rows.Close()

	return collectCycles(rows, limit)
}

// ListCyclesBetween lists cycles within a time window.
func (s *Store) ListCyclesBetween(ctx context.Context, from, to time.Time) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCyclesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list cycles between: %w", queryErr)
	}
	defer rows.Close()

	return collectCycles(rows, 0)
}

// ListDispatchesForCycle lists the per-subscriber records of one cycle.
func (s *Store) ListDispatchesForCycle(ctx context.Context, cycleID int64) ([]DispatchRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDispatchesForCycleSQL, cycleID)
	if queryErr != nil {
		return nil, fmt.Errorf("list dispatches: %w", queryErr)
	}
	defer rows.Close()

	dispatches := make([]DispatchRecord, 0)
	for rows.Next() {
		var (
			rec        DispatchRecord
			txHash     sql.NullString
			contentRef sql.NullString
			errMsg     sql.NullString
			errKind    sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.CycleID,
			&rec.Subscriber,
			&rec.Alerted,
			&rec.Dispatched,
			&rec.PercentRemaining,
			&txHash,
			&contentRef,
			&errMsg,
			&errKind,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.TxHash = nullStringPtr(txHash)
		rec.ContentRef = nullStringPtr(contentRef)
		rec.Error = nullStringPtr(errMsg)
		rec.ErrorKind = nullStringPtr(errKind)
		dispatches = append(dispatches, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return dispatches, nil
}

// CountCycles counts stored cycles.
func (s *Store) CountCycles(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countCyclesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count cycles: %w", scanErr)
	}
	return count, nil
}

func collectCycles(rows pgx.Rows, capacity int) ([]CycleRecord, error) {
	cycles := make([]CycleRecord, 0, capacity)
	for rows.Next() {
		cycle, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		cycles = append(cycles, cycle)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return cycles, nil
}

func scanCycle(rows pgx.Rows) (CycleRecord, error) {
	var (
		cycle  CycleRecord
		errMsg sql.NullString
	)

	if err := rows.Scan(
		&cycle.ID,
		&cycle.StartedAt,
		&cycle.FinishedAt,
		&cycle.Processed,
		&cycle.Alerted,
		&cycle.Dispatched,
		&cycle.Failed,
		&cycle.Simulated,
		&cycle.Status,
		&errMsg,
		&cycle.CreatedAt,
	); err != nil {
		return CycleRecord{}, err
	}

	cycle.Error = nullStringPtr(errMsg)
	return cycle, nil
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	value := v.String
	return &value
}
