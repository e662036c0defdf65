package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/metrics"
)

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	GroupID     int64     `bun:"group_id,pk"`
	BoulderID   int64     `bun:"boulder_id,pk"`
	ClimberID   int64     `bun:"climber_id,pk"`
	Top         bool      `bun:"top,notnull"`
	TopInTries  int       `bun:"top_in_tries,notnull"`
	Zone        bool      `bun:"zone,notnull"`
	ZoneInTries int       `bun:"zone_in_tries,notnull"`
	Tries       int       `bun:"tries,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func rowFrom(r model.Result) resultRow {
	return resultRow{
		GroupID:     r.GroupID,
		BoulderID:   r.BoulderID,
		ClimberID:   r.ClimberID,
		Top:         r.Top,
		TopInTries:  r.TopInTries,
		Zone:        r.Zone,
		ZoneInTries: r.ZoneInTries,
		Tries:       r.Tries,
	}
}

func (row resultRow) result() model.Result {
	return model.Result{
		ResultKey: model.ResultKey{
			GroupID:   row.GroupID,
			BoulderID: row.BoulderID,
			ClimberID: row.ClimberID,
		},
		Top:         row.Top,
		TopInTries:  row.TopInTries,
		Zone:        row.Zone,
		ZoneInTries: row.ZoneInTries,
		Tries:       row.Tries,
	}
}

// BunStore keeps results in PostgreSQL. Read-modify-writes lock the row for
// the duration of a transaction.
type BunStore struct {
	db *bun.DB
}

// NewBunStore connects to PostgreSQL and creates the results table when missing.
func NewBunStore(ctx context.Context, dsn string, debug bool) (*BunStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*resultRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating results table: %w", err)
	}
	return &BunStore{db: db}, nil
}

// mutate runs one read-modify-write inside tx.
func mutate(ctx context.Context, tx bun.Tx, key model.ResultKey, fn MutateFunc) (model.Result, error) {
	row := rowFrom(model.Result{ResultKey: key})
	res, err := tx.NewInsert().Model(&row).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return model.Result{}, fmt.Errorf("reserving result: %w", err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return model.Result{}, err
	}
	if err := tx.NewSelect().Model(&row).WherePK().For("UPDATE").Scan(ctx); err != nil {
		return model.Result{}, fmt.Errorf("locking result: %w", err)
	}

	cur := row.result()
	next, err := fn(cur, created == 0)
	if err != nil {
		return cur, err
	}
	next.ResultKey = key
	row = rowFrom(next)
	row.UpdatedAt = time.Now().UTC()
	if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
		return model.Result{}, fmt.Errorf("writing result: %w", err)
	}
	return next, nil
}

// Mutate implements Store.Mutate.
func (s *BunStore) Mutate(ctx context.Context, key model.ResultKey, fn MutateFunc) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var out model.Result
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = mutate(ctx, tx, key, fn)
		return err
	})
	return out, err
}

// MutateBatch implements Store.MutateBatch within a single transaction.
func (s *BunStore) MutateBatch(ctx context.Context, groupID int64, muts []Mutation) ([]model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	for _, m := range muts {
		if m.Key.GroupID != groupID {
			return nil, ErrInvalidBatch
		}
	}

	out := make([]model.Result, 0, len(muts))
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, m := range muts {
			r, err := mutate(ctx, tx, m.Key, m.Fn)
			if err != nil {
				return &BatchError{Index: i, Err: err}
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get implements Store.Get.
func (s *BunStore) Get(ctx context.Context, key model.ResultKey) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	row := rowFrom(model.Result{ResultKey: key})
	if err := s.db.NewSelect().Model(&row).WherePK().Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Result{}, ErrNotFound
		}
		return model.Result{}, err
	}
	return row.result(), nil
}

// ListByGroup implements Store.ListByGroup.
func (s *BunStore) ListByGroup(ctx context.Context, groupID int64) ([]model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("group_id = ?", groupID).
		Order("climber_id ASC", "boulder_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Result, len(rows))
	for i, row := range rows {
		out[i] = row.result()
	}
	return out, nil
}

// DeleteBoulder implements Store.DeleteBoulder.
func (s *BunStore) DeleteBoulder(ctx context.Context, groupID, boulderID int64) (int, error) {
	return s.deleteWhere(ctx, "group_id = ? AND boulder_id = ?", groupID, boulderID)
}

// DeleteClimber implements Store.DeleteClimber.
func (s *BunStore) DeleteClimber(ctx context.Context, groupID, climberID int64) (int, error) {
	return s.deleteWhere(ctx, "group_id = ? AND climber_id = ?", groupID, climberID)
}

func (s *BunStore) deleteWhere(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.NewDelete().Model((*resultRow)(nil)).Where(query, args...).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count implements Store.Count.
func (s *BunStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*resultRow)(nil)).Count(ctx)
	if err == nil {
		metrics.UpdateRepositoryResultsTotal(n)
	}
	return n, err
}

// Close closes the underlying database handle.
func (s *BunStore) Close() error {
	return s.db.Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BunStore)(nil)
)
