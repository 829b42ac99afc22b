// Package postgres persists the ledger in PostgreSQL through a pgx pool.
// Month documents live in a JSONB column guarded by a revision counter.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open runs migrations, then connects a pool and verifies it.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type reader struct{ q dbtx }

const monthColumns = `doc, revision`

func scanMonth(row pgx.Row) (*core.Month, error) {
	var (
		doc      []byte
		revision int64
	)
	if err := row.Scan(&doc, &revision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan month: %w", err)
	}
	return storage.DecodeMonth(doc, revision)
}

func (r reader) GetMonth(ctx context.Context, id string) (*core.Month, error) {
	return scanMonth(r.q.QueryRow(ctx, `SELECT `+monthColumns+` FROM months WHERE id = $1`, id))
}

func (r reader) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	return scanMonth(r.q.QueryRow(ctx,
		`SELECT `+monthColumns+` FROM months WHERE user_id = $1 AND year = $2 AND month = $3`,
		userID, year, month))
}

func (r reader) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+monthColumns+` FROM months WHERE user_id = $1 ORDER BY year DESC, month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	months := make([]*core.Month, 0)
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

const templateColumns = `id, user_id, category, amount::text, note, tag, created_at`

func scanTemplate(row pgx.Row) (core.RecurringTemplate, error) {
	var (
		t      core.RecurringTemplate
		amount string
		tag    string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Category, &amount, &t.Note, &tag, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, storage.ErrNotFound
		}
		return t, fmt.Errorf("scan template: %w", err)
	}
	m, err := storage.ParseAmountColumn(amount)
	if err != nil {
		return t, err
	}
	t.Amount = m
	t.Tag = core.Tag(tag)
	return t, nil
}

func (r reader) ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+templateColumns+` FROM recurring_templates WHERE user_id = $1 ORDER BY created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]core.RecurringTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Store) GetMonth(ctx context.Context, id string) (*core.Month, error) {
	return reader{s.pool}.GetMonth(ctx, id)
}

func (s *Store) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	return reader{s.pool}.FindMonth(ctx, userID, year, month)
}

func (s *Store) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	return reader{s.pool}.ListMonths(ctx, userID)
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	return reader{s.pool}.ListTemplates(ctx, userID)
}

// Snapshot runs fn in a read-only repeatable read transaction.
func (s *Store) Snapshot(ctx context.Context, fn func(storage.Reader) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(reader{tx})
}

func (s *Store) CreateMonth(ctx context.Context, m *core.Month) error {
	m.Revision = 1
	doc, err := storage.EncodeMonth(m)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO months (id, user_id, year, month, revision, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 1, $5::jsonb, $6, $7)`,
		m.ID, m.UserID, m.Year, m.Month, string(doc), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		m.Revision = 0
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert month: %w", err)
	}
	return nil
}

func (s *Store) SaveMonth(ctx context.Context, m *core.Month) error {
	expected := m.Revision
	next := *m
	next.Revision = expected + 1
	doc, err := storage.EncodeMonth(&next)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE months SET doc = $1::jsonb, revision = revision + 1, updated_at = $2
		 WHERE id = $3 AND revision = $4`,
		string(doc), m.UpdatedAt, m.ID, expected)
	if err != nil {
		return fmt.Errorf("update month: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM months WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check month: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	m.Revision = expected + 1
	return nil
}

// execOne runs a single-row statement and maps zero affected rows to ErrNotFound.
func execOne(ctx context.Context, q dbtx, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMonth(ctx context.Context, id string) error {
	return execOne(ctx, s.pool, `DELETE FROM months WHERE id = $1`, id)
}

func (s *Store) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	return scanTemplate(s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1`, id))
}

func (s *Store) CreateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recurring_templates (id, user_id, category, amount, note, tag, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		t.ID, t.UserID, t.Category, t.Amount.String(), t.Note, string(t.Tag), t.CreatedAt)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	err := execOne(ctx, s.pool,
		`UPDATE recurring_templates SET category = $1, amount = $2::numeric, note = $3, tag = $4 WHERE id = $5`,
		t.Category, t.Amount.String(), t.Note, string(t.Tag), t.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("update template: %w", err)
	}
	return err
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	err := execOne(ctx, s.pool, `DELETE FROM recurring_templates WHERE id = $1`, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete template: %w", err)
	}
	return err
}

const userColumns = `id, username, name, currency, created_at`

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Currency, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, storage.ErrNotFound
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Name, u.Currency, u.CreatedAt)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}
