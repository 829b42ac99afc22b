// Package sqlite persists the ledger in a single SQLite file using the pure
// Go modernc driver. Month aggregates are stored as JSON documents next to
// the columns needed for lookups and compare-and-swap.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"

	_ "modernc.org/sqlite"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// DSN builds the connection string for dbPath with WAL and a busy timeout.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open creates the database directory, applies migrations and returns a store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// reader runs the read queries against a pool or a transaction.
type reader struct{ q queryer }

const monthColumns = `doc, revision`

func scanMonth(row interface{ Scan(...any) error }) (*core.Month, error) {
	var (
		doc      string
		revision int64
	)
	if err := row.Scan(&doc, &revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan month: %w", err)
	}
	return storage.DecodeMonth([]byte(doc), revision)
}

func (r reader) GetMonth(ctx context.Context, id string) (*core.Month, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+monthColumns+` FROM months WHERE id = ?`, id)
	return scanMonth(row)
}

func (r reader) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month)
	return scanMonth(row)
}

func (r reader) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+monthColumns+` FROM months WHERE user_id = ? ORDER BY year DESC, month DESC`, userID)
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

const templateColumns = `id, user_id, category, amount, note, tag, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (core.RecurringTemplate, error) {
	var (
		t       core.RecurringTemplate
		amount  string
		tag     string
		created int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Category, &amount, &t.Note, &tag, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	t.CreatedAt = time.Unix(0, created).UTC()
	return t, nil
}

func (r reader) ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM recurring_templates WHERE user_id = ? ORDER BY created_at DESC, id ASC`, userID)
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
	return reader{s.db}.GetMonth(ctx, id)
}

func (s *Store) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	return reader{s.db}.FindMonth(ctx, userID, year, month)
}

func (s *Store) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	return reader{s.db}.ListMonths(ctx, userID)
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	return reader{s.db}.ListTemplates(ctx, userID)
}

// Snapshot runs fn inside one transaction that is always rolled back.
func (s *Store) Snapshot(ctx context.Context, fn func(storage.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()
	return fn(reader{tx})
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreateMonth(ctx context.Context, m *core.Month) error {
	m.Revision = 1
	doc, err := storage.EncodeMonth(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO months (id, user_id, year, month, revision, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		m.ID, m.UserID, m.Year, m.Month, string(doc), m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano())
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

	res, err := s.db.ExecContext(ctx,
		`UPDATE months SET doc = ?, revision = revision + 1, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		string(doc), m.UpdatedAt.UnixNano(), m.ID, expected)
	if err != nil {
		return fmt.Errorf("update month: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update month: %w", err)
	}
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM months WHERE id = ?`, m.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check month: %w", err)
		}
		return storage.ErrConflict
	}
	m.Revision = expected + 1
	return nil
}

func (s *Store) DeleteMonth(ctx context.Context, id string) error {
	return execOne(ctx, s.db, `DELETE FROM months WHERE id = ?`, id)
}

// execOne runs a single-row statement and maps zero affected rows to ErrNotFound.
func execOne(ctx context.Context, q queryer, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	return scanTemplate(row)
}

func (s *Store) CreateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Category, t.Amount.String(), t.Note, string(t.Tag), t.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	err := execOne(ctx, s.db,
		`UPDATE recurring_templates SET category = ?, amount = ?, note = ?, tag = ? WHERE id = ?`,
		t.Category, t.Amount.String(), t.Note, string(t.Tag), t.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("update template: %w", err)
	}
	return err
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	err := execOne(ctx, s.db, `DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete template: %w", err)
	}
	return err
}

const userColumns = `id, username, name, currency, created_at`

func scanUser(row *sql.Row) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Currency, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, storage.ErrNotFound
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.Currency, u.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}
