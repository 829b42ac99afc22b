// Package storage defines the persistence ports of the ledger and the
// document codec shared by the SQL backends.
package storage

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned by SaveMonth when the stored revision moved on.
	ErrConflict = errors.New("storage: revision conflict")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("storage: duplicate key")
)

// Ports for outbound adapters.
type (
	// Reader is the read side used inside snapshots.
	Reader interface {
		GetMonth(ctx context.Context, id string) (*core.Month, error)
		FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error)
		// ListMonths returns months sorted by year then month, both descending.
		ListMonths(ctx context.Context, userID string) ([]*core.Month, error)
		// ListTemplates returns templates newest first.
		ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error)
	}

	MonthStore interface {
		// CreateMonth inserts m at revision 1. ErrDuplicate when
		// (user, year, month) is taken.
		CreateMonth(ctx context.Context, m *core.Month) error
		// SaveMonth replaces the stored document if its revision still equals
		// m.Revision, then increments m.Revision. ErrConflict otherwise.
		SaveMonth(ctx context.Context, m *core.Month) error
		DeleteMonth(ctx context.Context, id string) error
	}

	TemplateStore interface {
		GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
		CreateTemplate(ctx context.Context, t core.RecurringTemplate) error
		UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error
		DeleteTemplate(ctx context.Context, id string) error
	}

	UserStore interface {
		// CreateUser returns ErrDuplicate when the username is taken.
		CreateUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		FindUserByUsername(ctx context.Context, username string) (core.User, error)
	}

	// Store is implemented by every backend.
	Store interface {
		Reader
		MonthStore
		TemplateStore
		UserStore

		// Snapshot runs fn against a consistent view of the data.
		Snapshot(ctx context.Context, fn func(Reader) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
