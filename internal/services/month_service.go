package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ident"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// DefaultMaxRetries is how many extra attempts a mutation gets after losing
// a revision race.
const DefaultMaxRetries = 3

// MonthService creates months and applies ledger operations to them. Every
// mutation is a load, mutate, recompute, compare-and-swap save cycle on one
// month document; a lost race re-runs the whole cycle on a fresh copy.
type MonthService struct {
	store      storage.Store
	ids        core.IDGenerator
	notifier   ChangeNotifier
	policy     DeletionPolicy
	maxRetries int
	now        func() time.Time
	logger     *log.Logger
}

type MonthServiceOption func(*MonthService)

func WithNotifier(n ChangeNotifier) MonthServiceOption {
	return func(s *MonthService) { s.notifier = n }
}

func WithDeletionPolicy(p DeletionPolicy) MonthServiceOption {
	return func(s *MonthService) { s.policy = p }
}

func WithMaxRetries(n int) MonthServiceOption {
	return func(s *MonthService) { s.maxRetries = n }
}

func WithIDGenerator(ids core.IDGenerator) MonthServiceOption {
	return func(s *MonthService) { s.ids = ids }
}

func WithClock(now func() time.Time) MonthServiceOption {
	return func(s *MonthService) { s.now = now }
}

func WithLogger(l *log.Logger) MonthServiceOption {
	return func(s *MonthService) { s.logger = l }
}

func NewMonthService(store storage.Store, opts ...MonthServiceOption) *MonthService {
	s := &MonthService{
		store:      store,
		ids:        ident.New(),
		notifier:   NewNotifiers(nil),
		policy:     AllowAll{},
		maxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

type (
	AddEntryInput struct {
		MonthID  string
		Side     core.Side
		Category string
		Amount   core.Money
		Note     string
		Tag      core.Tag
	}

	UpdateEntryInput struct {
		MonthID string
		Side    core.Side
		EntryID string
		Amount  core.Money
		Note    string
		Tag     core.Tag
	}
)

func monthNotFound(id string) error {
	return core.Errorf(core.KindMonthNotFound, "month %s not found", id)
}

// GetMonth returns one month by id.
func (s *MonthService) GetMonth(ctx context.Context, monthID string) (*core.Month, error) {
	m, err := s.store.GetMonth(ctx, monthID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, monthNotFound(monthID)
	}
	if err != nil {
		return nil, fmt.Errorf("load month %s: %w", monthID, err)
	}
	return m, nil
}

// ListMonths returns the months of userID, newest calendar month first.
func (s *MonthService) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	months, err := s.store.ListMonths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list months of %s: %w", userID, err)
	}
	return months, nil
}

// CreateMonth creates the month (year, index) for userID, seeded with the
// predecessor's positive balance and the user's recurring templates.
func (s *MonthService) CreateMonth(ctx context.Context, userID string, year, index int) (*core.Month, error) {
	if !core.ValidMonthIndex(index) {
		return nil, core.ErrInvalidMonth
	}

	var m *core.Month
	err := s.store.Snapshot(ctx, func(r storage.Reader) error {
		_, err := r.FindMonth(ctx, userID, year, index)
		if err == nil {
			return core.Errorf(core.KindMonthExists, "%s already exists", core.MonthName(index, year))
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("check existing month: %w", err)
		}

		prevYear, prevIndex := core.Predecessor(year, index)
		prev, err := r.FindMonth(ctx, userID, prevYear, prevIndex)
		if errors.Is(err, storage.ErrNotFound) {
			prev = nil
		} else if err != nil {
			return fmt.Errorf("load previous month: %w", err)
		}

		templates, err := r.ListTemplates(ctx, userID)
		if err != nil {
			return fmt.Errorf("load recurring templates: %w", err)
		}

		m, err = core.NewMonth(userID, year, index, prev, templates, s.ids, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := m.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("create month: %w", err)
	}
	if err := s.store.CreateMonth(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, core.Errorf(core.KindMonthExists, "%s already exists", m.Name)
		}
		return nil, fmt.Errorf("create month: %w", err)
	}

	s.logger.InfoContext(ctx, "Month created",
		log.NewFields().WithMonth(userID, m.ID).WithOperation(log.OpCreate).ToSlice()...,
	)
	s.notify(ctx, userID, m.ID, true)
	return m, nil
}

// AddEntry appends an entry to the named category, creating it if needed.
func (s *MonthService) AddEntry(ctx context.Context, in AddEntryInput) (*core.Month, error) {
	if in.Amount.IsNegative() {
		return nil, core.ErrInvalidAmount
	}
	var entry core.Entry
	m, err := s.mutate(ctx, log.OpAddEntry, in.MonthID, func(m *core.Month) error {
		var err error
		entry, err = m.AddEntry(in.Side, in.Category, in.Amount, in.Note, in.Tag, s.ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Entry added",
		log.NewFields().WithMonth(m.UserID, m.ID).WithEntry(string(in.Side), in.Category, entry.ID).ToSlice()...,
	)
	return m, nil
}

// UpdateEntry replaces the amount, note and tag of an entry.
func (s *MonthService) UpdateEntry(ctx context.Context, in UpdateEntryInput) (*core.Month, error) {
	if in.Amount.IsNegative() {
		return nil, core.ErrInvalidAmount
	}
	m, err := s.mutate(ctx, log.OpUpdateEntry, in.MonthID, func(m *core.Month) error {
		return m.UpdateEntry(in.Side, in.EntryID, in.Amount, in.Note, in.Tag)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Entry updated",
		log.NewFields().WithMonth(m.UserID, m.ID).WithEntry(string(in.Side), "", in.EntryID).ToSlice()...,
	)
	return m, nil
}

// DeleteEntry removes an entry; a category left empty goes with it.
func (s *MonthService) DeleteEntry(ctx context.Context, side core.Side, monthID, entryID string) (*core.Month, error) {
	m, err := s.mutate(ctx, log.OpDeleteEntry, monthID, func(m *core.Month) error {
		return m.DeleteEntry(side, entryID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Entry deleted",
		log.NewFields().WithMonth(m.UserID, m.ID).WithEntry(string(side), "", entryID).ToSlice()...,
	)
	return m, nil
}

// DeleteCategory removes a category with all of its entries.
func (s *MonthService) DeleteCategory(ctx context.Context, side core.Side, monthID, categoryID string) (*core.Month, error) {
	m, err := s.mutate(ctx, log.OpDeleteCategory, monthID, func(m *core.Month) error {
		return m.DeleteCategory(side, categoryID)
	})
	if err != nil {
		return nil, err
	}
	fields := log.NewFields().WithMonth(m.UserID, m.ID).WithEntry(string(side), "", "")
	fields["category_id"] = categoryID
	s.logger.InfoContext(ctx, "Category deleted", fields.ToSlice()...)
	return m, nil
}

// DeleteMonth removes a month owned by userID, subject to the deletion policy.
func (s *MonthService) DeleteMonth(ctx context.Context, monthID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrMissingUser
	}
	m, err := s.store.GetMonth(ctx, monthID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && m.UserID != userID) {
		return monthNotFound(monthID)
	}
	if err != nil {
		return fmt.Errorf("load month %s: %w", monthID, err)
	}

	if err := s.policy.CanDelete(ctx, m.UserID, m); err != nil {
		return err
	}

	if err := s.store.DeleteMonth(ctx, monthID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return monthNotFound(monthID)
		}
		return fmt.Errorf("delete month %s: %w", monthID, err)
	}

	s.logger.InfoContext(ctx, "Month deleted",
		log.NewFields().WithMonth(m.UserID, m.ID).WithOperation(log.OpDelete).ToSlice()...,
	)
	s.notify(ctx, m.UserID, m.ID, true)
	return nil
}

// notify signals the change; failures are logged because the write is
// already committed.
func (s *MonthService) notify(ctx context.Context, userID, monthID string, userLevel bool) {
	if err := s.notifier.MonthChanged(ctx, userID, monthID); err != nil {
		s.logger.ErrorContext(ctx, "Month change notification failed",
			log.NewFields().WithMonth(userID, monthID).WithError(err).ToSlice()...)
	}
	if !userLevel {
		return
	}
	if err := s.notifier.UserChanged(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "User change notification failed",
			log.NewFields().WithMonth(userID, "").WithError(err).ToSlice()...)
	}
}

// mutate loads monthID, applies fn, re-derives totals and saves with a
// revision check. Nothing is written when fn fails.
func (s *MonthService) mutate(ctx context.Context, op, monthID string, fn func(*core.Month) error) (*core.Month, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := s.store.GetMonth(ctx, monthID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, monthNotFound(monthID)
		}
		if err != nil {
			return nil, fmt.Errorf("load month %s: %w", monthID, err)
		}

		if err := fn(m); err != nil {
			return nil, err
		}
		m.Recompute()
		if err := m.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.UpdatedAt = s.now()

		err = s.store.SaveMonth(ctx, m)
		switch {
		case err == nil:
			s.notify(ctx, m.UserID, m.ID, false)
			return m, nil
		case errors.Is(err, storage.ErrConflict):
			if attempt >= s.maxRetries {
				return nil, core.Errorf(core.KindWriteConflict, "month %s kept changing, gave up after %d attempts", monthID, attempt+1)
			}
			s.logger.WarnContext(ctx, "Revision conflict, retrying",
				log.FieldMonthID, monthID, log.FieldOperation, op, log.FieldAttempt, attempt+1, log.FieldRevision, m.Revision)
		case errors.Is(err, storage.ErrNotFound):
			return nil, monthNotFound(monthID)
		default:
			return nil, fmt.Errorf("save month %s: %w", monthID, err)
		}
	}
}
