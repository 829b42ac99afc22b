// Package memory is an in-process storage.Store used for development,
// demos and tests. Every read and write copies, so callers never share
// memory with the store.
package memory

import (
	"context"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type monthKey struct {
	userID string
	year   int
	month  int
}

type Store struct {
	mu        sync.RWMutex
	months    map[string]*core.Month
	byKey     map[monthKey]string
	templates map[string]core.RecurringTemplate
	users     map[string]core.User
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		months:    make(map[string]*core.Month),
		byKey:     make(map[monthKey]string),
		templates: make(map[string]core.RecurringTemplate),
		users:     make(map[string]core.User),
	}
}

// view implements storage.Reader without locking; callers hold s.mu.
type view struct{ s *Store }

func (v view) GetMonth(_ context.Context, id string) (*core.Month, error) {
	m, ok := v.s.months[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m.Clone(), nil
}

func (v view) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	id, ok := v.s.byKey[monthKey{userID, year, month}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v.GetMonth(ctx, id)
}

func (v view) ListMonths(_ context.Context, userID string) ([]*core.Month, error) {
	out := make([]*core.Month, 0)
	for _, m := range v.s.months {
		if m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	core.SortMonths(out)
	return out, nil
}

func (v view) ListTemplates(_ context.Context, userID string) ([]core.RecurringTemplate, error) {
	out := make([]core.RecurringTemplate, 0)
	for _, t := range v.s.templates {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	core.SortTemplates(out)
	return out, nil
}

func (s *Store) GetMonth(ctx context.Context, id string) (*core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.GetMonth(ctx, id)
}

func (s *Store) FindMonth(ctx context.Context, userID string, year, month int) (*core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.FindMonth(ctx, userID, year, month)
}

func (s *Store) ListMonths(ctx context.Context, userID string) ([]*core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.ListMonths(ctx, userID)
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.ListTemplates(ctx, userID)
}

// Snapshot holds the read lock for the duration of fn.
func (s *Store) Snapshot(ctx context.Context, fn func(storage.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{s})
}

func (s *Store) CreateMonth(_ context.Context, m *core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey{m.UserID, m.Year, m.Month}
	if _, taken := s.byKey[key]; taken {
		return storage.ErrDuplicate
	}
	if _, taken := s.months[m.ID]; taken {
		return storage.ErrDuplicate
	}
	m.Revision = 1
	s.months[m.ID] = m.Clone()
	s.byKey[key] = m.ID
	return nil
}

func (s *Store) SaveMonth(_ context.Context, m *core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.months[m.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Revision != m.Revision {
		return storage.ErrConflict
	}
	m.Revision++
	s.months[m.ID] = m.Clone()
	return nil
}

func (s *Store) DeleteMonth(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.months[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.byKey, monthKey{m.UserID, m.Year, m.Month})
	delete(s.months, id)
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return core.RecurringTemplate{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.templates[t.ID]; taken {
		return storage.ErrDuplicate
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Store) UpdateTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return storage.ErrNotFound
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[u.ID]; taken {
		return storage.ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return storage.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
