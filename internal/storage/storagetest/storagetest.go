// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ident"
	"bilancio/internal/storage"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"month create and load", testMonthCreateAndLoad},
		{"month duplicate", testMonthDuplicate},
		{"month save compare and swap", testMonthSaveCAS},
		{"month list ordering", testMonthListOrdering},
		{"month delete", testMonthDelete},
		{"concurrent saves", testConcurrentSaves},
		{"templates", testTemplates},
		{"users", testUsers},
		{"snapshot", testSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var ids = &ident.Sequence{}

func newMonth(t *testing.T, userID string, year, index int) *core.Month {
	t.Helper()
	m, err := core.NewMonth(userID, year, index, nil, nil, ids, time.Now().UTC().Truncate(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testMonthCreateAndLoad(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMonth(t, "usr_a", 2025, 3)
	m.AddEntry(core.SideIncome, "Salary", core.MoneyFromInt(1000), "pay", "", ids)

	if err := s.CreateMonth(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Revision != 1 {
		t.Fatalf("created month should be at revision 1, got %d", m.Revision)
	}

	got, err := s.GetMonth(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "April 2025" || !got.TotalIncome.Equal(core.MoneyFromInt(1000)) || got.Revision != 1 {
		t.Fatalf("unexpected month %+v", got)
	}

	byKey, err := s.FindMonth(ctx, "usr_a", 2025, 3)
	if err != nil || byKey.ID != m.ID {
		t.Fatalf("find: %v %v", byKey, err)
	}

	if _, err := s.GetMonth(ctx, "mon_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindMonth(ctx, "usr_a", 2025, 4); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Reads hand out copies.
	got.Income[0].Name = "changed"
	again, _ := s.GetMonth(ctx, m.ID)
	if again.Income[0].Name != "Salary" {
		t.Fatal("store returned shared memory")
	}
}

func testMonthDuplicate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.CreateMonth(ctx, newMonth(t, "usr_a", 2025, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateMonth(ctx, newMonth(t, "usr_a", 2025, 0)); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.CreateMonth(ctx, newMonth(t, "usr_b", 2025, 0)); err != nil {
		t.Fatalf("other users may own the same calendar month: %v", err)
	}
}

func testMonthSaveCAS(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMonth(t, "usr_a", 2025, 1)
	if err := s.CreateMonth(ctx, m); err != nil {
		t.Fatal(err)
	}

	first, _ := s.GetMonth(ctx, m.ID)
	second, _ := s.GetMonth(ctx, m.ID)

	first.AddEntry(core.SideExpense, "Rent", core.MoneyFromInt(500), "", core.TagNeed, ids)
	if err := s.SaveMonth(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Revision != 2 {
		t.Fatalf("revision should advance to 2, got %d", first.Revision)
	}

	second.AddEntry(core.SideExpense, "Food", core.MoneyFromInt(50), "", core.TagNeed, ids)
	if err := s.SaveMonth(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("stale save should conflict, got %v", err)
	}

	stored, _ := s.GetMonth(ctx, m.ID)
	if len(stored.Expenses) != 1 || stored.Expenses[0].Name != "Rent" || stored.Revision != 2 {
		t.Fatalf("stale write leaked into storage: %+v", stored.Expenses)
	}

	ghost := newMonth(t, "usr_a", 2030, 1)
	ghost.Revision = 1
	if err := s.SaveMonth(ctx, ghost); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("saving an unknown month should be ErrNotFound, got %v", err)
	}
}

func testMonthListOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, ym := range [][2]int{{2024, 11}, {2025, 2}, {2025, 0}, {2023, 5}} {
		if err := s.CreateMonth(ctx, newMonth(t, "usr_a", ym[0], ym[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateMonth(ctx, newMonth(t, "usr_b", 2026, 0)); err != nil {
		t.Fatal(err)
	}

	months, err := s.ListMonths(ctx, "usr_a")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"March 2025", "January 2025", "December 2024", "June 2023"}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(months))
	}
	for i, name := range want {
		if months[i].Name != name {
			t.Errorf("position %d: got %s, want %s", i, months[i].Name, name)
		}
	}

	none, err := s.ListMonths(ctx, "usr_nobody")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %d, %v", len(none), err)
	}
}

func testMonthDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMonth(t, "usr_a", 2025, 6)
	if err := s.CreateMonth(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteMonth(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMonth(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteMonth(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	// The calendar slot is free again.
	if err := s.CreateMonth(ctx, newMonth(t, "usr_a", 2025, 6)); err != nil {
		t.Fatalf("recreate: %v", err)
	}
}

// Exactly one of several writers holding the same revision may win.
func testConcurrentSaves(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMonth(t, "usr_a", 2025, 8)
	if err := s.CreateMonth(ctx, m); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		loaded, err := s.GetMonth(ctx, m.ID)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(local *core.Month) {
			defer wg.Done()
			local.AddEntry(core.SideIncome, "Salary", core.MoneyFromInt(1), "", "", ids)
			err := s.SaveMonth(ctx, local)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(loaded)
	}
	wg.Wait()

	if wins != 1 || conflicts != writers-1 {
		t.Fatalf("expected 1 win and %d conflicts, got %d and %d", writers-1, wins, conflicts)
	}
	stored, _ := s.GetMonth(ctx, m.ID)
	if stored.Revision != 2 || len(stored.Income[0].Entries) != 1 {
		t.Fatalf("unexpected stored state: revision %d", stored.Revision)
	}
}

func testTemplates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	amount, _ := core.ParseAmount("649.50")
	older := core.RecurringTemplate{ID: "rec_old", UserID: "usr_a", Category: "Netflix", Amount: amount, Note: "plan", Tag: core.TagWant, CreatedAt: base}
	newer := core.RecurringTemplate{ID: "rec_new", UserID: "usr_a", Category: "Gym", Amount: core.MoneyFromInt(1500), Tag: core.TagNeed, CreatedAt: base.Add(time.Hour)}
	other := core.RecurringTemplate{ID: "rec_other", UserID: "usr_b", Category: "Rent", Amount: core.MoneyFromInt(1), Tag: core.TagNeed, CreatedAt: base}

	for _, tpl := range []core.RecurringTemplate{older, newer, other} {
		if err := s.CreateTemplate(ctx, tpl); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListTemplates(ctx, "usr_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "rec_new" || list[1].ID != "rec_old" {
		t.Fatalf("unexpected template order %+v", list)
	}
	if !list[1].Amount.Equal(amount) || list[1].Note != "plan" || list[1].Tag != core.TagWant {
		t.Fatalf("template fields lost: %+v", list[1])
	}

	older.Amount = core.MoneyFromInt(799)
	older.Category = "Netflix Premium"
	if err := s.UpdateTemplate(ctx, older); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTemplate(ctx, "rec_old")
	if err != nil || got.Category != "Netflix Premium" || !got.Amount.Equal(core.MoneyFromInt(799)) {
		t.Fatalf("update not applied: %+v %v", got, err)
	}

	if err := s.DeleteTemplate(ctx, "rec_old"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTemplate(ctx, "rec_old"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTemplate(ctx, "rec_old"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := s.UpdateTemplate(ctx, older); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a deleted template, got %v", err)
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := core.User{ID: "usr_1", Username: "asha", Name: "Asha", Currency: core.CurrencyINR, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, core.User{ID: "usr_2", Username: "asha", Currency: core.CurrencyUSD, CreatedAt: time.Now()}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetUser(ctx, "usr_1")
	if err != nil || got.Username != "asha" || got.Currency != core.CurrencyINR {
		t.Fatalf("get user: %+v %v", got, err)
	}
	byName, err := s.FindUserByUsername(ctx, "asha")
	if err != nil || byName.ID != "usr_1" {
		t.Fatalf("find user: %+v %v", byName, err)
	}
	if _, err := s.GetUser(ctx, "usr_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindUserByUsername(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSnapshot(t *testing.T, s storage.Store) {
	ctx := context.Background()
	prev := newMonth(t, "usr_a", 2025, 0)
	prev.AddEntry(core.SideIncome, "Salary", core.MoneyFromInt(300), "", "", ids)
	if err := s.CreateMonth(ctx, prev); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTemplate(ctx, core.RecurringTemplate{ID: "rec_1", UserID: "usr_a", Category: "Netflix", Amount: core.MoneyFromInt(649), Tag: core.TagWant, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	var (
		found     *core.Month
		templates []core.RecurringTemplate
	)
	err := s.Snapshot(ctx, func(r storage.Reader) error {
		var err error
		if found, err = r.FindMonth(ctx, "usr_a", 2025, 0); err != nil {
			return err
		}
		templates, err = r.ListTemplates(ctx, "usr_a")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != prev.ID || len(templates) != 1 {
		t.Fatalf("snapshot reads incomplete: %v %d", found, len(templates))
	}

	sentinel := errors.New("stop")
	if err := s.Snapshot(ctx, func(storage.Reader) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("snapshot should return fn error, got %v", err)
	}
}
