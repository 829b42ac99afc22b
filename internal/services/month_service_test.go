package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ident"
	"bilancio/internal/log"
	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

type notification struct {
	userID, monthID string
	user            bool
}

// recordingNotifier remembers every change signal.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
	err    error
}

func (r *recordingNotifier) MonthChanged(_ context.Context, userID, monthID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{userID: userID, monthID: monthID})
	return r.err
}

func (r *recordingNotifier) UserChanged(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{userID: userID, user: true})
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// conflictingStore fails the next n saves with a revision conflict.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (c *conflictingStore) SaveMonth(ctx context.Context, m *core.Month) error {
	c.mu.Lock()
	c.saves++
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return storage.ErrConflict
	}
	c.mu.Unlock()
	return c.Store.SaveMonth(ctx, m)
}

func newTestService(t *testing.T, store storage.Store, opts ...MonthServiceOption) (*MonthService, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	base := []MonthServiceOption{
		WithNotifier(rec),
		WithIDGenerator(&ident.Sequence{}),
		WithLogger(log.Discard()),
	}
	return NewMonthService(store, append(base, opts...)...), rec
}

func mustCreate(t *testing.T, svc *MonthService, userID string, year, index int) *core.Month {
	t.Helper()
	m, err := svc.CreateMonth(context.Background(), userID, year, index)
	if err != nil {
		t.Fatalf("create month: %v", err)
	}
	return m
}

func TestMonthService_Scenarios(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.New())
	m := mustCreate(t, svc, "usr_1", 2025, 0)

	m, err := svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(50000), Note: "pay"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.CarryForward.Equal(core.MoneyFromInt(50000)) {
		t.Fatalf("carry forward = %s", m.CarryForward)
	}

	m, _ = svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(5000), Note: "bonus"})
	bonusID := m.Income[0].Entries[1].ID

	m, _ = svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideExpense, Category: "Rent", Amount: core.MoneyFromInt(25000), Note: "rent", Tag: core.TagNeed})
	if !m.CarryForward.Equal(core.MoneyFromInt(30000)) {
		t.Fatalf("carry forward = %s", m.CarryForward)
	}
	rentEntry := m.Expenses[0].Entries[0].ID

	m, err = svc.UpdateEntry(ctx, UpdateEntryInput{MonthID: m.ID, Side: core.SideIncome, EntryID: bonusID, Amount: core.MoneyFromInt(10000), Note: "bonus"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.TotalIncome.Equal(core.MoneyFromInt(60000)) || !m.CarryForward.Equal(core.MoneyFromInt(35000)) {
		t.Fatalf("after update: income=%s carry=%s", m.TotalIncome, m.CarryForward)
	}

	m, err = svc.DeleteEntry(ctx, core.SideExpense, m.ID, rentEntry)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Expenses) != 0 || !m.TotalExpense.IsZero() {
		t.Fatalf("rent category should be gone, got %+v", m.Expenses)
	}

	stored, err := svc.GetMonth(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Revision != 6 || !stored.TotalIncome.Equal(core.MoneyFromInt(60000)) {
		t.Fatalf("stored month out of date: revision=%d income=%s", stored.Revision, stored.TotalIncome)
	}
	if err := stored.CheckInvariants(); err != nil {
		t.Fatal(err)
	}

	// 1 create (month + user) and 5 mutations.
	if rec.count() != 7 {
		t.Fatalf("expected 7 notifications, got %d", rec.count())
	}
}

func TestMonthService_CreateMonthChaining(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newTestService(t, store)
	recurring := NewRecurringService(store, &ident.Sequence{}, log.Discard())

	dec := mustCreate(t, svc, "usr_1", 2024, 11)
	svc.AddEntry(ctx, AddEntryInput{MonthID: dec.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(800)})
	svc.AddEntry(ctx, AddEntryInput{MonthID: dec.ID, Side: core.SideExpense, Category: "Rent", Amount: core.MoneyFromInt(300), Tag: core.TagNeed})

	if _, err := recurring.Create(ctx, "usr_1", "Netflix", core.MoneyFromInt(649), "", ""); err != nil {
		t.Fatal(err)
	}

	jan := mustCreate(t, svc, "usr_1", 2025, 0)
	if jan.Name != "January 2025" {
		t.Fatalf("unexpected name %s", jan.Name)
	}
	if len(jan.Income) != 1 || jan.Income[0].Name != core.CarryForwardCategory || !jan.Income[0].Amount.Equal(core.MoneyFromInt(500)) {
		t.Fatalf("expected carry forward of 500, got %+v", jan.Income)
	}
	if jan.Income[0].Entries[0].Note != "From December 2024" {
		t.Fatalf("unexpected note %q", jan.Income[0].Entries[0].Note)
	}
	if len(jan.Expenses) != 1 || jan.Expenses[0].Name != "Netflix" || !jan.TotalExpense.Equal(core.MoneyFromInt(649)) {
		t.Fatalf("expected Netflix seeded, got %+v", jan.Expenses)
	}
	if jan.Expenses[0].Entries[0].Tag != core.TagNeutral {
		t.Fatalf("seeded tag = %q", jan.Expenses[0].Entries[0].Tag)
	}

	// Deficit months seed nothing.
	svc.AddEntry(ctx, AddEntryInput{MonthID: jan.ID, Side: core.SideExpense, Category: "Travel", Amount: core.MoneyFromInt(5000)})
	feb := mustCreate(t, svc, "usr_1", 2025, 1)
	if len(feb.Income) != 0 {
		t.Fatalf("deficit must not be carried, got %+v", feb.Income)
	}
}

func TestMonthService_CreateMonthErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.New())
	mustCreate(t, svc, "usr_1", 2025, 3)

	if _, err := svc.CreateMonth(ctx, "usr_1", 2025, 3); !errors.Is(err, core.ErrMonthExists) {
		t.Fatalf("expected ErrMonthExists, got %v", err)
	}
	if _, err := svc.CreateMonth(ctx, "usr_2", 2025, 3); err != nil {
		t.Fatalf("another user may create the same month: %v", err)
	}
	if _, err := svc.CreateMonth(ctx, "usr_1", 2025, 12); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMonthService_ConcurrentCreateSameMonth(t *testing.T) {
	svc, _ := newTestService(t, memory.New())

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateMonth(context.Background(), "usr_1", 2025, 6)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, core.ErrMonthExists):
				exists++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || exists != callers-1 {
		t.Fatalf("created=%d exists=%d", created, exists)
	}
}

func TestMonthService_NotFoundErrors(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.New())

	if _, err := svc.GetMonth(ctx, "mon_missing"); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.AddEntry(ctx, AddEntryInput{MonthID: "mon_missing", Side: core.SideIncome, Category: "Salary"}); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.DeleteCategory(ctx, core.SideIncome, "mon_missing", "inc_1"); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("delete category: %v", err)
	}

	m := mustCreate(t, svc, "usr_1", 2025, 0)
	before := rec.count()
	if _, err := svc.UpdateEntry(ctx, UpdateEntryInput{MonthID: m.ID, Side: core.SideIncome, EntryID: "entry_nope", Amount: core.MoneyFromInt(1)}); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.DeleteEntry(ctx, core.SideExpense, m.ID, "entry_nope"); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("delete entry: %v", err)
	}

	stored, _ := svc.GetMonth(ctx, m.ID)
	if stored.Revision != 1 {
		t.Fatalf("failed operations must not write, revision=%d", stored.Revision)
	}
	if rec.count() != before {
		t.Fatal("failed operations must not notify")
	}
}

func TestMonthService_RejectsNegativeAmount(t *testing.T) {
	svc, _ := newTestService(t, memory.New())
	m := mustCreate(t, svc, "usr_1", 2025, 0)
	_, err := svc.AddEntry(context.Background(), AddEntryInput{MonthID: m.ID, Side: core.SideExpense, Category: "Rent", Amount: core.MoneyFromInt(-5)})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMonthService_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Store: memory.New()}
	svc, _ := newTestService(t, store, WithMaxRetries(3))
	m := mustCreate(t, svc, "usr_1", 2025, 0)

	store.conflicts = 2
	got, err := svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(100)})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if store.saves != 3 {
		t.Fatalf("expected 3 save attempts, got %d", store.saves)
	}
	if len(got.Income) != 1 || len(got.Income[0].Entries) != 1 {
		t.Fatalf("entry applied more than once: %+v", got.Income)
	}

	store.conflicts = 10
	_, err = svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(100)})
	if !errors.Is(err, core.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}
	stored, _ := svc.GetMonth(ctx, m.ID)
	if !stored.TotalIncome.Equal(core.MoneyFromInt(100)) {
		t.Fatalf("exhausted retries must not write, income=%s", stored.TotalIncome)
	}
}

func TestMonthService_ConcurrentWritesAllApply(t *testing.T) {
	ctx := context.Background()
	const writers = 20
	svc, _ := newTestService(t, memory.New(), WithMaxRetries(writers))
	m := mustCreate(t, svc, "usr_1", 2025, 0)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideExpense, Category: "Food", Amount: core.MoneyFromInt(10), Tag: core.TagNeed}); err != nil {
				t.Errorf("add entry: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := svc.GetMonth(ctx, m.ID)
	if len(stored.Expenses) != 1 || len(stored.Expenses[0].Entries) != writers {
		t.Fatalf("lost writes: %d entries", len(stored.Expenses[0].Entries))
	}
	if !stored.TotalExpense.Equal(core.MoneyFromInt(10 * writers)) {
		t.Fatalf("total expense = %s", stored.TotalExpense)
	}
	if err := stored.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestMonthService_DeleteMonth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	users := NewUserService(store, &ident.Sequence{}, log.Discard())
	demo, _ := users.Create(ctx, "admin", "Demo", "")
	owner, _ := users.Create(ctx, "asha", "Asha", "USD")

	svc, rec := newTestService(t, store, WithDeletionPolicy(NewDemoAccountPolicy(store, []string{"admin"})))
	demoMonth := mustCreate(t, svc, demo.ID, 2025, 0)
	realMonth := mustCreate(t, svc, owner.ID, 2025, 0)

	if err := svc.DeleteMonth(ctx, demoMonth.ID, demo.ID); !errors.Is(err, core.ErrDeletionBlocked) {
		t.Fatalf("expected ErrDeletionBlocked, got %v", err)
	}
	if err := svc.DeleteMonth(ctx, realMonth.ID, demo.ID); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("deleting someone else's month should be MonthNotFound, got %v", err)
	}
	if err := svc.DeleteMonth(ctx, realMonth.ID, ""); !errors.Is(err, core.ErrMissingUser) {
		t.Fatalf("delete without owner: %v", err)
	}
	if _, err := svc.GetMonth(ctx, realMonth.ID); err != nil {
		t.Fatalf("month gone after rejected delete: %v", err)
	}

	before := rec.count()
	if err := svc.DeleteMonth(ctx, realMonth.ID, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.count() != before+2 {
		t.Fatalf("delete should notify month and user, got %d new events", rec.count()-before)
	}
	if err := svc.DeleteMonth(ctx, realMonth.ID, owner.ID); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMonthService_NotifierFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.New())
	rec.err = errors.New("broker down")

	m := mustCreate(t, svc, "usr_1", 2025, 0)
	if _, err := svc.AddEntry(ctx, AddEntryInput{MonthID: m.ID, Side: core.SideIncome, Category: "Salary", Amount: core.MoneyFromInt(1)}); err != nil {
		t.Fatalf("notifier errors must not surface: %v", err)
	}
}

func TestMonthService_ListMonthsSorted(t *testing.T) {
	svc, _ := newTestService(t, memory.New())
	mustCreate(t, svc, "usr_1", 2024, 11)
	mustCreate(t, svc, "usr_1", 2025, 1)
	mustCreate(t, svc, "usr_1", 2025, 0)

	months, err := svc.ListMonths(context.Background(), "usr_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 3 || months[0].Name != "February 2025" || months[2].Name != "December 2024" {
		t.Fatalf("unexpected order: %v, %v, %v", months[0].Name, months[1].Name, months[2].Name)
	}
}
