package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseSideAndTag(t *testing.T) {
	if s, err := ParseSide("income"); err != nil || s != SideIncome {
		t.Fatalf("income: %v %v", s, err)
	}
	if _, err := ParseSide("Income"); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}

	cases := []struct {
		in   string
		want Tag
		ok   bool
	}{
		{"", TagNeutral, true},
		{"need", TagNeed, true},
		{"want", TagWant, true},
		{"neutral", TagNeutral, true},
		{"luxury", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTag(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %v, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestMonthNameAndPredecessor(t *testing.T) {
	if got := MonthName(0, 2025); got != "January 2025" {
		t.Errorf("got %q", got)
	}
	if got := MonthName(11, 2024); got != "December 2024" {
		t.Errorf("got %q", got)
	}
	if y, m := Predecessor(2025, 0); y != 2024 || m != 11 {
		t.Errorf("Predecessor(2025, 0) = %d, %d", y, m)
	}
	if y, m := Predecessor(2025, 5); y != 2025 || m != 4 {
		t.Errorf("Predecessor(2025, 5) = %d, %d", y, m)
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	good := RecurringTemplate{Category: "Netflix", Amount: MoneyFromInt(649), Tag: TagWant}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []RecurringTemplate{
		{Category: " ", Amount: MoneyFromInt(1)},
		{Category: "Rent", Amount: MoneyFromInt(-1)},
		{Category: "Rent", Amount: MoneyFromInt(1), Tag: "sometimes"},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMonthCloneIsDeep(t *testing.T) {
	m := &Month{
		ID:        "mon_1",
		Income:    []Category{{ID: "inc_1", Name: "Salary", Entries: []Entry{{ID: "entry_1", Amount: MoneyFromInt(10)}}}},
		Expenses:  []Category{},
		CreatedAt: time.Now(),
	}
	m.Recompute()

	c := m.Clone()
	c.Income[0].Entries[0].Amount = MoneyFromInt(99)
	c.Income[0].Name = "Other"

	if !m.Income[0].Entries[0].Amount.Equal(MoneyFromInt(10)) || m.Income[0].Name != "Salary" {
		t.Fatal("clone shares memory with original")
	}
}

func TestErrorKindMatching(t *testing.T) {
	err := Errorf(KindEntryNotFound, "entry %s", "entry_9")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatal("expected kind match")
	}
	if errors.Is(err, ErrMonthNotFound) {
		t.Fatal("unexpected match across kinds")
	}
	if KindOf(err) != KindEntryNotFound {
		t.Fatalf("KindOf = %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("untyped errors have no kind")
	}
}
