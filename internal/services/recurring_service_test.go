package services

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ident"
	"bilancio/internal/log"
	"bilancio/internal/storage/memory"
)

func TestRecurringService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewRecurringService(memory.New(), &ident.Sequence{}, log.Discard())

	created, err := svc.Create(ctx, "usr_1", "  Gym ", core.MoneyFromInt(1200), "monthly", "")
	if err != nil {
		t.Fatal(err)
	}
	if created.Category != "Gym" || created.Tag != core.TagNeutral {
		t.Fatalf("unexpected template %+v", created)
	}

	amount := core.MoneyFromInt(1500)
	tag := core.TagWant
	updated, err := svc.Update(ctx, "usr_1", created.ID, TemplatePatch{Amount: &amount, Tag: &tag})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Amount.Equal(amount) || updated.Tag != core.TagWant || updated.Note != "monthly" {
		t.Fatalf("patch applied wrongly: %+v", updated)
	}

	list, err := svc.List(ctx, "usr_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Amount.Equal(amount) {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := svc.Delete(ctx, "usr_1", created.ID); err != nil {
		t.Fatal(err)
	}
	if list, _ := svc.List(ctx, "usr_1"); len(list) != 0 {
		t.Fatalf("template not deleted: %+v", list)
	}
}

func TestRecurringService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := NewRecurringService(memory.New(), &ident.Sequence{}, log.Discard())

	tests := []struct {
		name     string
		category string
		amount   core.Money
		tag      core.Tag
	}{
		{"empty category", "  ", core.MoneyFromInt(10), ""},
		{"negative amount", "Rent", core.MoneyFromInt(-1), ""},
		{"unknown tag", "Rent", core.MoneyFromInt(10), core.Tag("luxury")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "usr_1", tt.category, tt.amount, "", tt.tag)
			if core.KindOf(err) != core.KindInvalidInput {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	tmpl, err := svc.Create(ctx, "usr_1", "Rent", core.MoneyFromInt(100), "", core.TagNeed)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "usr_1", "rec_missing"); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "usr_2", tmpl.ID); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("another user's template must look missing, got %v", err)
	}
	name := "Mortgage"
	if _, err := svc.Update(ctx, "usr_2", tmpl.ID, TemplatePatch{Category: &name}); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, "", tmpl.ID, TemplatePatch{Category: &name}); !errors.Is(err, core.ErrMissingUser) {
		t.Fatalf("update without owner: %v", err)
	}
	if err := svc.Delete(ctx, " ", tmpl.ID); !errors.Is(err, core.ErrMissingUser) {
		t.Fatalf("delete without owner: %v", err)
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, core.ErrMissingUser) {
		t.Fatalf("list without owner: %v", err)
	}
	if _, err := svc.Create(ctx, "", "Rent", core.MoneyFromInt(1), "", ""); !errors.Is(err, core.ErrMissingUser) {
		t.Fatalf("create without owner: %v", err)
	}

	got, err := svc.List(ctx, "usr_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Category != "Rent" {
		t.Fatalf("template changed by rejected calls: %+v", got)
	}
}

func TestRecurringService_DoesNotTouchExistingMonths(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	months, _ := newTestService(t, store)
	recurring := NewRecurringService(store, &ident.Sequence{}, log.Discard())

	jan := mustCreate(t, months, "usr_1", 2025, 0)
	if _, err := recurring.Create(ctx, "usr_1", "Internet", core.MoneyFromInt(999), "", ""); err != nil {
		t.Fatal(err)
	}

	got, _ := months.GetMonth(ctx, jan.ID)
	if len(got.Expenses) != 0 {
		t.Fatalf("existing month changed: %+v", got.Expenses)
	}
	feb := mustCreate(t, months, "usr_1", 2025, 1)
	if len(feb.Expenses) != 1 || feb.Expenses[0].Name != "Internet" {
		t.Fatalf("new month not seeded: %+v", feb.Expenses)
	}
}
