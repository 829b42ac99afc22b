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

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(memory.New(), &ident.Sequence{}, log.Discard())

	tests := []struct {
		name         string
		username     string
		currency     string
		wantCurrency string
		wantKind     core.Kind
	}{
		{"default currency", "asha", "", core.CurrencyINR, ""},
		{"usd", "bruno", "USD", core.CurrencyUSD, ""},
		{"short username", "ab", "", "", core.KindInvalidInput},
		{"unknown currency", "carla", "EUR", "", core.KindInvalidInput},
		{"duplicate", "asha", "", "", core.KindUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.Create(ctx, tt.username, "Name", tt.currency)
			if tt.wantKind != "" {
				if core.KindOf(err) != tt.wantKind {
					t.Fatalf("expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if u.Currency != tt.wantCurrency {
				t.Fatalf("currency = %s, want %s", u.Currency, tt.wantCurrency)
			}
		})
	}
}

func TestUserService_Get(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(memory.New(), &ident.Sequence{}, log.Discard())

	u, err := svc.Create(ctx, "asha", "Asha", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, u.ID)
	if err != nil || got.Username != "asha" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := svc.Get(ctx, "usr_missing"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
