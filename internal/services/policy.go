package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// DeletionPolicy decides whether userID may delete month.
// A refusal is reported as core.ErrDeletionBlocked.
type DeletionPolicy interface {
	CanDelete(ctx context.Context, userID string, month *core.Month) error
}

// AllowAll never blocks a deletion.
type AllowAll struct{}

func (AllowAll) CanDelete(context.Context, string, *core.Month) error { return nil }

// DemoAccountPolicy protects shared demo accounts, identified by username,
// from having their months deleted.
type DemoAccountPolicy struct {
	users     storage.UserStore
	usernames []string
}

func NewDemoAccountPolicy(users storage.UserStore, usernames []string) *DemoAccountPolicy {
	return &DemoAccountPolicy{users: users, usernames: usernames}
}

func (p *DemoAccountPolicy) CanDelete(ctx context.Context, userID string, _ *core.Month) error {
	if len(p.usernames) == 0 {
		return nil
	}
	u, err := p.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if slices.Contains(p.usernames, u.Username) {
		return core.Errorf(core.KindDeletionBlocked, "months of demo account %q cannot be deleted", u.Username)
	}
	return nil
}
