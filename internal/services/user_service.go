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

// MinUsernameLength is the shortest accepted username.
const MinUsernameLength = 3

// UserService owns user documents. Credentials are handled elsewhere.
type UserService struct {
	store  storage.UserStore
	ids    core.IDGenerator
	now    func() time.Time
	logger *log.Logger
}

func NewUserService(store storage.UserStore, ids core.IDGenerator, logger *log.Logger) *UserService {
	if ids == nil {
		ids = ident.New()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &UserService{
		store:  store,
		ids:    ids,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.WithComponent(log.ComponentUsers),
	}
}

// Create registers a user. Currency defaults to INR.
func (s *UserService) Create(ctx context.Context, username, name, currency string) (core.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < MinUsernameLength {
		return core.User{}, core.Errorf(core.KindInvalidInput, "username must be at least %d characters", MinUsernameLength)
	}
	switch currency {
	case "":
		currency = core.CurrencyINR
	case core.CurrencyINR, core.CurrencyUSD:
	default:
		return core.User{}, core.Errorf(core.KindInvalidInput, "currency must be %s or %s", core.CurrencyINR, core.CurrencyUSD)
	}

	u := core.User{
		ID:        s.ids.NewID(core.PrefixUser),
		Username:  username,
		Name:      strings.TrimSpace(name),
		Currency:  currency,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return core.User{}, core.Errorf(core.KindUserExists, "username %q is taken", username)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User created", log.FieldUserID, u.ID)
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (core.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, core.Errorf(core.KindUserNotFound, "user %s not found", id)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}
