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

// RecurringService manages the recurring expense templates copied into new
// months. Nothing here touches months that already exist.
type RecurringService struct {
	store  storage.Store
	ids    core.IDGenerator
	now    func() time.Time
	logger *log.Logger
}

func NewRecurringService(store storage.Store, ids core.IDGenerator, logger *log.Logger) *RecurringService {
	if ids == nil {
		ids = ident.New()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecurringService{
		store:  store,
		ids:    ids,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.WithComponent(log.ComponentRecurring),
	}
}

// TemplatePatch carries the fields of an update; nil fields are left alone.
type TemplatePatch struct {
	Category *string
	Amount   *core.Money
	Note     *string
	Tag      *core.Tag
}

func templateNotFound(id string) error {
	return core.Errorf(core.KindTemplateNotFound, "recurring template %s not found", id)
}

// List returns the templates of userID, newest first.
func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrMissingUser
	}
	ts, err := s.store.ListTemplates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates of %s: %w", userID, err)
	}
	return ts, nil
}

// Create stores a new template. An empty tag becomes neutral.
func (s *RecurringService) Create(ctx context.Context, userID, category string, amount core.Money, note string, tag core.Tag) (core.RecurringTemplate, error) {
	if strings.TrimSpace(userID) == "" {
		return core.RecurringTemplate{}, core.ErrMissingUser
	}
	if tag == "" {
		tag = core.TagNeutral
	}
	t := core.RecurringTemplate{
		ID:        s.ids.NewID(core.PrefixTemplate),
		UserID:    userID,
		Category:  strings.TrimSpace(category),
		Amount:    amount,
		Note:      note,
		Tag:       tag,
		CreatedAt: s.now(),
	}
	if err := t.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create template: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring template created",
		log.FieldUserID, userID, log.FieldTemplateID, t.ID, log.FieldCategory, t.Category, log.FieldAmount, t.Amount.String())
	return t, nil
}

// load fetches id owned by userID. Another user's template is reported as
// missing.
func (s *RecurringService) load(ctx context.Context, userID, id string) (core.RecurringTemplate, error) {
	if strings.TrimSpace(userID) == "" {
		return core.RecurringTemplate{}, core.ErrMissingUser
	}
	t, err := s.store.GetTemplate(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && t.UserID != userID) {
		return core.RecurringTemplate{}, templateNotFound(id)
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("load template %s: %w", id, err)
	}
	return t, nil
}

// Update applies patch to template id.
func (s *RecurringService) Update(ctx context.Context, userID, id string, patch TemplatePatch) (core.RecurringTemplate, error) {
	t, err := s.load(ctx, userID, id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}

	if patch.Category != nil {
		t.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Note != nil {
		t.Note = *patch.Note
	}
	if patch.Tag != nil {
		t.Tag = *patch.Tag
		if t.Tag == "" {
			t.Tag = core.TagNeutral
		}
	}
	if err := t.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.RecurringTemplate{}, templateNotFound(id)
		}
		return core.RecurringTemplate{}, fmt.Errorf("update template: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring template updated", log.FieldUserID, t.UserID, log.FieldTemplateID, id)
	return t, nil
}

// Delete removes template id.
func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return templateNotFound(id)
		}
		return fmt.Errorf("delete template: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring template deleted", log.FieldUserID, userID, log.FieldTemplateID, id)
	return nil
}
