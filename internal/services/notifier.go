package services

import (
	"context"

	"bilancio/internal/log"
)

// ChangeNotifier is told about every successful mutation so derived,
// cached views of a user's data can be dropped.
type ChangeNotifier interface {
	// MonthChanged reports that one month of userID was created, mutated or deleted.
	MonthChanged(ctx context.Context, userID, monthID string) error
	// UserChanged reports that the set of months of userID changed.
	UserChanged(ctx context.Context, userID string) error
}

// Notifiers fans a change out to several notifiers. Failures are logged and
// never reach the caller: the write has already been committed.
type Notifiers struct {
	targets []ChangeNotifier
	logger  *log.Logger
}

func NewNotifiers(logger *log.Logger, targets ...ChangeNotifier) *Notifiers {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Notifiers{targets: targets, logger: logger.WithComponent(log.ComponentLedger)}
}

// Add registers another notifier.
func (n *Notifiers) Add(target ChangeNotifier) {
	n.targets = append(n.targets, target)
}

func (n *Notifiers) MonthChanged(ctx context.Context, userID, monthID string) error {
	for _, t := range n.targets {
		if err := t.MonthChanged(ctx, userID, monthID); err != nil {
			n.logger.ErrorContext(ctx, "Change notification failed",
				log.NewFields().WithMonth(userID, monthID).WithError(err).WithOperation(log.OpInvalidate).ToSlice()...)
		}
	}
	return nil
}

func (n *Notifiers) UserChanged(ctx context.Context, userID string) error {
	for _, t := range n.targets {
		if err := t.UserChanged(ctx, userID); err != nil {
			n.logger.ErrorContext(ctx, "Change notification failed",
				log.NewFields().WithMonth(userID, "").WithError(err).WithOperation(log.OpInvalidate).ToSlice()...)
		}
	}
	return nil
}
