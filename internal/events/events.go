package events

import (
	"context"
	"errors"

	"expense/transaction"
)

var _ transaction.Publisher = (Multi)(nil)

// Multi hands every event to each publisher in turn.
// All publishers are tried; their errors are joined.
type Multi []transaction.Publisher

func (m Multi) Publish(ctx context.Context, event transaction.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
