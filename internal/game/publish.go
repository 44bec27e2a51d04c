package game

import (
	"context"
	"errors"

	"github.com/jason-s-yu/songdecks/internal/models"
)

// Publisher receives every card action after its transaction commits.
// Delivery is best effort: a failed publish is logged and the action stands.
type Publisher interface {
	PublishCardAction(ctx context.Context, a models.CardAction) error
}

// Publishers fans an action out to each publisher in turn.
type Publishers []Publisher

func (ps Publishers) PublishCardAction(ctx context.Context, a models.CardAction) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishCardAction(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
