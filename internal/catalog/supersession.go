package catalog

import (
	"context"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// checkReplacesChain walks the replaces links starting at c and fails when the
// walk returns to a template already seen. The walk stops after limit steps.
func checkReplacesChain(ctx context.Context, tx store.CatalogStore, c *models.CardTemplate, limit int) error {
	if c.ReplacesID == nil {
		return nil
	}
	if c.ID != 0 && *c.ReplacesID == c.ID {
		return apperr.Validation("card %q cannot replace itself", c.CardName)
	}

	visited := map[int64]bool{}
	if c.ID != 0 {
		visited[c.ID] = true
	}
	next := c.ReplacesID
	for steps := 0; next != nil; steps++ {
		if steps > limit {
			return apperr.Validation("replacement chain for %q is too long", c.CardName)
		}
		if visited[*next] {
			return apperr.Validation("card %q would create a replacement cycle", c.CardName)
		}
		visited[*next] = true

		target, err := tx.GetCardTemplate(ctx, *next)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.NotFound("replacement card not found")
			}
			return err
		}
		next = target.ReplacesID
	}
	return nil
}
