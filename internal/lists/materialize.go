package lists

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// Materialize loads the units, attachments and NCUs of l and totals its points.
func Materialize(ctx context.Context, tx store.Tx, l *models.List) (*models.List, error) {
	out := *l
	out.Units = []models.ListUnitDetail{}
	out.NCUs = []models.NCU{}
	out.TotalPoints = 0

	units, err := tx.ListListUnits(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("load list units: %w", err)
	}
	for _, lu := range units {
		unit, err := tx.GetUnit(ctx, lu.UnitID)
		if err != nil {
			return nil, fmt.Errorf("load unit %d: %w", lu.UnitID, err)
		}
		detail := models.ListUnitDetail{
			ID:          lu.ID,
			Unit:        *unit,
			Attachments: []models.Attachment{},
			CommanderID: lu.CommanderID,
		}
		out.TotalPoints += unit.PointsCost
		if len(lu.AttachmentIDs) > 0 {
			attachments, err := tx.ListAttachments(ctx, store.AttachmentQuery{IDs: lu.AttachmentIDs})
			if err != nil {
				return nil, fmt.Errorf("load attachments: %w", err)
			}
			for _, a := range attachments {
				out.TotalPoints += a.PointsCost
			}
			detail.Attachments = attachments
		}
		out.Units = append(out.Units, detail)
	}

	ncus, err := tx.ListListNCUs(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("load list ncus: %w", err)
	}
	for _, ln := range ncus {
		n, err := tx.GetNCU(ctx, ln.NCUID)
		if err != nil {
			return nil, fmt.Errorf("load ncu %d: %w", ln.NCUID, err)
		}
		out.TotalPoints += n.PointsCost
		out.NCUs = append(out.NCUs, *n)
	}
	return &out, nil
}
