package catalog

import (
	"context"
	"strings"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (s *Service) KeywordTypes(ctx context.Context) ([]models.KeywordType, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.KeywordType, error) { return tx.ListKeywordTypes(ctx) })
}

func (s *Service) SaveKeywordType(ctx context.Context, caller auth.Identity, k models.KeywordType) (*models.KeywordType, error) {
	if err := requireModerator(caller, "keyword types"); err != nil {
		return nil, err
	}
	k.Name = strings.TrimSpace(k.Name)
	if err := requireName(k.Name, "keyword type"); err != nil {
		return nil, err
	}
	if err := s.store.WithTx(ctx, func(tx store.Tx) error { return tx.SaveKeywordType(ctx, &k) }); err != nil {
		return nil, err
	}
	s.logSaved("keyword_type", k.ID, k.Name)
	return &k, nil
}

// DeleteKeywordType refuses while keyword pairs still carry the type.
func (s *Service) DeleteKeywordType(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogKeywordType, id, func(tx store.Tx) error { return tx.DeleteKeywordType(ctx, id) })
}

// KeywordPairs lists the glossary ordered by keyword.
func (s *Service) KeywordPairs(ctx context.Context) ([]models.KeywordPair, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.KeywordPair, error) { return tx.ListKeywordPairs(ctx) })
}

func (s *Service) SaveKeywordPair(ctx context.Context, caller auth.Identity, k models.KeywordPair) (*models.KeywordPair, error) {
	if err := requireModerator(caller, "keyword pairs"); err != nil {
		return nil, err
	}
	k.Keyword = strings.TrimSpace(k.Keyword)
	if k.Keyword == "" {
		return nil, apperr.Validation("missing keyword")
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if k.KeywordTypeID != nil {
			if _, err := tx.GetKeywordType(ctx, *k.KeywordTypeID); err != nil {
				return err
			}
		}
		return tx.SaveKeywordPair(ctx, &k)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("keyword_pair", k.ID, k.Keyword)
	return &k, nil
}

func (s *Service) DeleteKeywordPair(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireModerator(caller, "keyword pairs"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteKeywordPair(ctx, id) })
}
