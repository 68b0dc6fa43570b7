package service

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/rating"
	"github.com/Clark-Hu/bookshelf/internal/repository"
)

// OptionalRate distinguishes an absent rate from an explicit null.
type OptionalRate struct {
	Set   bool
	Value *int
}

// RelationPatch lists the relation fields present in a request.
type RelationPatch struct {
	Like        *bool
	InBookmarks *bool
	Rate        OptionalRate
}

func (p RelationPatch) apply(rel *domain.Relation) {
	if p.Like != nil {
		rel.Like = *p.Like
	}
	if p.InBookmarks != nil {
		rel.InBookmarks = *p.InBookmarks
	}
	if p.Rate.Set {
		rel.Rate = p.Rate.Value
	}
}

func validRate(rate *int) bool {
	return rate == nil || domain.ValidRate(*rate)
}

// PatchRelation get-or-creates actor's relation to bookID, applies patch and
// saves it. The rating hook runs in the same transaction.
func (s *Service) PatchRelation(ctx context.Context, actor domain.Actor, bookID int64, patch RelationPatch) (domain.Relation, error) {
	if !actor.Authenticated() {
		return domain.Relation{}, ErrUnauthenticated
	}
	if patch.Rate.Set && !validRate(patch.Rate.Value) {
		return domain.Relation{}, domain.ErrInvalidRate
	}

	var saved domain.Relation
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		rel, _, err := tx.Relations.GetOrCreate(ctx, actor.ID, bookID)
		if err != nil {
			return err
		}
		patch.apply(&rel)
		saved, err = s.saveRelation(ctx, tx, rel)
		return err
	})
	if err != nil {
		return domain.Relation{}, fmt.Errorf("patch relation for book %d: %w", bookID, err)
	}
	return saved, nil
}

// CreateRelation inserts a relation with explicit values and runs the hook.
func (s *Service) CreateRelation(ctx context.Context, params repository.RelationCreateParams) (domain.Relation, error) {
	if !validRate(params.Rate) {
		return domain.Relation{}, domain.ErrInvalidRate
	}
	var created domain.Relation
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		rel, err := tx.Relations.Create(ctx, params)
		if err != nil {
			return err
		}
		created = rel
		return s.afterSave(ctx, tx, true, nil, rel)
	})
	if err != nil {
		return domain.Relation{}, fmt.Errorf("create relation: %w", err)
	}
	return created, nil
}

// SaveRelation persists a loaded relation and runs the hook when its rate
// differs from PriorRate.
func (s *Service) SaveRelation(ctx context.Context, rel domain.Relation) (domain.Relation, error) {
	if !validRate(rel.Rate) {
		return domain.Relation{}, domain.ErrInvalidRate
	}
	var saved domain.Relation
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		var err error
		saved, err = s.saveRelation(ctx, tx, rel)
		return err
	})
	if err != nil {
		return domain.Relation{}, fmt.Errorf("save relation %d: %w", rel.ID, err)
	}
	return saved, nil
}

func (s *Service) saveRelation(ctx context.Context, tx *repository.Repository, rel domain.Relation) (domain.Relation, error) {
	saved, err := tx.Relations.Save(ctx, rel)
	if err != nil {
		return domain.Relation{}, err
	}
	saved.Created = rel.Created
	if err := s.afterSave(ctx, tx, rel.Created, rel.PriorRate, saved); err != nil {
		return domain.Relation{}, err
	}
	return saved, nil
}

// afterSave is the post-write hook keeping books.rating current.
func (s *Service) afterSave(ctx context.Context, tx *repository.Repository, created bool, before *int, rel domain.Relation) error {
	if !rating.ShouldRecompute(created, before, rel.Rate) {
		return nil
	}
	if _, err := s.rating.SetRating(ctx, tx, rel.BookID); err != nil {
		return err
	}
	return nil
}
