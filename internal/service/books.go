package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/repository"
)

// BookInput carries client-writable book fields.
type BookInput struct {
	Name       string
	Price      decimal.Decimal
	AuthorName string
}

// ListBooks returns annotated books matching filters.
func (s *Service) ListBooks(ctx context.Context, filters repository.BookListFilters) ([]domain.Book, error) {
	return s.repo.Books.List(ctx, filters)
}

// GetBook returns one annotated book.
func (s *Service) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	return s.repo.Books.GetByID(ctx, id)
}

// CreateBook stores a book owned by actor.
func (s *Service) CreateBook(ctx context.Context, actor domain.Actor, in BookInput) (domain.Book, error) {
	if !actor.Authenticated() {
		return domain.Book{}, ErrUnauthenticated
	}
	owner := actor.ID
	book, err := s.repo.Books.Create(ctx, repository.BookCreateParams{
		Name:       in.Name,
		Price:      in.Price,
		AuthorName: in.AuthorName,
		OwnerID:    &owner,
	})
	if err != nil {
		return domain.Book{}, err
	}
	s.logger.Info().Int64("book_id", book.ID).Int64("owner_id", owner).Msg("book created")
	return book, nil
}

// UpdateBook applies params to book id when actor may write it. Missing books
// yield repository.ErrNotFound before the policy is consulted.
func (s *Service) UpdateBook(ctx context.Context, actor domain.Actor, id int64, params repository.BookUpdateParams) (domain.Book, error) {
	var updated domain.Book
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		book, err := tx.Books.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !s.policy.MayWrite(actor, book) {
			return ErrForbidden
		}
		updated, err = tx.Books.Update(ctx, id, params)
		return err
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	return updated, nil
}

// DeleteBook removes book id when actor may write it.
func (s *Service) DeleteBook(ctx context.Context, actor domain.Actor, id int64) error {
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		book, err := tx.Books.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !s.policy.MayWrite(actor, book) {
			return ErrForbidden
		}
		return tx.Books.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.logger.Info().Int64("book_id", id).Int64("actor_id", actor.ID).Msg("book deleted")
	return nil
}

// MayWrite exposes the policy so handlers can deny before parsing a body.
func (s *Service) MayWrite(actor domain.Actor, book domain.Book) bool {
	return s.policy.MayWrite(actor, book)
}
