// Package service holds the catalog use cases: book CRUD under the
// owner-or-staff policy and the relation write path with its rating hook.
package service

//go:generate mockgen -destination=mocks/mock_rating.go -package=mocks . RatingRecomputer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/repository"
)

var (
	// ErrForbidden is returned when the policy denies a write.
	ErrForbidden = errors.New("service: forbidden")
	// ErrUnauthenticated is returned when an operation needs a known actor.
	ErrUnauthenticated = errors.New("service: authentication required")
)

// RatingRecomputer recomputes a book's stored rating using a repository
// bound to the caller's transaction.
type RatingRecomputer interface {
	SetRating(ctx context.Context, repo *repository.Repository, bookID int64) (decimal.NullDecimal, error)
}

// Authorizer decides whether an actor may modify a book.
type Authorizer interface {
	MayWrite(actor domain.Actor, book domain.Book) bool
}

// Service coordinates repositories, policy and rating recomputation.
type Service struct {
	repo   *repository.Repository
	policy Authorizer
	rating RatingRecomputer
	logger zerolog.Logger
}

// New constructs a Service.
func New(repo *repository.Repository, policy Authorizer, rating RatingRecomputer, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		rating: rating,
		logger: logger.With().Str("component", "service").Logger(),
	}
}
