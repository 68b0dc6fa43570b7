// Package rating keeps books.rating equal to the rounded mean of its
// relations' rates.
package rating

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/metrics"
	"github.com/Clark-Hu/bookshelf/internal/repository"
)

// ShouldRecompute is the trigger rule for the post-write hook: a freshly
// created relation that carries a rate, or any save that changed the rate.
func ShouldRecompute(created bool, before, after *int) bool {
	if created {
		return after != nil
	}
	if before == nil || after == nil {
		return before != after
	}
	return *before != *after
}

// Service recomputes book ratings.
type Service struct {
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger.With().Str("component", "rating").Logger()}
}

// SetRating recomputes and stores the rating of bookID using repo, which is
// expected to be bound to the caller's transaction.
func (s *Service) SetRating(ctx context.Context, repo *repository.Repository, bookID int64) (decimal.NullDecimal, error) {
	value, err := repo.Books.RecomputeRating(ctx, bookID)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("set rating for book %d: %w", bookID, err)
	}
	metrics.RatingRecomputes.Inc()

	event := s.logger.Debug().Int64("book_id", bookID)
	if value.Valid {
		event = event.Str("rating", value.Decimal.StringFixed(2))
	}
	event.Msg("rating recomputed")
	return value, nil
}
