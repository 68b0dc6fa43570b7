package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/bookshelf/internal/domain"
)

// RelationsRepository provides helpers for per-user book relations.
type RelationsRepository struct {
	db DBTX
}

const relationColumns = `
    id,
    user_id,
    book_id,
    liked,
    in_bookmarks,
    rate,
    created_at,
    updated_at
`

// RelationCreateParams captures the payload required to insert a relation.
type RelationCreateParams struct {
	UserID      int64
	BookID      int64
	Like        bool
	InBookmarks bool
	Rate        *int
}

// Create inserts a relation with explicit values. A second relation for the
// same (user, book) pair yields ErrConflict.
func (r *RelationsRepository) Create(ctx context.Context, params RelationCreateParams) (domain.Relation, error) {
	const query = `
        INSERT INTO user_book_relations (user_id, book_id, liked, in_bookmarks, rate)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + relationColumns

	rel, err := scanRelation(r.db.QueryRow(ctx, query, params.UserID, params.BookID, params.Like, params.InBookmarks, params.Rate))
	if err != nil {
		return domain.Relation{}, translateError("create relation", err)
	}
	rel.PriorRate = nil
	rel.Created = true
	return rel, nil
}

// GetOrCreate returns the relation for (userID, bookID), inserting a row with
// defaults when none exists. The boolean reports whether a row was inserted.
// Unknown users or books yield ErrNotFound.
func (r *RelationsRepository) GetOrCreate(ctx context.Context, userID, bookID int64) (domain.Relation, bool, error) {
	const insert = `
        INSERT INTO user_book_relations (user_id, book_id)
        VALUES ($1, $2)
        ON CONFLICT (user_id, book_id) DO NOTHING
        RETURNING ` + relationColumns

	rel, err := scanRelation(r.db.QueryRow(ctx, insert, userID, bookID))
	if err == nil {
		rel.PriorRate = nil
		rel.Created = true
		return rel, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Relation{}, false, translateError("create relation", err)
	}

	rel, err = r.get(ctx, userID, bookID, true)
	if err != nil {
		return domain.Relation{}, false, err
	}
	return rel, false, nil
}

// Get retrieves the relation for a specific user/book combination.
func (r *RelationsRepository) Get(ctx context.Context, userID, bookID int64) (domain.Relation, error) {
	return r.get(ctx, userID, bookID, false)
}

func (r *RelationsRepository) get(ctx context.Context, userID, bookID int64, lock bool) (domain.Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM user_book_relations WHERE user_id = $1 AND book_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	rel, err := scanRelation(r.db.QueryRow(ctx, query, userID, bookID))
	if err != nil {
		return domain.Relation{}, translateError("get relation", err)
	}
	return rel, nil
}

// Save persists the mutable fields of rel. The returned relation carries the
// stored values with PriorRate reset to the new rate.
func (r *RelationsRepository) Save(ctx context.Context, rel domain.Relation) (domain.Relation, error) {
	const query = `
        UPDATE user_book_relations
        SET liked = $2,
            in_bookmarks = $3,
            rate = $4,
            updated_at = now()
        WHERE id = $1
        RETURNING ` + relationColumns

	saved, err := scanRelation(r.db.QueryRow(ctx, query, rel.ID, rel.Like, rel.InBookmarks, rel.Rate))
	if err != nil {
		return domain.Relation{}, translateError("save relation", err)
	}
	return saved, nil
}

// ListByBook returns a book's relations in insertion order.
func (r *RelationsRepository) ListByBook(ctx context.Context, bookID int64) ([]domain.Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM user_book_relations WHERE book_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, bookID)
	if err != nil {
		return nil, translateError("list relations", err)
	}
	defer rows.Close()

	items := make([]domain.Relation, 0)
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, translateError("scan relation", err)
		}
		items = append(items, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list relations", err)
	}
	return items, nil
}

// scanRelation loads a row and captures its rate as PriorRate.
func scanRelation(row pgx.Row) (domain.Relation, error) {
	var (
		rel  domain.Relation
		rate *int16
	)
	err := row.Scan(
		&rel.ID,
		&rel.UserID,
		&rel.BookID,
		&rel.Like,
		&rel.InBookmarks,
		&rate,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return domain.Relation{}, err
	}
	if rate != nil {
		v := int(*rate)
		rel.Rate = &v
		prior := v
		rel.PriorRate = &prior
	}
	return rel, nil
}
