package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/domain"
)

// BooksRepository provides persistence helpers for book entities.
type BooksRepository struct {
	db DBTX
}

const bookColumns = `
    b.id,
    b.name,
    b.price,
    b.author_name,
    b.owner_id,
    b.rating,
    b.created_at,
    b.updated_at
`

// annotatedBookSelect joins the owner and the relations so every row carries
// owner_name and annotated_likes. Callers append WHERE/GROUP BY/ORDER BY.
const annotatedBookSelect = `
SELECT` + bookColumns + `,
    u.username AS owner_name,
    COUNT(r.id) FILTER (WHERE r.liked) AS annotated_likes
FROM books b
LEFT JOIN users u ON u.id = b.owner_id
LEFT JOIN user_book_relations r ON r.book_id = b.id`

const annotatedBookGroupBy = ` GROUP BY b.id, u.username`

// OrderableFields maps the public ordering names to columns.
var OrderableFields = map[string]string{
	"price":       "b.price",
	"author_name": "b.author_name",
}

// BookCreateParams bundles the fields required to create a book.
type BookCreateParams struct {
	Name       string
	Price      decimal.Decimal
	AuthorName string
	OwnerID    *int64
}

// BookUpdateParams carries the fields to change; nil leaves a column as is.
type BookUpdateParams struct {
	Name       *string
	Price      *decimal.Decimal
	AuthorName *string
}

// OrderField is one ordering term.
type OrderField struct {
	Field string
	Desc  bool
}

// BookListFilters encapsulates list filtering, search and ordering.
type BookListFilters struct {
	Price *decimal.Decimal
	// Search terms are ANDed; each must match name or author_name.
	Search   []string
	Ordering []OrderField
	// MatchNone short-circuits List with an empty result, used when the
	// price filter cannot equal any stored price.
	MatchNone bool
}

// Create inserts a new book row and returns it annotated.
func (r *BooksRepository) Create(ctx context.Context, params BookCreateParams) (domain.Book, error) {
	const query = `
        INSERT INTO books (name, price, author_name, owner_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	var id int64
	if err := r.db.QueryRow(ctx, query, params.Name, params.Price, params.AuthorName, params.OwnerID).Scan(&id); err != nil {
		return domain.Book{}, translateError("create book", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches an annotated book by its identifier.
func (r *BooksRepository) GetByID(ctx context.Context, id int64) (domain.Book, error) {
	query := annotatedBookSelect + ` WHERE b.id = $1` + annotatedBookGroupBy
	book, err := scanAnnotatedBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Book{}, translateError("get book", err)
	}
	books := []domain.Book{book}
	if err := r.loadReaders(ctx, books); err != nil {
		return domain.Book{}, err
	}
	return books[0], nil
}

// Lock reads the plain book row with FOR UPDATE; it must run inside InTx.
func (r *BooksRepository) Lock(ctx context.Context, id int64) (domain.Book, error) {
	query := `SELECT` + bookColumns + ` FROM books b WHERE b.id = $1 FOR UPDATE`
	var book domain.Book
	err := r.db.QueryRow(ctx, query, id).Scan(
		&book.ID,
		&book.Name,
		&book.Price,
		&book.AuthorName,
		&book.OwnerID,
		&book.Rating,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, translateError("lock book", err)
	}
	return book, nil
}

// Update applies the non-nil fields of params.
func (r *BooksRepository) Update(ctx context.Context, id int64, params BookUpdateParams) (domain.Book, error) {
	const query = `
        UPDATE books
        SET name = COALESCE($2, name),
            price = COALESCE($3, price),
            author_name = COALESCE($4, author_name),
            updated_at = now()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, id, params.Name, params.Price, params.AuthorName)
	if err != nil {
		return domain.Book{}, translateError("update book", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Book{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a book; its relations cascade.
func (r *BooksRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return translateError("delete book", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeRating stores the rounded mean of the book's non-null rates, or
// NULL when nothing is rated, and returns the stored value.
func (r *BooksRepository) RecomputeRating(ctx context.Context, id int64) (decimal.NullDecimal, error) {
	const query = `
        UPDATE books
        SET rating = (
            SELECT ROUND(AVG(rate)::numeric, 2)
            FROM user_book_relations
            WHERE book_id = $1 AND rate IS NOT NULL
        )
        WHERE id = $1
        RETURNING rating
    `
	var rating decimal.NullDecimal
	if err := r.db.QueryRow(ctx, query, id).Scan(&rating); err != nil {
		return decimal.NullDecimal{}, translateError("recompute rating", err)
	}
	return rating, nil
}

// List returns annotated books that match the provided filters.
func (r *BooksRepository) List(ctx context.Context, filters BookListFilters) ([]domain.Book, error) {
	if filters.MatchNone {
		return []domain.Book{}, nil
	}
	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Price != nil {
		where = append(where, fmt.Sprintf("b.price = %s", arg(*filters.Price)))
	}
	for _, term := range filters.Search {
		if term = strings.TrimSpace(term); term == "" {
			continue
		}
		p := arg("%" + escapeLike(term) + "%")
		where = append(where, fmt.Sprintf("(b.name ILIKE %s OR b.author_name ILIKE %s)", p, p))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString(annotatedBookSelect)
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(annotatedBookGroupBy)
	queryBuilder.WriteString(" ORDER BY ")
	queryBuilder.WriteString(orderClause(filters.Ordering))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, translateError("list books", err)
	}
	defer rows.Close()

	items := make([]domain.Book, 0)
	for rows.Next() {
		book, err := scanAnnotatedBook(rows)
		if err != nil {
			return nil, translateError("scan book", err)
		}
		items = append(items, book)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list books", err)
	}

	if err := r.loadReaders(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// loadReaders fills Readers for every book with one query, ordered by
// relation insertion.
func (r *BooksRepository) loadReaders(ctx context.Context, books []domain.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]int64, len(books))
	index := make(map[int64]int, len(books))
	for i, b := range books {
		ids[i] = b.ID
		index[b.ID] = i
		books[i].Readers = make([]domain.Reader, 0)
	}

	const query = `
        SELECT r.book_id, u.first_name, u.last_name
        FROM user_book_relations r
        JOIN users u ON u.id = r.user_id
        WHERE r.book_id = ANY($1)
        ORDER BY r.book_id, r.id
    `
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return translateError("load readers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			reader domain.Reader
		)
		if err := rows.Scan(&bookID, &reader.FirstName, &reader.LastName); err != nil {
			return translateError("scan reader", err)
		}
		i := index[bookID]
		books[i].Readers = append(books[i].Readers, reader)
	}
	return translateError("load readers", rows.Err())
}

func orderClause(fields []OrderField) string {
	parts := make([]string, 0, len(fields)+1)
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		column, ok := OrderableFields[f.Field]
		if !ok || seen[f.Field] {
			continue
		}
		seen[f.Field] = true
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, column+" "+dir)
	}
	parts = append(parts, "b.id ASC")
	return strings.Join(parts, ", ")
}

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanAnnotatedBook(row pgx.Row) (domain.Book, error) {
	var book domain.Book
	err := row.Scan(
		&book.ID,
		&book.Name,
		&book.Price,
		&book.AuthorName,
		&book.OwnerID,
		&book.Rating,
		&book.CreatedAt,
		&book.UpdatedAt,
		&book.OwnerName,
		&book.AnnotatedLikes,
	)
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}
