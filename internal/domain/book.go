package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reader is the public projection of a user related to a book.
type Reader struct {
	FirstName string
	LastName  string
}

// Book represents the canonical book entity together with the values
// annotated at query time (likes count, owner username, readers).
type Book struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	AuthorName string
	OwnerID    *int64
	Rating     decimal.NullDecimal
	CreatedAt  time.Time
	UpdatedAt  time.Time

	AnnotatedLikes int64
	OwnerName      *string
	Readers        []Reader
}

// OwnedBy reports whether userID is the recorded owner.
func (b Book) OwnedBy(userID int64) bool {
	return b.OwnerID != nil && userID != 0 && *b.OwnerID == userID
}
