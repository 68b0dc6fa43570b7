package domain

import (
	"errors"
	"time"
)

// ErrInvalidRate is returned when a rate falls outside RateChoices.
var ErrInvalidRate = errors.New("domain: invalid rate")

// RateChoices lists the accepted rate values and their labels.
var RateChoices = map[int]string{
	1: "Ok",
	2: "Fine",
	3: "Good",
	4: "Amazing",
	5: "Incredible",
}

// ValidRate reports whether value is one of RateChoices.
func ValidRate(value int) bool {
	_, ok := RateChoices[value]
	return ok
}

// Relation holds one user's preferences for one book. PriorRate is the rate
// observed when the row was loaded; Created marks rows inserted by the
// current write path.
type Relation struct {
	ID          int64
	UserID      int64
	BookID      int64
	Like        bool
	InBookmarks bool
	Rate        *int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	PriorRate *int
	Created   bool
}
