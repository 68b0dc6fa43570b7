// Package policy decides which actors may modify a book. Owners and staff
// may write; everyone may read.
package policy

import (
	_ "embed"
	"fmt"
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/Clark-Hu/bookshelf/internal/domain"
)

// ActionWrite covers update and delete.
const ActionWrite = "write"

const (
	roleStaff = "staff"
	roleUser  = "user"
)

var (
	//go:embed model.conf
	modelText string
	//go:embed policy.csv
	policyText string
)

// Policy evaluates the owner-or-staff rule.
type Policy struct {
	enforcer *casbin.Enforcer
}

// New loads the embedded model and policy lines.
func New() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policyText))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

// MayWrite reports whether actor may update or delete book. Anonymous actors
// never may; a book without owner is writable by staff only.
func (p *Policy) MayWrite(actor domain.Actor, book domain.Book) bool {
	if !actor.Authenticated() {
		return false
	}
	role := roleUser
	if actor.IsStaff {
		role = roleStaff
	}
	owner := ""
	if book.OwnerID != nil {
		owner = strconv.FormatInt(*book.OwnerID, 10)
	}
	ok, err := p.enforcer.Enforce(strconv.FormatInt(actor.ID, 10), role, owner, ActionWrite)
	return err == nil && ok
}
