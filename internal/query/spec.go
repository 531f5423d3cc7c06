// Package query builds parameterized SELECT statements from a typed specification.
//
// Tenant-owned tables cannot be queried without an explicit Scope: either a
// single organization or the deliberate AllOrganizations opt-out. This keeps
// organization scoping a required field instead of a call-site habit.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnscoped           = errors.New("query: tenant table requires an organization scope")
	ErrScopeNotApplicable = errors.New("query: organization scope on a global table")
	ErrNilOrganization    = errors.New("query: organization scope with nil id")
	ErrInvalidIdentifier  = errors.New("query: invalid identifier")
	ErrNoColumns          = errors.New("query: no columns selected")
)

// tenantColumns maps tenant-owned tables to the column holding the owning organization.
var tenantColumns = map[string]string{
	"organization_users":         "organization_id",
	"staff_positions":            "organization_id",
	"organization_subscriptions": "organization_id",
	"cross_organization_access":  "host_organization_id",
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// IsTenantTable reports whether rows of table belong to a single organization.
func IsTenantTable(table string) bool {
	_, ok := tenantColumns[table]
	return ok
}

type scopeMode int

const (
	scopeUnset scopeMode = iota
	scopeOrganization
	scopeAll
)

// Scope restricts a query to one organization's rows.
type Scope struct {
	orgID uuid.UUID
	mode  scopeMode
}

// ForOrganization scopes a query to the given organization.
func ForOrganization(id uuid.UUID) Scope {
	return Scope{orgID: id, mode: scopeOrganization}
}

// AllOrganizations explicitly opts a tenant-table query out of organization scoping.
// Use it only for lookups keyed by something other than the tenant (e.g. a user id).
func AllOrganizations() Scope {
	return Scope{mode: scopeAll}
}

// IsSet reports whether a scope decision was made.
func (s Scope) IsSet() bool { return s.mode != scopeUnset }

// OrganizationID returns the scoped organization, or uuid.Nil for unscoped/all.
func (s Scope) OrganizationID() uuid.UUID { return s.orgID }

type op int

const (
	opEq op = iota
	opIn
)

// Predicate is a single equality or membership filter.
type Predicate struct {
	Column string
	op     op
	values []any
}

// Eq filters rows where column = value.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, op: opEq, values: []any{value}}
}

// In filters rows where column is one of values. An empty list matches nothing.
func In(column string, values ...any) Predicate {
	return Predicate{Column: column, op: opIn, values: values}
}

// JoinKind selects INNER or LEFT join.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Join adds a joined table: Table.Column = On (On is a qualified column).
type Join struct {
	Kind   JoinKind
	Table  string
	Column string
	On     string
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Spec describes a SELECT against one table with optional joins.
type Spec struct {
	Table   string
	Columns []string
	Joins   []Join
	Scope   Scope
	Where   []Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

// Build returns the SELECT statement and its positional arguments.
func (s Spec) Build() (string, []any, error) {
	return s.build(false)
}

// BuildCount returns a SELECT COUNT(*) over the same table, joins and filters.
func (s Spec) BuildCount() (string, []any, error) {
	return s.build(true)
}

func (s Spec) build(count bool) (string, []any, error) {
	if !identRegex.MatchString(s.Table) || strings.Contains(s.Table, ".") {
		return "", nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, s.Table)
	}
	scopeCol, tenant := tenantColumns[s.Table]
	switch {
	case tenant && !s.Scope.IsSet():
		return "", nil, fmt.Errorf("%w: %s", ErrUnscoped, s.Table)
	case !tenant && s.Scope.mode == scopeOrganization:
		return "", nil, fmt.Errorf("%w: %s", ErrScopeNotApplicable, s.Table)
	case s.Scope.mode == scopeOrganization && s.Scope.orgID == uuid.Nil:
		return "", nil, fmt.Errorf("%w: %s", ErrNilOrganization, s.Table)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if count {
		b.WriteString("COUNT(*)")
	} else {
		if len(s.Columns) == 0 {
			return "", nil, ErrNoColumns
		}
		for _, c := range s.Columns {
			if !identRegex.MatchString(c) {
				return "", nil, fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
			}
		}
		b.WriteString(strings.Join(s.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.Table)

	for _, j := range s.Joins {
		if !identRegex.MatchString(j.Table) || !identRegex.MatchString(j.Column) || !identRegex.MatchString(j.On) {
			return "", nil, fmt.Errorf("%w: join %s", ErrInvalidIdentifier, j.Table)
		}
		if j.Kind == LeftJoin {
			b.WriteString(" LEFT JOIN ")
		} else {
			b.WriteString(" INNER JOIN ")
		}
		fmt.Fprintf(&b, "%s ON %s.%s = %s", j.Table, j.Table, j.Column, j.On)
	}

	var (
		args  []any
		conds []string
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if s.Scope.mode == scopeOrganization {
		conds = append(conds, s.Table+"."+scopeCol+" = "+next(s.Scope.orgID))
	}
	for _, p := range s.Where {
		if !identRegex.MatchString(p.Column) {
			return "", nil, fmt.Errorf("%w: column %q", ErrInvalidIdentifier, p.Column)
		}
		switch p.op {
		case opEq:
			conds = append(conds, p.Column+" = "+next(p.values[0]))
		case opIn:
			if len(p.values) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			ph := make([]string, len(p.values))
			for i, v := range p.values {
				ph[i] = next(v)
			}
			conds = append(conds, p.Column+" IN ("+strings.Join(ph, ", ")+")")
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if count {
		return b.String(), args, nil
	}

	if len(s.OrderBy) > 0 {
		terms := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			if !identRegex.MatchString(o.Column) {
				return "", nil, fmt.Errorf("%w: order %q", ErrInvalidIdentifier, o.Column)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = o.Column + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}
	if s.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(s.Limit))
	}
	if s.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(s.Offset))
	}
	return b.String(), args, nil
}
