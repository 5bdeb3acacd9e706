package realtime

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Op int

const (
	OpEq Op = iota
	OpLt
	OpGt
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

func (f Filter) expression() clause.Expression {
	column := clause.Column{Name: f.Field}
	switch f.Op {
	case OpLt:
		return clause.Lt{Column: column, Value: f.Value}
	case OpGt:
		return clause.Gt{Column: column, Value: f.Value}
	default:
		return clause.Eq{Column: column, Value: f.Value}
	}
}

// Query selects documents of one collection. Collection also names the
// change notifications the query listens to.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, op Op, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// Apply scopes db to the query. Results are always tie-broken by id so two
// runs over the same rows return the same order.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	for _, f := range q.Filters {
		db = db.Where(f.expression())
	}
	if q.OrderBy != "" {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db
}
