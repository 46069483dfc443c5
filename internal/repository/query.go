// Package repository provides data access layer implementations for the application.
package repository

import (
	"fmt"

	"mainq/internal/database"
	"mainq/internal/models"

	"gorm.io/gorm"
)

// Op is a comparison operator allowed in a Cond.
type Op string

const (
	Eq  Op = "="
	Neq Op = "<>"
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

func (o Op) valid() bool {
	switch o {
	case Eq, Neq, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

// Cond is one field comparison.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Query is a store-agnostic where/order/limit description. Fields are logical
// names that each repository maps onto columns it allows.
type Query struct {
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// Where starts a query with one condition.
func Where(field string, op Op, value any) Query {
	return Query{}.And(field, op, value)
}

// And appends a condition.
func (q Query) And(field string, op Op, value any) Query {
	q.Where = append(append([]Cond{}, q.Where...), Cond{Field: field, Op: op, Value: value})
	return q
}

// Order sets the sort field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Take caps the number of rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// fieldSet maps logical field names onto column names.
type fieldSet map[string]string

func (q Query) apply(db *gorm.DB, fields fieldSet) (*gorm.DB, error) {
	for _, c := range q.Where {
		col, ok := fields[c.Field]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("unknown query field %q", c.Field))
		}
		if !c.Op.valid() {
			return nil, models.NewValidationError(fmt.Sprintf("unsupported operator %q", c.Op))
		}
		db = db.Where(fmt.Sprintf("%s %s ?", col, c.Op), c.Value)
	}
	if q.OrderBy != "" {
		col, ok := fields[q.OrderBy]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("unknown order field %q", q.OrderBy))
		}
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		db = db.Order(col + " " + dir)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db, nil
}

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}
