package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

const defaultPageSize = 20

type orderClause struct {
	column string
	dir    Direction
}

// querySource is the accessor side of a Query: scoped ORM chains with and
// without preloads, and the column used as the final keyset tiebreaker.
type querySource interface {
	base(ctx context.Context) *gorm.DB
	query(ctx context.Context) *gorm.DB
	primaryKey() string
}

type Query[T any] struct {
	src       querySource
	ctx       context.Context
	specs     []Spec
	orderCols []orderClause
	limit     *int
	offset    *int
	pageSize  *int
	cursor    string
	forward   bool
}

func newQuery[T any](ctx context.Context, src querySource) *Query[T] {
	return &Query[T]{src: src, ctx: ctx, forward: true}
}

func (q *Query[T]) Where(s Spec) *Query[T] {
	q.specs = append(q.specs, s)
	return q
}

func (q *Query[T]) OrderBy(column string, dir Direction) *Query[T] {
	q.orderCols = append(q.orderCols, orderClause{column: column, dir: dir})
	return q
}

func (q *Query[T]) Limit(n int) *Query[T]    { q.limit = &n; return q }
func (q *Query[T]) Offset(n int) *Query[T]   { q.offset = &n; return q }
func (q *Query[T]) PageSize(n int) *Query[T] { q.pageSize = &n; return q }

func (q *Query[T]) After(cursor string) *Query[T] {
	q.cursor = cursor
	q.forward = true
	return q
}

func (q *Query[T]) Before(cursor string) *Query[T] {
	q.cursor = cursor
	q.forward = false
	return q
}

func (q *Query[T]) All() ([]T, error) {
	tx := applyOrder(q.filtered(combineSpecs(q.specs)), q.orderCols)
	if q.limit != nil {
		tx = tx.Limit(*q.limit)
	}
	if q.offset != nil {
		tx = tx.Offset(*q.offset)
	}

	var items []T
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Query[T]) First() (T, error) {
	one := 1
	q.limit = &one

	items, err := q.All()
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return items[0], nil
}

func (q *Query[T]) Count() (int64, error) {
	var count int64
	err := whereSpec(q.src.base(q.ctx), combineSpecs(q.specs)).Count(&count).Error
	return count, err
}

func (q *Query[T]) Exists() (bool, error) {
	count, err := q.Count()
	return count > 0, err
}

// Page returns one keyset page. extract supplies the cursor values of the
// last item for every ordered column, the primary key included.
func (q *Query[T]) Page(extract CursorExtractor[T]) (*Page[T], error) {
	size := defaultPageSize
	if q.pageSize != nil && *q.pageSize > 0 {
		size = *q.pageSize
	}

	orders := q.ensurePKOrder()
	spec := combineSpecs(q.specs)

	if q.cursor != "" {
		cur, err := DecodeCursor(q.cursor)
		if err != nil {
			return nil, err
		}
		if keyset := buildKeysetSpec(orders, cur.Values, q.forward); keyset != nil {
			if spec != nil {
				spec = And(spec, keyset)
			} else {
				spec = keyset
			}
		}
	}

	// Backward pages are read in reverse and flipped so items keep the
	// requested order.
	sqlOrders := orders
	if !q.forward {
		sqlOrders = reverseOrders(orders)
	}

	var items []T
	tx := applyOrder(q.filtered(spec), sqlOrders).Limit(size + 1)
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}

	hasMore := len(items) > size
	if hasMore {
		items = items[:size]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		edge := items[len(items)-1]
		if !q.forward {
			slices.Reverse(items)
			edge = items[0]
		}
		nextCursor = EncodeCursor(Cursor{Values: extract(edge)})
	} else if !q.forward {
		slices.Reverse(items)
	}

	return &Page[T]{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (q *Query[T]) filtered(spec Spec) *gorm.DB {
	return whereSpec(q.src.query(q.ctx), spec)
}

func (q *Query[T]) ensurePKOrder() []orderClause {
	orders := make([]orderClause, len(q.orderCols))
	copy(orders, q.orderCols)

	pk := q.src.primaryKey()
	for _, o := range orders {
		if o.column == pk {
			return orders
		}
	}
	return append(orders, orderClause{column: pk, dir: Asc})
}

func reverseOrders(orders []orderClause) []orderClause {
	out := make([]orderClause, len(orders))
	for i, o := range orders {
		out[i] = o
		if o.dir == Desc {
			out[i].dir = Asc
		} else {
			out[i].dir = Desc
		}
	}
	return out
}

func whereSpec(tx *gorm.DB, spec Spec) *gorm.DB {
	if spec == nil {
		return tx
	}
	sql, args := spec.ToSQL()
	return tx.Where("("+sql+")", args...)
}

func applyOrder(tx *gorm.DB, orders []orderClause) *gorm.DB {
	for _, o := range orders {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: o.column, Raw: true},
			Desc:   o.dir == Desc,
		})
	}
	return tx
}
