package repository

import (
	"cmp"
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Accessor is the named collection of one aggregate type inside a Database.
// Reads hit the store directly; Add, Attach and Remove only track changes
// that the owning Database commits on SaveChanges.
type Accessor[T Aggregate[K], K cmp.Ordered] struct {
	name    string
	model   any
	table   string
	pk      string
	preload []string
	owner   *Database
}

func (a *Accessor[T, K]) Name() string       { return a.name }
func (a *Accessor[T, K]) Table() string      { return a.table }
func (a *Accessor[T, K]) PrimaryKey() string { return a.pk }

func (a *Accessor[T, K]) base(ctx context.Context) *gorm.DB {
	return a.owner.db.WithContext(ctx).Model(a.model)
}

func (a *Accessor[T, K]) query(ctx context.Context) *gorm.DB {
	tx := a.base(ctx)
	for _, assoc := range a.preload {
		tx = tx.Preload(assoc)
	}
	return tx
}

func (a *Accessor[T, K]) primaryKey() string { return a.pk }

func (a *Accessor[T, K]) byID(id K) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: a.pk}, Value: id}
}

func (a *Accessor[T, K]) pkOrder() clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: a.pk}}
}

// Contains reports whether a row with the identifier exists.
func (a *Accessor[T, K]) Contains(ctx context.Context, id K) (bool, error) {
	var count int64
	err := a.base(ctx).Where(a.byID(id)).Count(&count).Error
	return count > 0, err
}

// Find returns the first row with the identifier. ok is false when none exists.
func (a *Accessor[T, K]) Find(ctx context.Context, id K) (agg T, ok bool, err error) {
	var rows []T
	if err := a.query(ctx).Where(a.byID(id)).Limit(1).Find(&rows).Error; err != nil {
		return agg, false, err
	}
	if len(rows) == 0 {
		return agg, false, nil
	}
	return rows[0], true, nil
}

// MaxID returns the greatest stored identifier, or the zero K when the
// collection is empty.
func (a *Accessor[T, K]) MaxID(ctx context.Context) (K, error) {
	var maxID sql.Null[K]
	rows, err := a.base(ctx).
		Select("MAX(?)", clause.Column{Table: clause.CurrentTable, Name: a.pk}).
		Rows()
	if err != nil {
		return maxID.V, err
	}
	defer func() { _ = rows.Close() }()

	if rows.Next() {
		if err := rows.Scan(&maxID); err != nil {
			return maxID.V, err
		}
	}
	return maxID.V, rows.Err()
}

// Snapshot materializes every stored aggregate ordered by identifier.
func (a *Accessor[T, K]) Snapshot(ctx context.Context) ([]T, error) {
	var rows []T
	if err := a.query(ctx).Order(a.pkOrder()).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *Accessor[T, K]) Add(agg T) {
	a.owner.track(change{
		aggregate: a.name,
		op:        opAdd,
		apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Create(agg)
		},
	})
}

// Attach tracks a full-row update of agg, zero values included.
func (a *Accessor[T, K]) Attach(agg T) {
	id := agg.AggregateID()
	full := len(a.preload) > 0
	a.owner.track(change{
		aggregate: a.name,
		op:        opUpdate,
		apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Session(&gorm.Session{FullSaveAssociations: full}).
				Model(agg).
				Where(a.byID(id)).
				Select("*").
				Updates(agg)
		},
	})
}

func (a *Accessor[T, K]) Remove(agg T) {
	id := agg.AggregateID()
	withAssoc := len(a.preload) > 0
	a.owner.track(change{
		aggregate: a.name,
		op:        opRemove,
		apply: func(tx *gorm.DB) *gorm.DB {
			tx = tx.Where(a.byID(id))
			if withAssoc {
				tx = tx.Select(clause.Associations)
			}
			return tx.Delete(agg)
		},
	})
}
