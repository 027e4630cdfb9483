package repository

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"
)

// Provider is the repository of one aggregate type. Every mutation is
// tracked on the shared accessor and committed through the Database.
type Provider[T Aggregate[K], K cmp.Ordered] struct {
	db       *Database
	accessor *Accessor[T, K]
	log      *zap.Logger
}

// NewProvider ensures the schema exists and binds the accessor registered
// under info.Name.
func NewProvider[T Aggregate[K], K cmp.Ordered](ctx context.Context, db *Database, info AggregateInfo) (*Provider[T, K], error) {
	if _, err := db.EnsureCreated(ctx); err != nil {
		return nil, err
	}
	acc, err := AccessorFor[T, K](db, info)
	if err != nil {
		return nil, err
	}
	return &Provider[T, K]{
		db:       db,
		accessor: acc,
		log:      db.log.With(zap.String("aggregate", acc.name)),
	}, nil
}

func (p *Provider[T, K]) Accessor() *Accessor[T, K] { return p.accessor }

func (p *Provider[T, K]) Exists(ctx context.Context, agg T) (bool, error) {
	if isNilAggregate(agg) {
		return false, ErrNilAggregate
	}
	return p.ExistsByID(ctx, agg.AggregateID())
}

func (p *Provider[T, K]) ExistsByID(ctx context.Context, id K) (ok bool, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "exists")
	defer func() { err = endSpan(span, err) }()

	return p.accessor.Contains(ctx, id)
}

func (p *Provider[T, K]) GetByID(ctx context.Context, id K) (agg T, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "get_by_id")
	defer func() { err = endSpan(span, err) }()

	agg, ok, err := p.accessor.Find(ctx, id)
	if err != nil {
		return agg, err
	}
	if !ok {
		return agg, fmt.Errorf("%w: %s %v", ErrNotFound, p.accessor.name, id)
	}
	return agg, nil
}

// GetByIDOrDefault is GetByID returning the zero T instead of ErrNotFound.
func (p *Provider[T, K]) GetByIDOrDefault(ctx context.Context, id K) (agg T, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "get_by_id_or_default")
	defer func() { err = endSpan(span, err) }()

	agg, _, err = p.accessor.Find(ctx, id)
	return agg, err
}

// NextAggregateID passes the greatest stored identifier (the zero K for an
// empty collection) to generate and returns its result.
//
// Nothing is reserved: concurrent callers that read the same maximum get the
// same identifier, and the later Create fails with ErrAlreadyExists.
func (p *Provider[T, K]) NextAggregateID(ctx context.Context, generate func(K) K) (id K, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "next_aggregate_id")
	defer func() { err = endSpan(span, err) }()

	last, err := p.accessor.MaxID(ctx)
	if err != nil {
		return id, err
	}
	return generate(last), nil
}

// Create inserts agg and commits. When the commit fails the insert stays
// tracked on the Database and is replayed by the next commit of any provider
// sharing it; call Database.DiscardChanges to drop it.
func (p *Provider[T, K]) Create(ctx context.Context, agg T) (err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "create")
	defer func() { err = endSpan(span, err) }()

	if isNilAggregate(agg) {
		return ErrNilAggregate
	}
	id := agg.AggregateID()
	exists, err := p.accessor.Contains(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %v", ErrAlreadyExists, p.accessor.name, id)
	}

	p.accessor.Add(agg)
	if _, err := p.db.SaveChanges(ctx); err != nil {
		return err
	}
	p.log.Debug("aggregate created", zap.Any("id", id))
	return nil
}

// Update replaces the stored row of agg and commits. A failed commit leaves
// the change tracked, as with Create.
func (p *Provider[T, K]) Update(ctx context.Context, agg T) (err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "update")
	defer func() { err = endSpan(span, err) }()

	if isNilAggregate(agg) {
		return ErrNilAggregate
	}
	id := agg.AggregateID()
	if err := p.requireExisting(ctx, id); err != nil {
		return err
	}

	p.accessor.Attach(agg)
	if _, err := p.db.SaveChanges(ctx); err != nil {
		return err
	}
	p.log.Debug("aggregate updated", zap.Any("id", id))
	return nil
}

// Delete removes agg and commits. A failed commit leaves the change tracked,
// as with Create.
func (p *Provider[T, K]) Delete(ctx context.Context, agg T) (err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "delete")
	defer func() { err = endSpan(span, err) }()

	if isNilAggregate(agg) {
		return ErrNilAggregate
	}
	id := agg.AggregateID()
	if err := p.requireExisting(ctx, id); err != nil {
		return err
	}

	p.accessor.Remove(agg)
	if _, err := p.db.SaveChanges(ctx); err != nil {
		return err
	}
	p.log.Debug("aggregate deleted", zap.Any("id", id))
	return nil
}

// Save commits whatever changes are tracked on the Database.
func (p *Provider[T, K]) Save(ctx context.Context) error {
	_, err := p.db.SaveChanges(ctx)
	return err
}

// All returns a snapshot of every stored aggregate, ordered by identifier.
func (p *Provider[T, K]) All(ctx context.Context) (items []T, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "all")
	defer func() { err = endSpan(span, err) }()

	return p.accessor.Snapshot(ctx)
}

// Seq materializes a snapshot and iterates over it. Later writes are not
// visible to the returned sequence.
func (p *Provider[T, K]) Seq(ctx context.Context) (iter.Seq[T], error) {
	items, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Values(items), nil
}

func (p *Provider[T, K]) FindBy(ctx context.Context, s Spec) (items []T, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "find_by")
	defer func() { err = endSpan(span, err) }()

	if err := whereSpec(p.accessor.query(ctx), s).Order(p.accessor.pkOrder()).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (p *Provider[T, K]) ExistsBy(ctx context.Context, s Spec) (bool, error) {
	count, err := p.CountBy(ctx, s)
	return count > 0, err
}

func (p *Provider[T, K]) CountBy(ctx context.Context, s Spec) (count int64, err error) {
	ctx, span := startSpan(ctx, p.db.tracer, p.accessor.name, "count_by")
	defer func() { err = endSpan(span, err) }()

	err = whereSpec(p.accessor.base(ctx), s).Count(&count).Error
	return count, err
}

func (p *Provider[T, K]) Query(ctx context.Context) *Query[T] {
	return newQuery[T](ctx, p.accessor)
}

func (p *Provider[T, K]) requireExisting(ctx context.Context, id K) error {
	exists, err := p.accessor.Contains(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %v", ErrNotFound, p.accessor.name, id)
	}
	return nil
}
