package repository

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql name modernc.org/sqlite registers under.
const driverName = "sqlite"

// Database owns one SQLite data file: its ORM handle, the registry of
// aggregate accessors and the changes tracked since the last commit.
type Database struct {
	path       string
	db         *gorm.DB
	log        *zap.Logger
	tracer     trace.Tracer
	migrations []Migration

	mu          sync.RWMutex
	accessors   map[string]registration
	order       []string
	schemaCache sync.Map

	changes changeSet
}

type registration struct {
	accessor any
	model    any
	table    string
}

// Open connects to the data file described by cfg. The schema is not touched
// until EnsureCreated runs.
func Open(cfg Config, opts ...Option) (*Database, error) {
	o := buildOptions(opts)

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: driverName, DSN: dsn}), &gorm.Config{
		Logger:                 newGormLogger(o.log, cfg.gormLogLevel(), cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if strings.TrimSpace(cfg.Path) == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	log := o.log.Named("repository")
	log.Debug("database opened", zap.String("path", cfg.Path))

	return &Database{
		path:       cfg.Path,
		db:         gdb,
		log:        log,
		tracer:     o.tracer.Tracer(tracerName),
		migrations: o.migrations,
		accessors:  make(map[string]registration),
	}, nil
}

func (d *Database) Path() string { return d.path }

// DB exposes the underlying ORM handle.
func (d *Database) DB() *gorm.DB { return d.db }

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Register adds the accessor for one aggregate type to db's registry. It is
// meant to run once per aggregate type while the application starts.
func Register[T Aggregate[K], K cmp.Ordered](d *Database, info AggregateInfo) error {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return fmt.Errorf("register aggregate: name is required")
	}

	model := info.Model
	if model == nil {
		model = newModel[T]()
	}
	if model == nil {
		return fmt.Errorf("register aggregate %s: model is required", name)
	}

	sch, err := schema.Parse(model, &d.schemaCache, d.db.NamingStrategy)
	if err != nil {
		return fmt.Errorf("register aggregate %s: %w", name, err)
	}
	if sch.PrioritizedPrimaryField == nil {
		return fmt.Errorf("%w: %s", ErrMissingPrimaryKey, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.accessors[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	acc := &Accessor[T, K]{
		name:    name,
		model:   model,
		table:   sch.Table,
		pk:      sch.PrioritizedPrimaryField.DBName,
		preload: append([]string(nil), info.Preload...),
		owner:   d,
	}
	d.accessors[name] = registration{accessor: acc, model: model, table: sch.Table}
	d.order = append(d.order, name)

	d.log.Debug("aggregate registered",
		zap.String("aggregate", name),
		zap.String("table", acc.table),
		zap.String("primary_key", acc.pk),
	)
	return nil
}

// AccessorFor returns the accessor registered under info.Name.
func AccessorFor[T Aggregate[K], K cmp.Ordered](d *Database, info AggregateInfo) (*Accessor[T, K], error) {
	name := strings.TrimSpace(info.Name)

	d.mu.RLock()
	reg, ok := d.accessors[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	acc, ok := reg.accessor.(*Accessor[T, K])
	if !ok {
		return nil, fmt.Errorf("%w: %s is registered for %T", ErrNotRegistered, name, reg.model)
	}
	return acc, nil
}

// EnsureCreated creates the tables of every registered aggregate that does
// not have one yet and applies pending migrations. It reports whether any
// aggregate table was created and is safe to call repeatedly.
func (d *Database) EnsureCreated(ctx context.Context) (created bool, err error) {
	ctx, span := startSpan(ctx, d.tracer, "", "ensure_created")
	defer func() { err = endSpan(span, err) }()

	d.mu.RLock()
	models := make([]any, 0, len(d.order))
	var missing []string
	migrator := d.db.WithContext(ctx).Migrator()
	for _, name := range d.order {
		reg := d.accessors[name]
		models = append(models, reg.model)
		if !migrator.HasTable(reg.table) {
			missing = append(missing, reg.table)
		}
	}
	d.mu.RUnlock()

	if len(models) > 0 {
		if err := d.db.WithContext(ctx).AutoMigrate(models...); err != nil {
			return false, fmt.Errorf("create schema: %w", err)
		}
	}
	if len(missing) > 0 {
		d.log.Info("schema created", zap.Strings("tables", missing))
	}

	if _, err := applyMigrations(ctx, d.db, d.log, d.migrations); err != nil {
		return false, err
	}
	return len(missing) > 0, nil
}

// SaveChanges commits every tracked change in one transaction and returns
// the number of affected rows. When the commit fails the changes stay
// tracked and the engine error is returned as is.
func (d *Database) SaveChanges(ctx context.Context) (affected int, err error) {
	ctx, span := startSpan(ctx, d.tracer, "", "save_changes")
	defer func() { err = endSpan(span, err) }()

	pending := d.changes.take()
	if len(pending) == 0 {
		return 0, nil
	}

	var rows int64
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range pending {
			res := c.apply(tx)
			if res.Error != nil {
				d.log.Warn("change rejected",
					zap.String("aggregate", c.aggregate),
					zap.String("op", string(c.op)),
					zap.Error(res.Error),
				)
				return res.Error
			}
			rows += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		d.changes.restore(pending)
		return 0, err
	}

	span.SetAttributes(attrAffected.Int64(rows))
	d.log.Debug("changes saved", zap.Int("changes", len(pending)), zap.Int64("rows", rows))
	return int(rows), nil
}

// Pending reports how many tracked changes wait for SaveChanges.
func (d *Database) Pending() int { return d.changes.len() }

// DiscardChanges drops every tracked change without touching the store.
func (d *Database) DiscardChanges() int {
	return len(d.changes.take())
}

func (d *Database) track(c change) { d.changes.add(c) }

func newModel[T any]() any {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil
	}
	return reflect.New(t.Elem()).Interface()
}
