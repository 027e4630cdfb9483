package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"gorm.io/gorm"
)

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Path: "  "}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()
	db, err := Open(Config{Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Register[*account, int64](db, accountInfo()); err != nil {
		t.Fatalf("register: %v", err)
	}
	p := newAccountProvider(t, db)
	seedAccounts(t, p, &account{ID: 1, Owner: "memory"})

	if ok, err := p.ExistsByID(context.Background(), 1); err != nil || !ok {
		t.Fatalf("expected account in memory database, got %v, %v", ok, err)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	if err := Register[*account, int64](db, accountInfo()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name:    "duplicate name",
			call:    func() error { return Register[*account, int64](db, accountInfo()) },
			wantErr: ErrAlreadyRegistered,
		},
		{
			name:    "no primary key",
			call:    func() error { return Register[*keyless, string](db, AggregateInfo{Name: "keyless"}) },
			wantErr: ErrMissingPrimaryKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := Register[*account, int64](db, AggregateInfo{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestAccessorFor(t *testing.T) {
	t.Parallel()
	db := newFixtureDatabase(t)

	acc, err := AccessorFor[*account, int64](db, accountInfo())
	if err != nil {
		t.Fatalf("accessor: %v", err)
	}
	if acc.Name() != "account" || acc.Table() != "accounts" || acc.PrimaryKey() != "id" {
		t.Errorf("unexpected accessor: name=%s table=%s pk=%s", acc.Name(), acc.Table(), acc.PrimaryKey())
	}

	again, err := AccessorFor[*account, int64](db, accountInfo())
	if err != nil {
		t.Fatalf("accessor: %v", err)
	}
	if again != acc {
		t.Error("expected the same accessor instance for the lifetime of the database")
	}

	if _, err := AccessorFor[*account, int64](db, AggregateInfo{Name: "missing"}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
	if _, err := AccessorFor[*customer, string](db, accountInfo()); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered for mismatched type, got %v", err)
	}
}

func TestEnsureCreated_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newFixtureDatabase(t)

	created, err := db.EnsureCreated(ctx)
	if err != nil {
		t.Fatalf("ensure created: %v", err)
	}
	if !created {
		t.Error("expected first call to create the schema")
	}
	if _, err := os.Stat(db.Path()); err != nil {
		t.Errorf("expected data file: %v", err)
	}

	created, err = db.EnsureCreated(ctx)
	if err != nil {
		t.Fatalf("ensure created: %v", err)
	}
	if created {
		t.Error("expected second call to be a no-op")
	}

	for _, table := range []string{"accounts", "customers", "orders", "order_lines", migrationTable} {
		if !db.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestEnsureCreated_AppliesMigrationsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	runs := 0
	db := newTestDatabase(t, WithMigrations(Migration{
		Name: "0001_audit",
		Up: func(tx *gorm.DB) error {
			runs++
			return tx.Exec("CREATE TABLE audit (id INTEGER PRIMARY KEY)").Error
		},
	}))

	for range 3 {
		if _, err := db.EnsureCreated(ctx); err != nil {
			t.Fatalf("ensure created: %v", err)
		}
	}
	if runs != 1 {
		t.Errorf("expected migration to run once, ran %d times", runs)
	}

	var applied int64
	if err := db.DB().Table(migrationTable).Where("name = ?", "0001_audit").Count(&applied).Error; err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 recorded migration, got %d", applied)
	}
}

func TestEnsureCreated_FailingMigration(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	db := newTestDatabase(t, WithMigrations(Migration{
		Name: "0001_broken",
		Up:   func(*gorm.DB) error { return boom },
	}))

	if _, err := db.EnsureCreated(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected migration error, got %v", err)
	}
}

func TestSaveChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newFixtureDatabase(t)
	if _, err := db.EnsureCreated(ctx); err != nil {
		t.Fatalf("ensure created: %v", err)
	}
	acc, err := AccessorFor[*account, int64](db, accountInfo())
	if err != nil {
		t.Fatalf("accessor: %v", err)
	}

	n, err := db.SaveChanges(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op save, got %d, %v", n, err)
	}

	acc.Add(&account{ID: 1, Owner: "a"})
	acc.Add(&account{ID: 2, Owner: "b"})
	if db.Pending() != 2 {
		t.Fatalf("expected 2 pending changes, got %d", db.Pending())
	}

	n, err = db.SaveChanges(ctx)
	if err != nil {
		t.Fatalf("save changes: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 affected rows, got %d", n)
	}
	if db.Pending() != 0 {
		t.Errorf("expected no pending changes, got %d", db.Pending())
	}

	acc.Attach(&account{ID: 1, Owner: "a2"})
	acc.Remove(&account{ID: 2})
	n, err = db.SaveChanges(ctx)
	if err != nil {
		t.Fatalf("save changes: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 affected rows, got %d", n)
	}

	got, ok, err := acc.Find(ctx, 1)
	if err != nil || !ok || got.Owner != "a2" {
		t.Errorf("expected updated account, got %+v, %v, %v", got, ok, err)
	}
	if ok, _ := acc.Contains(ctx, 2); ok {
		t.Error("expected account 2 removed")
	}
}

func TestSaveChanges_FailureKeepsChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newFixtureDatabase(t)
	p := newAccountProvider(t, db)
	seedAccounts(t, p, &account{ID: 1, Owner: "a"})

	// Bypass the provider's existence check to hit the primary key constraint.
	p.Accessor().Add(&account{ID: 1, Owner: "dup"})
	p.Accessor().Add(&account{ID: 2, Owner: "b"})

	if _, err := db.SaveChanges(ctx); err == nil {
		t.Fatal("expected constraint violation")
	}
	if db.Pending() != 2 {
		t.Fatalf("expected failed changes to stay tracked, got %d", db.Pending())
	}
	if ok, _ := p.ExistsByID(ctx, 2); ok {
		t.Error("expected the whole commit to roll back")
	}

	if n := db.DiscardChanges(); n != 2 {
		t.Errorf("expected 2 discarded changes, got %d", n)
	}
	if db.Pending() != 0 {
		t.Errorf("expected no pending changes, got %d", db.Pending())
	}
}
