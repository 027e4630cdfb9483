package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type account struct {
	ID      int64 `gorm:"primaryKey"`
	Owner   string
	Balance int64
	Active  bool
}

func (a *account) AggregateID() int64 { return a.ID }

type customer struct {
	ID    string `gorm:"primaryKey"`
	Name  string
	Email string
}

func (c *customer) AggregateID() string { return c.ID }

type order struct {
	ID    int64 `gorm:"primaryKey"`
	Ref   string
	Meta  datatypes.JSON
	Lines []orderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *order) AggregateID() int64 { return o.ID }

type orderLine struct {
	ID      int64 `gorm:"primaryKey"`
	OrderID int64 `gorm:"index"`
	SKU     string
	Qty     int
}

type keyless struct {
	Name string
}

func (k *keyless) AggregateID() string { return k.Name }

func accountInfo() AggregateInfo {
	return AggregateInfo{Name: "account", Model: &account{}}
}

func customerInfo() AggregateInfo {
	return AggregateInfo{Name: "customer"}
}

func orderInfo() AggregateInfo {
	return AggregateInfo{Name: "order", Model: &order{}, Preload: []string{"Lines"}}
}

var orderLinesMigration = Migration{
	Name: "0001_order_lines",
	Up: func(tx *gorm.DB) error {
		return tx.AutoMigrate(&orderLine{})
	},
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Path:        filepath.Join(t.TempDir(), "repository.db"),
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		ForeignKeys: true,
		LogLevel:    "silent",
	}
}

func newTestDatabase(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db, err := Open(testConfig(t), opts...)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newFixtureDatabase registers the account, customer and order aggregates.
func newFixtureDatabase(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db := newTestDatabase(t, append(opts, WithMigrations(orderLinesMigration))...)
	if err := Register[*account, int64](db, accountInfo()); err != nil {
		t.Fatalf("register account: %v", err)
	}
	if err := Register[*customer, string](db, customerInfo()); err != nil {
		t.Fatalf("register customer: %v", err)
	}
	if err := Register[*order, int64](db, orderInfo()); err != nil {
		t.Fatalf("register order: %v", err)
	}
	return db
}

func newAccountProvider(t *testing.T, db *Database) *Provider[*account, int64] {
	t.Helper()
	p, err := NewProvider[*account, int64](context.Background(), db, accountInfo())
	if err != nil {
		t.Fatalf("new account provider: %v", err)
	}
	return p
}

func newCustomerProvider(t *testing.T, db *Database) *Provider[*customer, string] {
	t.Helper()
	p, err := NewProvider[*customer, string](context.Background(), db, customerInfo())
	if err != nil {
		t.Fatalf("new customer provider: %v", err)
	}
	return p
}

func newOrderProvider(t *testing.T, db *Database) *Provider[*order, int64] {
	t.Helper()
	p, err := NewProvider[*order, int64](context.Background(), db, orderInfo())
	if err != nil {
		t.Fatalf("new order provider: %v", err)
	}
	return p
}

func seedAccounts(t *testing.T, p *Provider[*account, int64], accounts ...*account) {
	t.Helper()
	for _, a := range accounts {
		if err := p.Create(context.Background(), a); err != nil {
			t.Fatalf("seed account %d: %v", a.ID, err)
		}
	}
}

func incrementID(id int64) int64 { return id + 1 }
