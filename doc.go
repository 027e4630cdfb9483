// Package repository persists aggregates in a single SQLite data file.
//
// A Database owns the file and a registry of accessors, one per aggregate
// type. A Provider is the repository of one aggregate type: it reads through
// its accessor and commits each mutation with Database.SaveChanges, so every
// Create, Update or Delete is durable when it returns.
//
//	db, err := repository.Open(cfg, repository.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	if err := repository.Register[*Account, int64](db, repository.AggregateInfo{Name: "account"}); err != nil {
//		return err
//	}
//	accounts, err := repository.NewProvider[*Account, int64](ctx, db, repository.AggregateInfo{Name: "account"})
//
// Providers over the same Database share its tracked changes. The engine
// serializes writers; callers that need stronger guarantees than
// "last write wins" coordinate outside the package.
package repository
