package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationTable = "schema_migrations"

// Migration is a named schema change applied at most once per data file.
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

type schemaMigration struct {
	Name      string `gorm:"primaryKey"`
	AppliedAt int64  `gorm:"not null"`
}

func (schemaMigration) TableName() string { return migrationTable }

func applyMigrations(ctx context.Context, db *gorm.DB, log *zap.Logger, migrations []Migration) (int, error) {
	if len(migrations) == 0 {
		return 0, nil
	}
	if err := db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return 0, fmt.Errorf("ensure migration table: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		name := strings.TrimSpace(m.Name)
		if name == "" || m.Up == nil {
			return applied, fmt.Errorf("migration %q: name and up func are required", m.Name)
		}

		var count int64
		if err := db.WithContext(ctx).Model(&schemaMigration{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return applied, fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil && !isAlreadyExistsError(err) {
				return err
			}
			return tx.Create(&schemaMigration{Name: name, AppliedAt: time.Now().UTC().UnixMilli()}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		log.Info("migration applied", zap.String("migration", name))
		applied++
	}
	return applied, nil
}

func isAlreadyExistsError(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
