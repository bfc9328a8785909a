package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/mborders/logmatic"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/logging"
	"github.com/filiksyos/ghostmrr/migrations"
)

type Store struct {
	DB     *gorm.DB
	Badges *BadgeRepository
	Audit  *AuditEventRepository
}

// NewStore connects to postgres. Without a DSN the store runs with no
// database and every repository call fails as storage unavailable.
func NewStore(cfg config.Config, log *logmatic.Logger) (*Store, error) {
	log = logging.Or(log)
	if cfg.PostgresDSN == "" {
		log.Warn("POSTGRES_DSN not set; badge storage is unavailable")
		return newStore(nil), nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newStore(gdb), nil
}

func newStore(gdb *gorm.DB) *Store {
	return &Store{
		DB:     gdb,
		Badges: NewBadgeRepository(gdb),
		Audit:  NewAuditEventRepository(gdb),
	}
}

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	if gdb == nil {
		return errDBUnavailable
	}
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		sqlBytes, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := gdb.WithContext(ctx).Exec(string(sqlBytes)).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
