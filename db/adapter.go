package db

import (
	"fmt"

	"github.com/ryanroundhouse/punk-mud-sub000/config"
	dbmysql "github.com/ryanroundhouse/punk-mud-sub000/db/mysql"
	dbsqlite "github.com/ryanroundhouse/punk-mud-sub000/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
	ModeMemory = "memory"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	case ModeMemory:
		return dbsqlite.OpenMemory()
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
