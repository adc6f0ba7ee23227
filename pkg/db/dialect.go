package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/subscriber/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// sqliteParams makes writers queue on the database lock instead of failing
// with SQLITE_BUSY, and takes the write lock when a transfer transaction begins.
const sqliteParams = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch configFrom(cfg).Type {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// DSN renders the connection string for the configured driver.
func DSN(cfg config.Config) (string, error) {
	switch configFrom(cfg).Type {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&time_zone=%s",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
			url.QueryEscape("'+00:00'"),
		), nil
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC application_name=%s",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
			applicationName(cfg),
		), nil
	case "sqlite":
		name := strings.TrimSpace(cfg.DBName)
		if name == "" {
			name = "subscriber.db"
		}
		sep := "?"
		if strings.Contains(name, "?") {
			sep = "&"
		}
		return name + sep + sqliteParams, nil
	default:
		return "", fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

func applicationName(cfg config.Config) string {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		return "subscriber"
	}
	return strings.ReplaceAll(name, " ", "_")
}
