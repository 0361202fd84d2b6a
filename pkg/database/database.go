package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

var (
	DB   *gorm.DB
	once sync.Once
)

// Connect opens the store named by databaseURL once per process.
// "sqlite:<path>" or a path ending in ".db" selects the embedded store,
// anything else is handed to the postgres driver. An empty URL is built
// from the DB_* variables.
func Connect(databaseURL string) (*gorm.DB, error) {
	var err error
	once.Do(func() {
		if path, ok := sqlitePath(databaseURL); ok {
			DB, err = OpenSQLite(path, &gorm.Config{})
			if err == nil {
				log.Printf("🗄️ Using embedded SQLite store at %s", path)
			}
			return
		}

		dsn := databaseURL
		if dsn == "" {
			dsn = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
				valueOrDefault("DB_HOST", "localhost"),
				valueOrDefault("DB_USER", "postgres"),
				os.Getenv("DB_PASS"),
				valueOrDefault("DB_NAME", "kmbp_rating"),
				valueOrDefault("DB_PORT", "5432"),
			)
		}

		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			err = fmt.Errorf("failed to connect database: %w", err)
		}
	})

	return DB, err
}

// OpenSQLite opens a pure-Go SQLite database with WAL enabled and a single writer connection.
func OpenSQLite(path string, config *gorm.Config) (*gorm.DB, error) {
	if config == nil {
		config = &gorm.Config{}
	}
	if config.Logger == nil {
		config.Logger = logger.Default.LogMode(logger.Silent)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA synchronous = NORMAL;").Error; err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	// SQLite only supports one writer at a time
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func sqlitePath(databaseURL string) (string, bool) {
	if strings.HasPrefix(databaseURL, "sqlite:") {
		return strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite:"), "//"), true
	}
	if strings.HasSuffix(databaseURL, ".db") {
		return databaseURL, true
	}
	return "", false
}

func valueOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
