package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the local sqlite cache of the appointment history.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("База данных инициализирована")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	if err := dropUnscopedCache(db); err != nil {
		return err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
            session_id INTEGER NOT NULL,
            id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            service_name TEXT NOT NULL,
            service_duration INTEGER NOT NULL DEFAULT 0,
            service_online BOOLEAN NOT NULL DEFAULT 0,
            service_in_person BOOLEAN NOT NULL DEFAULT 0,
            staff_id TEXT NOT NULL,
            staff_name TEXT NOT NULL,
            start_at DATETIME NOT NULL,
            end_at DATETIME NOT NULL,
            time_zone TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            comments TEXT,
            meeting_link TEXT,
            created_at DATETIME,
            PRIMARY KEY (session_id, id)
        )`,
		// Строка на сессию: когда её кэш последний раз синхронизировался и не устарел ли он.
		// Нет строки: кэша для сессии ещё нет.
		`CREATE TABLE IF NOT EXISTS cache_state (
            session_id INTEGER PRIMARY KEY,
            refreshed_at DATETIME,
            stale BOOLEAN NOT NULL DEFAULT 1
        )`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_session_start ON appointments(session_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// dropUnscopedCache removes cache tables from files created before the history
// was keyed by session. The cache is rebuilt from the backend on the next read.
func dropUnscopedCache(db *sql.DB) error {
	var tables, scoped int
	err := db.QueryRow(`SELECT
            (SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'appointments'),
            (SELECT COUNT(*) FROM pragma_table_info('appointments') WHERE name = 'session_id')`).Scan(&tables, &scoped)
	if err != nil {
		return fmt.Errorf("inspect appointments table: %w", err)
	}
	if tables == 0 || scoped > 0 {
		return nil
	}
	for _, query := range []string{`DROP TABLE appointments`, `DROP TABLE IF EXISTS cache_state`} {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}
