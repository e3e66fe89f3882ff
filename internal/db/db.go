package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// commandLockKey is the advisory lock taken for the duration of each
// ingestion command so two commands never run against the same store at
// once (operators sequence commands; the lock enforces it).
const commandLockKey = 774401

// Config holds the connection settings assembled from the environment.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
	Verbose  bool
}

// ConfigFromEnv reads the POSTGRES_* variables the deployment provides.
// Each missing required variable is its own error so operators see exactly
// what to fix.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		Database: os.Getenv("POSTGRES_DB"),
	}
	if cfg.User == "" {
		return cfg, fmt.Errorf("missing username (env var POSTGRES_USER)")
	}
	if cfg.Password == "" {
		return cfg, fmt.Errorf("missing password (env var POSTGRES_PASSWORD)")
	}
	if cfg.Host == "" {
		return cfg, fmt.Errorf("missing host (env var POSTGRES_HOST)")
	}
	if cfg.Database == "" {
		return cfg, fmt.Errorf("missing database name (env var POSTGRES_DB)")
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	return cfg, nil
}

// DSN renders the config as a keyword/value connection string for pgx.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// DB is the persistence handle passed into each command. It owns the
// sql.DB pool (pgx stdlib driver) and the gorm session built on top of it.
type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB

	lockConn *sql.Conn
}

// Connect opens the pool and wraps it in gorm. Pool sized for a single
// sequential batch command.
func Connect(cfg Config) (*DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logLevel := logger.Warn
	if cfg.Verbose {
		logLevel = logger.Info
	}
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm session: %w", err)
	}

	return &DB{Gorm: gdb, SQL: sqlDB}, nil
}

// AcquireCommandLock takes the store-wide advisory lock on a dedicated
// connection. It blocks until any other running command releases it.
func (d *DB) AcquireCommandLock(ctx context.Context) error {
	conn, err := d.SQL.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, commandLockKey); err != nil {
		conn.Close()
		return fmt.Errorf("advisory lock: %w", err)
	}
	d.lockConn = conn
	return nil
}

// Close releases the advisory lock (if held) and the pool.
func (d *DB) Close() error {
	if d.lockConn != nil {
		_, _ = d.lockConn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, commandLockKey)
		_ = d.lockConn.Close()
		d.lockConn = nil
	}
	return d.SQL.Close()
}
