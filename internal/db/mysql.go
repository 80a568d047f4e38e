package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the production Store backed by the LIMS serology
// MySQL database.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore opens a connection to the serology database and
// verifies it. The DSN format is
// user:password@tcp(host:3306)/serology?parseTime=true; build it from
// the environment with DSNFromEnv.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store := &MySQLStore{sqlStore{db: db}}
	if err := store.createTables(ctx, "BIGINT AUTO_INCREMENT PRIMARY KEY"); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
