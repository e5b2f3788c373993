// Package client initializes the wallet agent's local SQLite store and vends
// the repositories bound to it.
package client

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/offpay/chainsync/internal/client/migrations"
	"github.com/offpay/chainsync/internal/client/repositories/records"
	"github.com/offpay/chainsync/internal/client/repositories/wallet"
)

type Repositories struct {
	Records records.Repository
	Wallet  wallet.Repository
	DB      *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Records: records.NewSQLiteRepository(db),
		Wallet:  wallet.NewSQLiteRepository(db),
		DB:      db,
	}, nil
}
