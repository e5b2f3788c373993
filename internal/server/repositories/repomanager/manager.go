package repomanager

import (
	"context"
	"database/sql"

	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/repositories/chainmeta"
	"github.com/offpay/chainsync/internal/server/repositories/conflicts"
	"github.com/offpay/chainsync/internal/server/repositories/devices"
	"github.com/offpay/chainsync/internal/server/repositories/ledger"
	"github.com/offpay/chainsync/internal/server/repositories/operators"
	"github.com/offpay/chainsync/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	ChainMeta(db dbx.DBTX) chainmeta.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Devices(db dbx.DBTX) devices.Repository
	Operators(db dbx.DBTX) operators.Repository
	Ledger(db dbx.DBTX) ledger.Repository
}
