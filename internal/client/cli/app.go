// Package cli is the wallet agent's command-line surface. It wires the local
// SQLite store, the REST client and the wallet service, and dispatches the
// init/pay/list/sync subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/client/api"
	"github.com/offpay/chainsync/internal/client/client"
	"github.com/offpay/chainsync/internal/client/config"
	"github.com/offpay/chainsync/internal/client/models"
	"github.com/offpay/chainsync/internal/client/services"
	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/logging"
)

type walletAPI interface {
	Init(ctx context.Context) (*models.WalletState, error)
	Pay(ctx context.Context, recipient string, amount decimal.Decimal, memo string) (*models.Record, error)
	List(ctx context.Context) ([]*models.Record, error)
	Sync(ctx context.Context) (*api.SyncReport, error)
}

type App struct {
	config *config.Config
	wallet walletAPI
	db     io.Closer
	out    io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user ID is required (set -u or user_id in the config file)")
	}

	ctx := context.Background()

	repos, err := client.InitDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	logger := logging.NewTextLogger(os.Stderr)
	ws := services.NewWalletService(cfg.UserID, api.New(cfg.ServerEndpointAddr), repos.Records, repos.Wallet, logger)

	return &App{config: cfg, wallet: ws, db: repos.DB, out: os.Stdout}, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run dispatches the first positional argument as a subcommand. Config flags
// (-a, -d, -u, -c) are consumed by config loading and ignored here.
func (a *App) Run(ctx context.Context, args []string) error {
	args = stripConfigFlags(args)
	if len(args) == 0 {
		a.usage()
		return fmt.Errorf("no command given")
	}

	switch cmd := args[0]; cmd {
	case "init":
		return a.runInit(ctx)
	case "pay":
		return a.runPay(ctx, args[1:])
	case "list":
		return a.runList(ctx)
	case "sync":
		return a.runSync(ctx)
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `usage: wallet [flags] <command>

commands:
  init    provision the wallet (keys, genesis anchor, device registration)
  pay     create an offline payment: pay -to <user> -amount <n> [-memo <text>]
  list    show local records and their sync status
  sync    submit pending records to the server`)
}

func (a *App) runInit(ctx context.Context) error {
	state, err := a.wallet.Init(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wallet ready for %s, chain head %s\n", state.UserID, shortHash(state.HeadHash))
	return nil
}

func (a *App) runPay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	fs.SetOutput(a.out)
	to := fs.String("to", "", "recipient user ID")
	amountStr := fs.String("amount", "", "payment amount")
	memo := fs.String("memo", "", "optional memo, stored encrypted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *to == "" || *amountStr == "" {
		return fmt.Errorf("pay requires -to and -amount")
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amountStr, err)
	}

	rec, err := a.wallet.Pay(ctx, *to, amount, *memo)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "recorded %s: %s -> %s, hash %s\n",
		rec.ID, rec.Amount.String(), rec.RecipientID, shortHash(rec.TransactionHash))
	return nil
}

func (a *App) runList(ctx context.Context) error {
	recs, err := a.wallet.List(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "no records")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRECIPIENT\tAMOUNT\tSTATUS\tHASH")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.RecipientID, rec.Amount.String(), rec.SyncStatus, shortHash(rec.TransactionHash))
	}
	return w.Flush()
}

func (a *App) runSync(ctx context.Context) error {
	report, err := a.wallet.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSyncInProgress):
		return fmt.Errorf("a sync for this user is already running, try again shortly")
	case errors.Is(err, common.ErrChainInvalidated):
		return fmt.Errorf("the server has frozen this chain pending repair, contact an operator")
	default:
		return err
	}

	fmt.Fprintf(a.out, "synced %d, conflicted %d, projected balance %s\n",
		report.Synced, report.Conflicted, report.ProjectedBalance.String())
	for _, ci := range report.Conflicts {
		fmt.Fprintf(a.out, "  conflict %s: %s (%s)\n", ci.TransactionID, ci.Type, ci.Resolution)
	}
	if !report.ChainValid {
		fmt.Fprintln(a.out, "warning: server reports the chain as broken, unsettled records stay pending")
	}
	return nil
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

// stripConfigFlags removes the config-owned flags and their values so the
// subcommand dispatch only sees positional arguments and its own flags.
func stripConfigFlags(args []string) []string {
	owned := map[string]bool{"-a": true, "-d": true, "-u": true, "-c": true, "-config": true}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if owned[args[i]] {
			i++ // skip the value too
			continue
		}
		out = append(out, args[i])
	}
	return out
}
