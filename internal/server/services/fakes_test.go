package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/chainmeta"
	"github.com/offpay/chainsync/internal/server/repositories/conflicts"
	"github.com/offpay/chainsync/internal/server/repositories/devices"
	"github.com/offpay/chainsync/internal/server/repositories/ledger"
	"github.com/offpay/chainsync/internal/server/repositories/operators"
	"github.com/offpay/chainsync/internal/server/repositories/records"
)

// In-memory fakes over the repository interfaces. The sqlite handle opened
// by newSvcDB only provides transaction mechanics for dbx.WithTx; the fakes
// never touch SQL.

var svcDBSeq atomic.Int64

func newSvcDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_tests_%d?mode=memory&cache=shared", svcDBSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeRecords struct {
	mu     sync.Mutex
	byID   map[string]*models.OfflineTransactionRecord
	nonces map[string]string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		byID:   make(map[string]*models.OfflineTransactionRecord),
		nonces: make(map[string]string),
	}
}

func (f *fakeRecords) Upsert(_ context.Context, rec *models.OfflineTransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[rec.ID]; ok {
		return nil
	}
	cp := *rec
	f.byID[rec.ID] = &cp
	return nil
}

func (f *fakeRecords) GetByID(_ context.Context, id string) (*models.OfflineTransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) SelectPending(_ context.Context, userID string) ([]*models.OfflineTransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OfflineTransactionRecord
	for _, rec := range f.byID {
		if rec.SenderID == userID && rec.SyncStatus == models.SyncStatusPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (f *fakeRecords) MarkSynced(_ context.Context, id, ledgerRef string, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	rec.SyncStatus = models.SyncStatusSynced
	rec.LedgerRef = ledgerRef
	t := syncedAt
	rec.SyncedAt = &t
	rec.LastSyncError = ""
	return nil
}

func (f *fakeRecords) MarkFailed(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	rec.SyncStatus = models.SyncStatusFailed
	rec.SyncAttempts++
	rec.LastSyncError = reason
	return nil
}

func (f *fakeRecords) MarkConflict(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	rec.SyncStatus = models.SyncStatusConflict
	rec.SyncAttempts++
	return nil
}

func (f *fakeRecords) ExistsByHash(_ context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byID {
		if rec.TransactionHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRecords) ExistsByNonce(_ context.Context, nonce string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nonces[nonce]
	return ok, nil
}

func (f *fakeRecords) ReserveNonce(_ context.Context, nonce, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nonces[nonce]; ok {
		return common.ErrorAlreadyExists
	}
	f.nonces[nonce] = txHash
	return nil
}

type fakeChainMeta struct {
	mu         sync.Mutex
	byUser     map[string]*models.ChainMetadata
	failBudget int // Update returns ErrVersionConflict this many times
}

func newFakeChainMeta() *fakeChainMeta {
	return &fakeChainMeta{byUser: make(map[string]*models.ChainMetadata)}
}

func (f *fakeChainMeta) Get(_ context.Context, userID string) (*models.ChainMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *meta
	return &cp, nil
}

func (f *fakeChainMeta) Create(_ context.Context, meta *models.ChainMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta.Version = 1
	cp := *meta
	f.byUser[meta.UserID] = &cp
	return nil
}

func (f *fakeChainMeta) Update(_ context.Context, meta *models.ChainMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBudget > 0 {
		f.failBudget--
		return common.ErrVersionConflict
	}
	stored, ok := f.byUser[meta.UserID]
	if !ok || stored.Version != meta.Version {
		return common.ErrVersionConflict
	}
	meta.Version++
	cp := *meta
	f.byUser[meta.UserID] = &cp
	return nil
}

type fakeConflicts struct {
	mu   sync.Mutex
	byID map[string]*models.SyncConflict
}

func newFakeConflicts() *fakeConflicts {
	return &fakeConflicts{byID: make(map[string]*models.SyncConflict)}
}

func (f *fakeConflicts) Create(_ context.Context, c *models.SyncConflict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConflicts) Update(_ context.Context, c *models.SyncConflict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[c.ID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.Resolution = c.Resolution
	stored.SuggestedResolution = c.SuggestedResolution
	stored.ResolvedAt = c.ResolvedAt
	return nil
}

func (f *fakeConflicts) GetByID(_ context.Context, id string) (*models.SyncConflict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConflicts) SelectByUser(_ context.Context, userID string, onlyOpen bool) ([]*models.SyncConflict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SyncConflict
	for _, c := range f.byID {
		if c.UserID != userID {
			continue
		}
		if onlyOpen &&
			c.Resolution != models.ResolutionUnresolved &&
			c.Resolution != models.ResolutionPendingUser {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

type fakeDevices struct {
	mu     sync.Mutex
	byUser map[string]*models.Device
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{byUser: make(map[string]*models.Device)}
}

func (f *fakeDevices) Create(_ context.Context, d *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byUser[d.UserID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *d
	f.byUser[d.UserID] = &cp
	return nil
}

func (f *fakeDevices) GetByUser(_ context.Context, userID string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDevices) Revoke(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byUser[userID]
	if !ok {
		return common.ErrorNotFound
	}
	d.Revoked = true
	return nil
}

type fakeOperators struct {
	mu      sync.Mutex
	byLogin map[string]*models.Operator
}

func newFakeOperators() *fakeOperators {
	return &fakeOperators{byLogin: make(map[string]*models.Operator)}
}

func (f *fakeOperators) Create(_ context.Context, op *models.Operator) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byLogin[op.Login]; ok {
		return nil, fmt.Errorf("db error: duplicate login")
	}
	op.CreatedAt = time.Now().UTC()
	cp := *op
	f.byLogin[op.Login] = &cp
	return op, nil
}

func (f *fakeOperators) GetByLogin(_ context.Context, login string) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.byLogin[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *op
	return &cp, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	entries  map[string]*models.LedgerEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]decimal.Decimal),
		entries:  make(map[string]*models.LedgerEntry),
	}
}

func (f *fakeLedger) GetAccount(_ context.Context, userID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		b = decimal.Zero
	}
	return &models.Account{UserID: userID, Balance: b}, nil
}

func (f *fakeLedger) AdjustBalance(_ context.Context, userID string, delta decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = f.balances[userID].Add(delta)
	return nil
}

func (f *fakeLedger) InsertEntry(_ context.Context, e *models.LedgerEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.TxHash]; ok {
		return false, nil
	}
	cp := *e
	f.entries[e.TxHash] = &cp
	return true, nil
}

func (f *fakeLedger) GetEntryByTxHash(_ context.Context, txHash string) (*models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[txHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *e
	return &cp, nil
}

type fakeRM struct {
	rec  *fakeRecords
	meta *fakeChainMeta
	conf *fakeConflicts
	dev  *fakeDevices
	op   *fakeOperators
	led  *fakeLedger
}

func newFakeRM() *fakeRM {
	return &fakeRM{
		rec:  newFakeRecords(),
		meta: newFakeChainMeta(),
		conf: newFakeConflicts(),
		dev:  newFakeDevices(),
		op:   newFakeOperators(),
		led:  newFakeLedger(),
	}
}

func (m *fakeRM) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRM) Records(dbx.DBTX) records.Repository                { return m.rec }
func (m *fakeRM) ChainMeta(dbx.DBTX) chainmeta.Repository            { return m.meta }
func (m *fakeRM) Conflicts(dbx.DBTX) conflicts.Repository            { return m.conf }
func (m *fakeRM) Devices(dbx.DBTX) devices.Repository                { return m.dev }
func (m *fakeRM) Operators(dbx.DBTX) operators.Repository            { return m.op }
func (m *fakeRM) Ledger(dbx.DBTX) ledger.Repository                  { return m.led }
