package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offpay/chainsync/internal/server/models"
)

func TestNewChainConflict_Mapping(t *testing.T) {
	rec := makeRecord(t, "u1", "u2", "10", testStart, "prev")

	tests := []struct {
		code         ErrorCode
		wantType     models.ConflictType
		wantPriority int
	}{
		{CodeDuplicateHash, models.ConflictDoubleSpend, models.PriorityFinancial},
		{CodeDuplicateNonce, models.ConflictDoubleSpend, models.PriorityFinancial},
		{CodeInvalidGenesis, models.ConflictChainBroken, models.PrioritySecurity},
		{CodeChainBroken, models.ConflictChainBroken, models.PrioritySecurity},
		{CodeInvalidHash, models.ConflictInvalidHash, models.PriorityFinancial},
		{CodeInvalidChronology, models.ConflictTimestampInvalid, models.PriorityDataQuality},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			c := NewChainConflict("u1", rec, ChainError{Code: tt.code, Expected: "e", Actual: "a"}, testStart)

			require.NotEmpty(t, c.ID)
			assert.Equal(t, rec.ID, c.TransactionID)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantPriority, c.Priority)
			assert.Equal(t, models.ResolutionUnresolved, c.Resolution)
			assert.NotEmpty(t, c.SuggestedResolution)
		})
	}
}

func TestNewChainConflict_CapturesHashes(t *testing.T) {
	rec := makeRecord(t, "u1", "u2", "10", testStart, "prev")
	c := NewChainConflict("u1", rec, ChainError{Code: CodeChainBroken, Expected: "exp", Actual: "act"}, testStart)

	assert.Equal(t, "exp", c.ExpectedPreviousHash)
	assert.Equal(t, "act", c.ActualPreviousHash)
	assert.True(t, c.SecurityRelevant())
}

func TestNewPayloadConflict_TimestampTiers(t *testing.T) {
	rec := makeRecord(t, "u1", "u2", "10", testStart, "prev")

	warn := NewPayloadConflict("u1", rec, Issue{Code: CodeTimestampInvalid}, true, testStart)
	assert.Equal(t, models.PriorityWarning, warn.Priority)

	hard := NewPayloadConflict("u1", rec, Issue{Code: CodeTimestampInvalid}, false, testStart)
	assert.Equal(t, models.PriorityDataQuality, hard.Priority)
}

func TestNewInsufficientFundsConflict(t *testing.T) {
	f := FlaggedRecord{
		Index:         1,
		TransactionID: "tx1",
		BalanceBefore: dec("2000"),
		BalanceAfter:  dec("-1000"),
		Reason:        "debit 3000 exceeds available balance 2000",
	}

	c := NewInsufficientFundsConflict("u1", f, testStart)

	assert.Equal(t, models.ConflictInsufficientFunds, c.Type)
	assert.Equal(t, models.PriorityFinancial, c.Priority)
	require.NotNil(t, c.ExpectedBalance)
	require.NotNil(t, c.ActualBalance)
	assert.True(t, c.ExpectedBalance.Equal(dec("2000")))
	assert.True(t, c.ActualBalance.Equal(dec("-1000")))
	assert.False(t, c.SecurityRelevant())
}
