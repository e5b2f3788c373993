package chain

import (
	"fmt"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/server/models"
)

// ValidateChain verifies the structural integrity of an ordered batch of
// records belonging to one user. The caller guarantees creation order
// (sorted by timestamp, tie-broken by id).
//
// Checks performed, all of them, on every record:
//   - duplicate transaction hashes / nonces within the batch (the first
//     occurrence is kept, later ones are flagged)
//   - genesis anchor: the first record must link to the well-known genesis
//     hash, or to lastSyncedHash when the chain has already synced
//   - link continuity between consecutive records
//   - hash recomputation from the record's own fields
//   - non-decreasing timestamps
//
// lastSyncedHash is empty for a chain that has never synced.
func ValidateChain(userID string, lastSyncedHash string, records []*models.OfflineTransactionRecord) ChainValidationResult {

	result := ChainValidationResult{}

	if len(records) == 0 {
		result.Valid = true
		return result
	}

	addError := func(e ChainError) {
		result.Errors = append(result.Errors, e)
	}

	seenHash := make(map[string]int, len(records))
	seenNonce := make(map[string]int, len(records))

	for i, rec := range records {

		if first, ok := seenHash[rec.TransactionHash]; ok {
			addError(ChainError{
				Index:         i,
				TransactionID: rec.ID,
				Code:          CodeDuplicateHash,
				Message:       fmt.Sprintf("transaction hash already used at index %d", first),
				Actual:        rec.TransactionHash,
			})
		} else {
			seenHash[rec.TransactionHash] = i
		}

		if first, ok := seenNonce[rec.Nonce]; ok {
			addError(ChainError{
				Index:         i,
				TransactionID: rec.ID,
				Code:          CodeDuplicateNonce,
				Message:       fmt.Sprintf("nonce already used at index %d", first),
				Actual:        rec.Nonce,
			})
		} else {
			seenNonce[rec.Nonce] = i
		}

		if i == 0 {
			expected := common.GenesisHash
			if lastSyncedHash != "" {
				expected = lastSyncedHash
			}
			if rec.PreviousHash != expected {
				addError(ChainError{
					Index:         0,
					TransactionID: rec.ID,
					Code:          CodeInvalidGenesis,
					Message:       "first record does not anchor to the chain head",
					Expected:      expected,
					Actual:        rec.PreviousHash,
				})
			}
		} else {
			prev := records[i-1]

			if rec.PreviousHash != prev.TransactionHash {
				addError(ChainError{
					Index:         i,
					TransactionID: rec.ID,
					Code:          CodeChainBroken,
					Message:       "previous hash does not match preceding record",
					Expected:      prev.TransactionHash,
					Actual:        rec.PreviousHash,
				})
			}

			if rec.Timestamp.Before(prev.Timestamp) {
				addError(ChainError{
					Index:         i,
					TransactionID: rec.ID,
					Code:          CodeInvalidChronology,
					Message:       "timestamp precedes the preceding record",
					Expected:      prev.CanonicalTimestamp(),
					Actual:        rec.CanonicalTimestamp(),
				})
			}
		}

		if computed := rec.ComputeHash(); computed != rec.TransactionHash {
			addError(ChainError{
				Index:         i,
				TransactionID: rec.ID,
				Code:          CodeInvalidHash,
				Message:       "stored hash does not match recomputed hash",
				Expected:      computed,
				Actual:        rec.TransactionHash,
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	result.InvalidCount = len(result.ImplicatedIndexes())
	result.ValidCount = len(records) - result.InvalidCount

	return result
}
