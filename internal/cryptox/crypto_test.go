package cryptox

import (
	"testing"

	"github.com/offpay/chainsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionHash_Deterministic(t *testing.T) {
	h1 := TransactionHash("+15550001111", "+15550002222", "100.5", "2025-06-01T10:00:00Z", "abc", common.GenesisHash)
	h2 := TransactionHash("+15550001111", "+15550002222", "100.5", "2025-06-01T10:00:00Z", "abc", common.GenesisHash)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestTransactionHash_FieldSensitivity(t *testing.T) {
	base := TransactionHash("a", "b", "1", "t", "n", "p")

	tests := []struct {
		name string
		h    string
	}{
		{"sender", TransactionHash("x", "b", "1", "t", "n", "p")},
		{"recipient", TransactionHash("a", "x", "1", "t", "n", "p")},
		{"amount", TransactionHash("a", "b", "2", "t", "n", "p")},
		{"timestamp", TransactionHash("a", "b", "1", "x", "n", "p")},
		{"nonce", TransactionHash("a", "b", "1", "t", "x", "p")},
		{"previous hash", TransactionHash("a", "b", "1", "t", "n", "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.h)
		})
	}
}

func TestSignAndVerifyHash(t *testing.T) {
	pub, priv, err := GenerateDeviceKey()
	require.NoError(t, err)

	h := TransactionHash("a", "b", "1", "t", "n", "p")
	sig := SignHash(priv, h)

	assert.True(t, VerifyHashSignature(pub, h, sig))
	assert.False(t, VerifyHashSignature(pub, h+"x", sig), "different hash must not verify")

	otherPub, _, err := GenerateDeviceKey()
	require.NoError(t, err)
	assert.False(t, VerifyHashSignature(otherPub, h, sig), "foreign key must not verify")
}

func TestVerifyHashSignature_BadKeyLength(t *testing.T) {
	assert.False(t, VerifyHashSignature([]byte{1, 2, 3}, "h", []byte("sig")))
}

func TestSealAndOpenPayload(t *testing.T) {
	key := common.GenerateRandByteArray(32)

	type detail struct {
		Description string `json:"description"`
	}

	ct, nonce, err := SealPayload(detail{Description: "groceries"}, key)
	require.NoError(t, err)
	require.Len(t, nonce, 12)

	var got detail
	require.NoError(t, OpenPayload(ct, nonce, key, &got))
	assert.Equal(t, "groceries", got.Description)
}

func TestOpenPayload_WrongKey(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	ct, nonce, err := SealPayload(map[string]string{"a": "b"}, key)
	require.NoError(t, err)

	var v map[string]string
	err = OpenPayload(ct, nonce, common.GenerateRandByteArray(32), &v)
	require.Error(t, err)
}

func TestCheckPayloadStructure(t *testing.T) {
	key := common.GenerateRandByteArray(32)
	ct, nonce, err := SealPayload(map[string]string{"memo": "rent"}, key)
	require.NoError(t, err)

	assert.True(t, CheckPayloadStructure(ct, nonce, key))
	assert.False(t, CheckPayloadStructure(ct, nonce, common.GenerateRandByteArray(32)))
	assert.False(t, CheckPayloadStructure([]byte("garbage"), nonce, key))
	assert.False(t, CheckPayloadStructure(ct, nonce, []byte("short-key")))
}

func TestDeriveKey_StableAndSaltSensitive(t *testing.T) {
	salt := common.GenerateRandByteArray(16)

	k1 := DeriveKey([]byte("passphrase"), salt)
	k2 := DeriveKey([]byte("passphrase"), salt)
	k3 := DeriveKey([]byte("passphrase"), common.GenerateRandByteArray(16))

	require.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
