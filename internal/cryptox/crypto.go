// Package cryptox implements the cryptographic primitives of the offline
// payment chain: the canonical transaction hash, Ed25519 record signatures,
// AES-GCM payload encryption and Argon2id key derivation.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/argon2"
)

// TransactionHash computes the canonical chain hash for a record:
//
//	SHA256(sender | recipient | amount | timestamp | nonce | previousHash)
//
// Fields are joined with "|" in this exact order. Callers are responsible for
// passing normalized string forms (decimal amount without trailing zeros,
// RFC3339Nano UTC timestamp) so the hash is reproducible on every device.
func TransactionHash(sender, recipient, amount, timestamp, nonce, previousHash string) string {
	payload := strings.Join([]string{sender, recipient, amount, timestamp, nonce, previousHash}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// SignHash signs the hex-encoded transaction hash with the device private key.
func SignHash(priv ed25519.PrivateKey, txHash string) []byte {
	return ed25519.Sign(priv, []byte(txHash))
}

// VerifyHashSignature reports whether sig is a valid device signature over
// the hex-encoded transaction hash. An invalid key length returns false
// rather than panicking.
func VerifyHashSignature(pub ed25519.PublicKey, txHash string, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, []byte(txHash), sig)
}

// GenerateDeviceKey creates a new Ed25519 keypair for a wallet device.
func GenerateDeviceKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// DeriveKey derives a 32-byte AES key from a passphrase and salt using
// Argon2id. Used by the wallet agent to protect the stored device key.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// SealPayload serializes v to JSON and encrypts it with AES-GCM. A fresh
// random 12-byte nonce is generated per call and returned alongside the
// ciphertext.
func SealPayload(v any, key []byte) (ciphertext, nonce []byte, err error) {

	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, nonce, nil
}

// OpenPayload decrypts an AES-GCM sealed payload and unmarshals the JSON
// into v. The key and nonce must match the ones used by SealPayload.
func OpenPayload(ciphertext, nonce, key []byte, v any) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

// CheckPayloadStructure attempts an AES-GCM open without interpreting the
// plaintext. The sync server uses it to confirm a record carries a
// structurally valid encrypted payload; content stays opaque.
func CheckPayloadStructure(ciphertext, nonce, key []byte) bool {
	block, err := aes.NewCipher(key)
	if err != nil {
		return false
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return false
	}
	_, err = aesgcm.Open(nil, nonce, ciphertext, nil)
	return err == nil
}
