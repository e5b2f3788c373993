// Package common contains shared constants and sentinel errors used across
// the wallet agent and the sync server.
package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on authenticated requests.
const AccessTokenHeaderName = "Authorization"

// GenesisHash is the previous-hash sentinel for the first record in a
// per-user chain: 32 zero bytes, hex encoded.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"
