// Package cursorstore implements the bounded, TTL'd alias table that backs
// "M: <compact cursor alias>" lines in tool output: an opaque token a caller
// can paste back in to resume a truncated response without re-sending the
// whole payload.
package cursorstore

import "time"

// Capacity is the maximum number of live cursor entries kept per store,
// in-memory and on disk; the oldest entry is evicted once a new one would
// exceed it.
const Capacity = 256

// TTL is how long a cursor stays resolvable after being minted.
const TTL = 1 * time.Hour

// schemaVersion tags the persisted cursor_store_v1.json format.
const schemaVersion = 1

// entry is one in-memory cursor: an opaque byte payload (the caller never
// sees this directly, only the numeric id encoded into the alias string)
// with an absolute expiry.
type entry struct {
	payload   []byte
	expiresAt time.Time
}

// persistedEntry is one entry's on-disk representation: payload is
// base64-encoded so the whole store round-trips as JSON.
type persistedEntry struct {
	ID              uint64 `json:"id"`
	ExpiresAtUnixMS int64  `json:"expires_at_unix_ms"`
	PayloadB64      string `json:"payload_b64"`
}

// persistedStore is the on-disk shape of cursor_store_v1.json.
type persistedStore struct {
	V       int              `json:"v"`
	Entries []persistedEntry `json:"entries"`
}
