package sealedcache

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sealing key parameters. The info string binds derived keys to this use so
// the same operator secret can safely feed other derivations later.
const (
	keyLen  = 32 // AES-256
	keyInfo = "tokenbroker cache sealing v1"
)

// deriveKey stretches the operator secret into the AES-256 sealing key with
// HKDF-SHA256. Derivation happens once per process; the key is never rotated
// during the process lifetime, so a restart invalidates every sealed entry
// by construction.
func deriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sealing secret must not be empty")
	}
	key := make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}
	return key, nil
}
