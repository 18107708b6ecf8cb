// Copyright 2025 Certen Protocol

package batch

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// namespaceUUID is the fixed namespace baked into the binary for
// deriving deterministic batch identities. It has no meaning beyond
// being a stable constant; changing it would change every derived id.
var namespaceUUID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Identity derives the deterministic UUIDv5 batch id from the fields
// that define a batch's logical identity: chain id, bridge address,
// data hash, new root, and DA mode. Identical inputs always produce
// the identical id; encoding is big-endian chain id (8 bytes), 20-byte
// address, two 32-byte hashes, and a single-byte DA mode tag.
func Identity(chainID uint64, bridgeAddress [20]byte, dataHash, newRoot [32]byte, mode DAMode) (uuid.UUID, error) {
	tag, err := mode.Tag()
	if err != nil {
		return uuid.UUID{}, err
	}

	name := make([]byte, 0, 8+20+32+32+1)
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], chainID)
	name = append(name, chainBuf[:]...)
	name = append(name, bridgeAddress[:]...)
	name = append(name, dataHash[:]...)
	name = append(name, newRoot[:]...)
	name = append(name, tag)

	return uuid.NewSHA1(namespaceUUID, name), nil
}
