package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashOf hashes a sequence of string parts with a stable separator
func HashOf(parts ...string) Hash {
	return NewHash([]byte(strings.Join(parts, "|")))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	DatasetHash Hash
	SpecHash    Hash
	WeightsHash Hash
)

func NewDatasetHash(data []byte) DatasetHash { return DatasetHash(NewHash(data)) }
func NewSpecHash(data []byte) SpecHash       { return SpecHash(NewHash(data)) }
func NewWeightsHash(data []byte) WeightsHash { return WeightsHash(NewHash(data)) }

func (h DatasetHash) String() string { return Hash(h).String() }
func (h SpecHash) String() string    { return Hash(h).String() }
func (h WeightsHash) String() string { return Hash(h).String() }

// DeriveSeed derives a deterministic sub-seed from a base seed and a sequence
// of naming parts. Used to give each test spec, permutation stream, and CV fold
// assignment its own reproducible random stream.
func DeriveSeed(base int64, parts ...string) int64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(base))

	hasher := sha256.New()
	hasher.Write(buf[:])
	for _, p := range parts {
		hasher.Write([]byte("|"))
		hasher.Write([]byte(p))
	}
	sum := hasher.Sum(nil)

	return int64(binary.BigEndian.Uint64(sum[:8]))
}
