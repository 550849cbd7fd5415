package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack"
	"golang.org/x/crypto/sha3"
)

// Identifier represents a 32-byte content hash of an entity, such as a block.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// HexStringToIdentifier converts a hex string to an identifier. The input
// must be 64 characters long and contain only valid hex characters.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var identifier Identifier
	i, err := hex.Decode(identifier[:], []byte(hexString))
	if err != nil {
		return identifier, err
	}
	if i != 32 {
		return identifier, fmt.Errorf("malformed input, expected 32 bytes (64 characters), decoded %d", i)
	}
	return identifier, nil
}

// String returns the hex string representation of the identifier.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// TerminalString returns a short form of the identifier, convenient for logs.
func (id Identifier) TerminalString() string {
	return hex.EncodeToString(id[:4])
}

// MarshalText returns the hex encoding of the identifier.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex encoded identifier.
func (id *Identifier) UnmarshalText(text []byte) error {
	var err error
	*id, err = HexStringToIdentifier(string(text))
	return err
}

// MakeID creates an ID from the hash of the canonical encoding of the given entity.
func MakeID(entity interface{}) Identifier {
	data, err := msgpack.Marshal(entity)
	if err != nil {
		// only unsupported types fail to encode, which is a programming error
		panic(fmt.Sprintf("could not encode entity for hashing: %v", err))
	}
	return Identifier(sha3.Sum256(data))
}
