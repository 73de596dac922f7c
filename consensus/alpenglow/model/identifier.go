package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Identifier is the 32-byte hash used to reference blocks across subsystems.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// HexStringToIdentifier converts a hex string to an identifier.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var id Identifier
	i, err := hex.Decode(id[:], []byte(hexString))
	if err != nil {
		return id, err
	}
	if i != len(id) {
		return id, fmt.Errorf("malformed input, expected %d bytes (%d characters), decoded %d", len(id), hex.EncodedLen(len(id)), i)
	}
	return id, nil
}

// MakeID hashes the given byte slices into an identifier.
func MakeID(parts ...[]byte) Identifier {
	h := sha3.New256()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var id Identifier
	copy(id[:], h.Sum(nil))
	return id
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

func (id Identifier) IsZero() bool {
	return id == ZeroID
}

func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := HexStringToIdentifier(string(text))
	if err != nil {
		return fmt.Errorf("could not parse identifier: %w", err)
	}
	*id = parsed
	return nil
}

// MarshalJSON is implemented so identifiers used as values render as hex strings.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return id.UnmarshalText([]byte(s))
}

// ValidatorID indexes a validator in the committee, in the range [0, N).
type ValidatorID uint32
