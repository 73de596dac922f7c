package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Limits of the decoder. Exported state holds at most a few thousand
// interactions, well below these.
const (
	maxArrayElements = 1 << 20
	maxMapPairs      = 1 << 16
	maxNestedLevels  = 16
)

// Encoder uses canonical CBOR, so equal values encode to equal bytes.
// Decoding rejects duplicate map keys and indefinite-length items.
type Encoder struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewEncoder() (*Encoder, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not create CBOR encoding mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
		MaxNestedLevels:  maxNestedLevels,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("could not create CBOR decoding mode: %w", err)
	}
	return &Encoder{enc: enc, dec: dec}, nil
}

func (e *Encoder) Encode(val interface{}) ([]byte, error) {
	return e.enc.Marshal(val)
}

func (e *Encoder) Decode(b []byte, val interface{}) error {
	return e.dec.Unmarshal(b, val)
}

func (e *Encoder) MustEncode(val interface{}) []byte {
	b, err := e.Encode(val)
	if err != nil {
		panic(err)
	}

	return b
}

func (e *Encoder) MustDecode(b []byte, val interface{}) {
	err := e.Decode(b, val)
	if err != nil {
		panic(err)
	}
}
