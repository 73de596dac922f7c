package rotor

import (
	"errors"
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/committees"
)

var ErrInvalidErasureParams = errors.New("invalid erasure coding parameters")

// maxShreds bounds the total shred count of the Reed-Solomon code over GF(2^8)
// extended to 16-bit shred indices.
const maxShreds = 1 << 16

// ErasureParams describes how a block is cut into shreds: any DataShreds out
// of TotalShreds suffice to reconstruct it.
type ErasureParams struct {
	DataShreds  int `json:"dataShreds"`
	TotalShreds int `json:"totalShreds"`
}

// NewErasureParams returns the parameters for an n-validator committee: one
// shred per validator, Ceil(2n/3) of which reconstruct the block.
func NewErasureParams(n int) ErasureParams {
	return ErasureParams{
		DataShreds:  committees.ShredReconstructionThreshold(n),
		TotalShreds: n,
	}
}

// Validate checks 0 < DataShreds <= TotalShreds <= maxShreds.
func (p ErasureParams) Validate() error {
	if p.DataShreds <= 0 {
		return fmt.Errorf("%w: %d data shreds", ErrInvalidErasureParams, p.DataShreds)
	}
	if p.TotalShreds < p.DataShreds {
		return fmt.Errorf("%w: %d total shreds below %d data shreds", ErrInvalidErasureParams, p.TotalShreds, p.DataShreds)
	}
	if p.TotalShreds > maxShreds {
		return fmt.Errorf("%w: %d total shreds above %d", ErrInvalidErasureParams, p.TotalShreds, maxShreds)
	}
	return nil
}

// ShredSize is the size of one shred for a payload of the given size.
func (p ErasureParams) ShredSize(payload uint64) uint64 {
	k := uint64(p.DataShreds)
	if k == 0 {
		return 0
	}
	return (payload + k - 1) / k
}
