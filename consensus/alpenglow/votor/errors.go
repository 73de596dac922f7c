package votor

import (
	"errors"
)

var (
	// ErrInvalidCertificate is returned for structurally malformed certificates.
	ErrInvalidCertificate = errors.New("invalid certificate")
	// ErrConflictingFinalization indicates two different blocks finalized for one slot.
	ErrConflictingFinalization = errors.New("conflicting finalization")
	ErrUnknownBlock            = errors.New("unknown block")
	ErrDuplicateVote           = errors.New("duplicate vote")
	ErrInvalidVote             = errors.New("invalid vote")
	ErrInvalidProposal         = errors.New("invalid proposal")
)
