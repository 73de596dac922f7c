package model

import (
	"encoding/binary"
)

// Block is a proposal for a slot as exchanged between the voting and
// dissemination engines.
type Block struct {
	Slot     uint64      `json:"slot"`
	View     uint64      `json:"view"`
	Hash     Identifier  `json:"hash"`
	Parent   Identifier  `json:"parent"`
	Proposer ValidatorID `json:"proposer"`
	Payload  []byte      `json:"payload"`
}

// NewBlock builds a block and derives its hash from the header fields and payload.
func NewBlock(slot, view uint64, parent Identifier, proposer ValidatorID, payload []byte) Block {
	b := Block{
		Slot:     slot,
		View:     view,
		Parent:   parent,
		Proposer: proposer,
		Payload:  payload,
	}
	b.Hash = b.ComputeHash()
	return b
}

// ComputeHash returns the canonical hash of the block's content.
func (b Block) ComputeHash() Identifier {
	var header [20]byte
	binary.BigEndian.PutUint64(header[0:8], b.Slot)
	binary.BigEndian.PutUint64(header[8:16], b.View)
	binary.BigEndian.PutUint32(header[16:20], uint32(b.Proposer))
	return MakeID(header[:], b.Parent[:], b.Payload)
}

// Size is the number of payload bytes the block occupies on the wire.
func (b Block) Size() uint64 {
	return uint64(len(b.Payload))
}

// Vote is a single validator's vote for a block (or a skip) in a view.
type Vote struct {
	Voter     ValidatorID `json:"voter"`
	Slot      uint64      `json:"slot"`
	View      uint64      `json:"view"`
	BlockHash Identifier  `json:"blockHash"`
	Skip      bool        `json:"skip"`
}
