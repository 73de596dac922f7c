package votor

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Snapshot is the voting engine's exported sub-state. Field names follow the
// formal model's variable names.
type Snapshot struct {
	CurrentView  uint64              `json:"currentView"`
	VotingRounds []RoundRecord       `json:"votingRounds"`
	Finalized    []FinalizedRecord   `json:"finalizedChain"`
	Certificates []model.Certificate `json:"generatedCertificates"`
	LocalTime    uint64              `json:"clock"`
}

type RoundRecord struct {
	View           uint64              `json:"view"`
	ProposedBlocks []model.Block       `json:"proposedBlocks"`
	ReceivedVotes  []model.Vote        `json:"receivedVotes"`
	SkipVotes      []model.ValidatorID `json:"skipVotes"`
	ProposedAt     uint64              `json:"proposedAt"`
}

type FinalizedRecord struct {
	Block       model.Block           `json:"block"`
	Type        model.CertificateType `json:"certificateType"`
	ProposedAt  uint64                `json:"proposedAt"`
	FinalizedAt uint64                `json:"finalizedAt"`
}

// Snapshot exports the state. Rounds and votes are sorted so equal states
// export identically.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		CurrentView:  s.CurrentView,
		VotingRounds: make([]RoundRecord, 0, len(s.Rounds)),
		Finalized:    make([]FinalizedRecord, 0, len(s.Finalized)),
		Certificates: append([]model.Certificate{}, s.Certificates...),
		LocalTime:    s.LocalTime,
	}
	views := maps.Keys(s.Rounds)
	slices.Sort(views)
	for _, view := range views {
		r := s.Rounds[view]
		rec := RoundRecord{
			View:           r.View,
			ProposedBlocks: append([]model.Block{}, r.ProposedBlocks...),
			ReceivedVotes:  make([]model.Vote, 0, len(r.Votes)),
			SkipVotes:      maps.Keys(r.SkipVotes),
			ProposedAt:     r.ProposedAt,
		}
		voters := maps.Keys(r.Votes)
		slices.Sort(voters)
		for _, v := range voters {
			rec.ReceivedVotes = append(rec.ReceivedVotes, r.Votes[v])
		}
		slices.Sort(rec.SkipVotes)
		snap.VotingRounds = append(snap.VotingRounds, rec)
	}
	for _, f := range s.Finalized {
		snap.Finalized = append(snap.Finalized, FinalizedRecord(f))
	}
	return snap
}

// Restore replaces the state with the content of snap.
func (s *State) Restore(snap Snapshot) {
	s.CurrentView = snap.CurrentView
	s.LocalTime = snap.LocalTime
	s.Rounds = make(map[uint64]*Round, len(snap.VotingRounds))
	for _, rec := range snap.VotingRounds {
		r := newRound(rec.View)
		r.ProposedBlocks = append(r.ProposedBlocks, rec.ProposedBlocks...)
		r.ProposedAt = rec.ProposedAt
		for _, v := range rec.ReceivedVotes {
			r.Votes[v.Voter] = v
		}
		for _, v := range rec.SkipVotes {
			r.SkipVotes[v] = struct{}{}
		}
		s.Rounds[rec.View] = r
	}
	s.Finalized = make([]FinalizedBlock, 0, len(snap.Finalized))
	for _, f := range snap.Finalized {
		s.Finalized = append(s.Finalized, FinalizedBlock(f))
	}
	s.Certificates = append([]model.Certificate{}, snap.Certificates...)
}
