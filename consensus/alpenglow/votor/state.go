package votor

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/onflow/alpenglow/consensus/alpenglow/committees"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Round holds everything the voting engine observed for one view.
type Round struct {
	View           uint64
	ProposedBlocks []model.Block
	Votes          map[model.ValidatorID]model.Vote
	SkipVotes      map[model.ValidatorID]struct{}
	ProposedAt     uint64
}

func newRound(view uint64) *Round {
	return &Round{
		View:      view,
		Votes:     make(map[model.ValidatorID]model.Vote),
		SkipVotes: make(map[model.ValidatorID]struct{}),
	}
}

// VoteCount returns the number of votes (including skip votes) received in the round.
func (r *Round) VoteCount() int {
	return len(r.Votes) + len(r.SkipVotes)
}

// FinalizedBlock is an entry of the finalized chain.
type FinalizedBlock struct {
	Block       model.Block
	Type        model.CertificateType
	ProposedAt  uint64
	FinalizedAt uint64
}

// State is the voting engine's state as seen by the integration layer. It is
// owned by exactly one node and is not safe for concurrent use.
type State struct {
	cfg  *model.Config
	self model.ValidatorID

	CurrentView  uint64
	Rounds       map[uint64]*Round
	Finalized    []FinalizedBlock
	Certificates []model.Certificate
	// LocalTime is the voting engine's clock in milliseconds.
	LocalTime uint64
}

// New creates the voting state for validator self, starting in view 1.
func New(self model.ValidatorID, cfg *model.Config) *State {
	return &State{
		cfg:         cfg,
		self:        self,
		CurrentView: 1,
		Rounds:      make(map[uint64]*Round),
	}
}

// ValidateCertificate checks the structure of a certificate: known type,
// slot and view ranges, a non-empty set of distinct committee voters and a
// stake equal to the voters' combined stake. Stake thresholds are NOT checked.
func (s *State) ValidateCertificate(cert model.Certificate) error {
	if !cert.Type.Valid() {
		return fmt.Errorf("%w: unknown type %d", ErrInvalidCertificate, int(cert.Type))
	}
	if cert.View == 0 {
		return fmt.Errorf("%w: view must be positive", ErrInvalidCertificate)
	}
	if cert.Slot > s.cfg.MaxSlot {
		return fmt.Errorf("%w: slot %d exceeds max slot %d", ErrInvalidCertificate, cert.Slot, s.cfg.MaxSlot)
	}
	if len(cert.Voters) == 0 {
		return fmt.Errorf("%w: empty voter set", ErrInvalidCertificate)
	}
	seen := make(map[model.ValidatorID]struct{}, len(cert.Voters))
	var stake uint64
	for _, v := range cert.Voters {
		if !s.cfg.IsValidator(v) {
			return fmt.Errorf("%w: voter %d outside committee", ErrInvalidCertificate, v)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%w: duplicate voter %d", ErrInvalidCertificate, v)
		}
		seen[v] = struct{}{}
		stake += s.cfg.StakeOf(v)
	}
	if stake != cert.Stake {
		return fmt.Errorf("%w: claimed stake %d does not match voter stake %d", ErrInvalidCertificate, cert.Stake, stake)
	}
	if cert.Type != model.SkipCertificate && cert.BlockHash.IsZero() {
		return fmt.Errorf("%w: %s certificate without block reference", ErrInvalidCertificate, cert.Type)
	}
	return nil
}

// ProposeBlock records a block proposal for its view.
func (s *State) ProposeBlock(block model.Block, tick uint64) error {
	if block.View == 0 {
		return fmt.Errorf("%w: view must be positive", ErrInvalidProposal)
	}
	if !s.cfg.IsValidator(block.Proposer) {
		return fmt.Errorf("%w: proposer %d outside committee", ErrInvalidProposal, block.Proposer)
	}
	if block.Hash != block.ComputeHash() {
		return fmt.Errorf("%w: hash mismatch for block at slot %d", ErrInvalidProposal, block.Slot)
	}
	round := s.round(block.View)
	for _, b := range round.ProposedBlocks {
		if b.Hash == block.Hash {
			return nil
		}
	}
	if len(round.ProposedBlocks) == 0 {
		round.ProposedAt = tick
	}
	round.ProposedBlocks = append(round.ProposedBlocks, block)
	return nil
}

// RecordVote adds a vote to the round of its view. A validator votes at most
// once per view, either for a block or to skip.
func (s *State) RecordVote(vote model.Vote) error {
	if !s.cfg.IsValidator(vote.Voter) {
		return fmt.Errorf("%w: voter %d outside committee", ErrInvalidVote, vote.Voter)
	}
	if vote.View == 0 {
		return fmt.Errorf("%w: view must be positive", ErrInvalidVote)
	}
	round := s.round(vote.View)
	_, voted := round.Votes[vote.Voter]
	_, skipped := round.SkipVotes[vote.Voter]
	if voted || skipped {
		return fmt.Errorf("%w: validator %d in view %d", ErrDuplicateVote, vote.Voter, vote.View)
	}
	if vote.Skip {
		round.SkipVotes[vote.Voter] = struct{}{}
		return nil
	}
	round.Votes[vote.Voter] = vote
	return nil
}

// AddCertificate applies a certificate: fast and slow certificates finalize the
// referenced block, skip certificates only move the view forward.
func (s *State) AddCertificate(cert model.Certificate, tick uint64) error {
	if err := s.ValidateCertificate(cert); err != nil {
		return err
	}
	if cert.Type != model.SkipCertificate {
		block, ok := s.LookupBlock(cert.View, cert.BlockHash)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownBlock, cert.BlockHash)
		}
		if err := s.finalize(block, cert.Type, tick); err != nil {
			return err
		}
	}
	s.Certificates = append(s.Certificates, cert)
	if cert.View >= s.CurrentView {
		s.CurrentView = cert.View + 1
	}
	return nil
}

func (s *State) finalize(block model.Block, typ model.CertificateType, tick uint64) error {
	for _, f := range s.Finalized {
		if f.Block.Slot != block.Slot {
			continue
		}
		if f.Block.Hash == block.Hash {
			return nil
		}
		return fmt.Errorf("%w: slot %d already finalized with %s, got %s",
			ErrConflictingFinalization, block.Slot, f.Block.Hash, block.Hash)
	}
	proposedAt := tick
	if r, ok := s.Rounds[block.View]; ok {
		proposedAt = r.ProposedAt
	}
	s.Finalized = append(s.Finalized, FinalizedBlock{
		Block:       block,
		Type:        typ,
		ProposedAt:  proposedAt,
		FinalizedAt: tick,
	})
	return nil
}

// LookupBlock resolves a block from the voting round of the given view first,
// then from any active round, then from the finalized chain.
func (s *State) LookupBlock(view uint64, hash model.Identifier) (model.Block, bool) {
	if r, ok := s.Rounds[view]; ok {
		for _, b := range r.ProposedBlocks {
			if b.Hash == hash {
				return b, true
			}
		}
	}
	for _, r := range s.Rounds {
		for _, b := range r.ProposedBlocks {
			if b.Hash == hash {
				return b, true
			}
		}
	}
	for _, f := range s.Finalized {
		if f.Block.Hash == hash {
			return f.Block, true
		}
	}
	return model.Block{}, false
}

// IsFinalized returns true if the block with the given hash is in the finalized chain.
func (s *State) IsFinalized(hash model.Identifier) bool {
	for _, f := range s.Finalized {
		if f.Block.Hash == hash {
			return true
		}
	}
	return false
}

// BlockCount is the number of distinct blocks known to the engine.
func (s *State) BlockCount() int {
	seen := make(map[model.Identifier]struct{})
	for _, r := range s.Rounds {
		for _, b := range r.ProposedBlocks {
			seen[b.Hash] = struct{}{}
		}
	}
	for _, f := range s.Finalized {
		seen[f.Block.Hash] = struct{}{}
	}
	return len(seen)
}

// ActiveRound returns the round of the current view, creating it if needed.
func (s *State) ActiveRound() *Round {
	return s.round(s.CurrentView)
}

func (s *State) round(view uint64) *Round {
	r, ok := s.Rounds[view]
	if !ok {
		r = newRound(view)
		s.Rounds[view] = r
	}
	return r
}

// CheckSafety verifies that no two finalized blocks share a slot and that
// every finalized block is backed by a certificate.
func (s *State) CheckSafety() error {
	slots := make(map[uint64]model.Identifier, len(s.Finalized))
	for _, f := range s.Finalized {
		if other, ok := slots[f.Block.Slot]; ok {
			return fmt.Errorf("%w: slot %d finalized as %s and %s", ErrConflictingFinalization, f.Block.Slot, other, f.Block.Hash)
		}
		slots[f.Block.Slot] = f.Block.Hash
	}
	certified := make(map[model.Identifier]struct{}, len(s.Certificates))
	for _, c := range s.Certificates {
		if c.Type != model.SkipCertificate {
			certified[c.BlockHash] = struct{}{}
		}
	}
	for _, f := range s.Finalized {
		if _, ok := certified[f.Block.Hash]; !ok {
			return fmt.Errorf("finalized block %s at slot %d has no certificate", f.Block.Hash, f.Block.Slot)
		}
	}
	return nil
}

// CheckLiveness verifies that at least one block was finalized once the
// clock is more than timeout ticks past GST.
func (s *State) CheckLiveness(clock, gst, timeout uint64) error {
	if clock <= gst || clock-gst <= timeout {
		return nil
	}
	if len(s.Finalized) == 0 {
		return fmt.Errorf("no block finalized %d ticks after GST", clock-gst)
	}
	return nil
}

// CheckByzantineResilience verifies that the stake of the given Byzantine
// validators stays strictly below the tolerated bound.
func (s *State) CheckByzantineResilience(byzantine []model.ValidatorID) error {
	var stake uint64
	for _, v := range byzantine {
		stake += s.cfg.StakeOf(v)
	}
	bound := committees.ByzantineStakeBound(s.cfg.TotalStake())
	if len(byzantine) > 0 && stake >= bound {
		return fmt.Errorf("byzantine stake %d reaches bound %d", stake, bound)
	}
	return nil
}

// FinalizedSlots returns the finalized slots in ascending order.
func (s *State) FinalizedSlots() []uint64 {
	out := make([]uint64, 0, len(s.Finalized))
	for _, f := range s.Finalized {
		out = append(out, f.Block.Slot)
	}
	slices.Sort(out)
	return out
}
