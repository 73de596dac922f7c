package node

import (
	"errors"
	"strconv"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/rotor"
	"github.com/onflow/alpenglow/consensus/alpenglow/votor"
	"github.com/onflow/alpenglow/utils/logging"
)

// ProcessVotingToDissemination hands a certificate from the voting engine to
// the dissemination engine. Every check fails fast: it tags the error,
// degrades the component that owns the check and returns a ProtocolViolation
// before any later step runs. Shredding happens only once every check passed.
func (n *Node) ProcessVotingToDissemination(cert model.Certificate) (err error) {
	defer func() {
		n.perf.MessagesProcessed++
		n.collector.CertificateProcessed(cert.Type, err == nil)
	}()

	if err := n.votor.ValidateCertificate(cert); err != nil {
		return n.fail(model.Voting, model.InvalidCertificate, model.Degraded,
			"certificate for slot %d view %d rejected: %v", cert.Slot, cert.View, err)
	}

	if cert.Type == model.SkipCertificate {
		if cert.Stake < n.cfg.SlowPathThreshold {
			return n.fail(model.Voting, model.InsufficientSkipStake, model.Degraded,
				"skip certificate for view %d has stake %d, needs %d", cert.View, cert.Stake, n.cfg.SlowPathThreshold)
		}
		n.logInteraction(model.Voting, model.Dissemination, model.SkipCertificatePropagation, certificateMetadata(cert))
		return nil
	}

	block, ok := n.votor.LookupBlock(cert.View, cert.BlockHash)
	if !ok {
		return n.fail(model.Voting, model.BlockNotFound, model.Degraded,
			"block %s referenced by %s certificate not found", cert.BlockHash, cert.Type)
	}
	if block.Slot != cert.Slot || block.View != cert.View {
		return n.fail(model.Voting, model.BlockCertificateMismatch, model.Degraded,
			"block %s is at slot %d view %d, certificate claims slot %d view %d",
			block.Hash, block.Slot, block.View, cert.Slot, cert.View)
	}

	params := rotor.NewErasureParams(n.cfg.Validators)
	shredding := !n.rotor.HasShreds(block.Hash)
	if shredding {
		if err := params.Validate(); err != nil {
			return n.fail(model.Dissemination, model.InvalidErasureParams, model.Degraded,
				"cannot shred block %s: %v", block.Hash, err)
		}
		cost := params.ShredSize(block.Size()) * uint64(params.TotalShreds)
		if !n.rotor.CheckBandwidthLimit(block.Proposer, cost) {
			return n.fail(model.Dissemination, model.BandwidthExceeded, model.Congested,
				"leader %d cannot send %d bytes for block %s", block.Proposer, cost, block.Hash)
		}
	} else if count := n.rotor.ShredCount(block.Hash); count < params.DataShreds {
		return n.fail(model.Dissemination, model.InsufficientShreds, model.Degraded,
			"block %s has %d shreds, reconstruction needs %d", block.Hash, count, params.DataShreds)
	}

	if threshold := n.cfg.ThresholdFor(cert.Type); cert.Stake < threshold {
		return n.fail(model.Voting, model.InsufficientStake, model.Degraded,
			"%s certificate for block %s has stake %d, needs %d", cert.Type, block.Hash, cert.Stake, threshold)
	}

	if shredding {
		if err := n.rotor.Disseminate(block, params, block.Proposer); err != nil {
			return n.fail(model.Dissemination, model.DisseminationFailed, model.Degraded,
				"could not disseminate block %s: %v", block.Hash, err)
		}
		n.logInteraction(model.Voting, model.Dissemination, model.ShreddingRequired, map[string]string{
			"block":  block.Hash.String(),
			"shreds": strconv.Itoa(params.TotalShreds),
		})
	} else {
		n.logInteraction(model.Dissemination, model.Voting, model.ShredVerification, map[string]string{
			"block":  block.Hash.String(),
			"shreds": strconv.Itoa(n.rotor.ShredCount(block.Hash)),
		})
	}
	n.logInteraction(model.Voting, model.Dissemination, model.CertificatePropagation, certificateMetadata(cert))
	return nil
}

// propagateCertificate runs the certificate through the protocol, applies it
// to the voting engine and, for locally produced certificates, forwards it
// to the peers.
func (n *Node) propagateCertificate(cert model.Certificate, broadcast bool) error {
	if err := n.ProcessVotingToDissemination(cert); err != nil {
		return err
	}
	finalized := len(n.votor.Finalized)
	if err := n.votor.AddCertificate(cert, n.clock); err != nil {
		if errors.Is(err, votor.ErrConflictingFinalization) {
			return n.fail(model.Voting, model.FinalizationConflict, model.Failed,
				"certificate for slot %d conflicts with finalized chain: %v", cert.Slot, err)
		}
		return n.fail(model.Voting, model.InvalidCertificate, model.Degraded,
			"voting engine rejected certificate for slot %d: %v", cert.Slot, err)
	}
	if len(n.votor.Finalized) > finalized {
		n.lastBlockTick = n.clock
		n.logInteraction(model.Voting, model.Dissemination, model.Finalization, certificateMetadata(cert))
		logging.Certificate(n.log.Debug(), cert).Msg("block finalized")
	}
	if broadcast && n.broadcaster != nil {
		n.broadcaster.BroadcastCertificate(n.id, cert)
		n.collector.CertificateBroadcast()
		n.logInteraction(model.Voting, model.Transport, model.CertificateBroadcast, certificateMetadata(cert))
	}
	return nil
}

// proposeBlock records a block proposal. The leader shreds its own block
// right away; other validators shred it once it is certified.
func (n *Node) proposeBlock(block model.Block) error {
	n.perf.MessagesProcessed++
	if block.Size() > n.cfg.MaxBlockSize {
		return n.fail(model.Voting, model.OversizedBlock, model.Degraded,
			"block %s has %d bytes, limit is %d", block.Hash, block.Size(), n.cfg.MaxBlockSize)
	}
	if err := n.votor.ProposeBlock(block, n.clock); err != nil {
		return n.fail(model.Voting, model.InvalidProposal, model.Degraded,
			"proposal for slot %d rejected: %v", block.Slot, err)
	}
	n.lastBlockTick = n.clock
	if block.Proposer == n.id {
		params := rotor.NewErasureParams(n.cfg.Validators)
		if err := n.rotor.Disseminate(block, params, n.id); err != nil {
			category := model.DisseminationFailed
			if errors.Is(err, rotor.ErrBandwidthExceeded) {
				category = model.BandwidthExceeded
			}
			return n.fail(model.Dissemination, category, model.Congested,
				"could not disseminate own block %s: %v", block.Hash, err)
		}
	}
	n.logInteraction(model.Voting, model.Dissemination, model.BlockPropagation, map[string]string{
		"block": block.Hash.String(),
		"slot":  strconv.FormatUint(block.Slot, 10),
	})
	logging.Block(n.log.Debug(), block).Msg("block proposed")
	return nil
}

// recordVote hands a vote received from a peer to the voting engine.
func (n *Node) recordVote(vote model.Vote) error {
	n.perf.MessagesProcessed++
	if err := n.votor.RecordVote(vote); err != nil {
		return n.fail(model.Voting, model.InvalidVote, model.Slow,
			"vote of validator %d for view %d rejected: %v", vote.Voter, vote.View, err)
	}
	n.logInteraction(model.Transport, model.Voting, model.VoteReceived, map[string]string{
		"voter": strconv.FormatUint(uint64(vote.Voter), 10),
		"view":  strconv.FormatUint(vote.View, 10),
	})
	return nil
}

func certificateMetadata(cert model.Certificate) map[string]string {
	return map[string]string{
		"type":  cert.Type.String(),
		"slot":  strconv.FormatUint(cert.Slot, 10),
		"view":  strconv.FormatUint(cert.View, 10),
		"stake": strconv.FormatUint(cert.Stake, 10),
	}
}
