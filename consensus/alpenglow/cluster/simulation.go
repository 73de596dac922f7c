package cluster

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/module/util"
)

// Scenario is a synthetic workload for a cluster.
type Scenario struct {
	Ticks uint64
	// BlockInterval is the number of ticks between two slots.
	BlockInterval uint64
	// MessagesPerTick heartbeats between random validators are sent every tick.
	MessagesPerTick int
	// CheckpointInterval stores snapshots every so many ticks. Zero disables checkpoints.
	CheckpointInterval uint64
	// Byzantine validators neither vote nor propose. A slot led by one of them is skipped.
	Byzantine []model.ValidatorID
	Seed      int64
}

// Outcome counts what a scenario produced.
type Outcome struct {
	Proposed    int
	Certified   int
	Skipped     int
	Uncertified int
	Checkpoints int
}

// Run drives the cluster through the scenario. The cluster must be started
// and initialized. progress may be nil.
func (c *Cluster) Run(ctx context.Context, scenario Scenario, progress util.LogProgressFunc) (Outcome, error) {
	var out Outcome
	if scenario.BlockInterval == 0 {
		return out, fmt.Errorf("block interval must be positive")
	}
	if scenario.CheckpointInterval > 0 && c.snapshots == nil {
		return out, fmt.Errorf("checkpoints need snapshot storage")
	}
	byzantine := make(map[model.ValidatorID]struct{}, len(scenario.Byzantine))
	for _, v := range scenario.Byzantine {
		if int(v) >= c.Size() {
			return out, fmt.Errorf("byzantine validator %d: %w", v, ErrUnknownValidator)
		}
		byzantine[v] = struct{}{}
	}

	cfg := c.engines[0].Node().Config()
	var honest []model.ValidatorID
	var honestStake uint64
	for i := 0; i < c.Size(); i++ {
		v := model.ValidatorID(i)
		if _, ok := byzantine[v]; !ok {
			honest = append(honest, v)
			honestStake += cfg.StakeOf(v)
		}
	}

	rng := rand.New(rand.NewSource(scenario.Seed))
	var parent model.Identifier
	slot := uint64(1)
	for tick := uint64(1); tick <= scenario.Ticks; tick++ {
		for i := 0; i < scenario.MessagesPerTick; i++ {
			err := c.Send(c.heartbeat(rng, tick-1))
			if err != nil {
				return out, fmt.Errorf("could not send heartbeat: %w", err)
			}
		}

		if tick%scenario.BlockInterval == 0 {
			leader := model.ValidatorID(slot % uint64(c.Size()))
			switch {
			case honestStake < cfg.SlowPathThreshold:
				out.Uncertified++
			case isByzantine(byzantine, leader):
				cert := model.Certificate{
					Slot:   slot,
					View:   slot,
					Type:   model.SkipCertificate,
					Stake:  honestStake,
					Voters: honest,
				}
				err := c.Certify(ctx, honest[0], cert)
				if err != nil {
					return out, fmt.Errorf("could not skip slot %d: %w", slot, err)
				}
				out.Skipped++
			default:
				block := model.NewBlock(slot, slot, parent, leader, []byte(fmt.Sprintf("slot-%d", slot)))
				err := c.Propose(ctx, block)
				if err != nil {
					return out, fmt.Errorf("could not propose slot %d: %w", slot, err)
				}
				out.Proposed++
				typ := model.SlowCertificate
				if honestStake >= cfg.FastPathThreshold {
					typ = model.FastCertificate
				}
				cert := model.Certificate{
					Slot:      slot,
					View:      slot,
					BlockHash: block.Hash,
					Type:      typ,
					Stake:     honestStake,
					Voters:    honest,
				}
				err = c.Certify(ctx, leader, cert)
				if err != nil {
					return out, fmt.Errorf("could not certify slot %d: %w", slot, err)
				}
				out.Certified++
				parent = block.Hash
			}
			slot++
		}

		err := c.Tick(ctx, 1)
		if err != nil {
			return out, err
		}
		if scenario.CheckpointInterval > 0 && tick%scenario.CheckpointInterval == 0 {
			_, err := c.Checkpoint(ctx)
			if err != nil {
				return out, fmt.Errorf("checkpoint at tick %d failed: %w", tick, err)
			}
			out.Checkpoints++
		}
		if progress != nil {
			progress(1)
		}
	}
	return out, nil
}

// heartbeat returns a signed heartbeat between two distinct random validators.
func (c *Cluster) heartbeat(rng *rand.Rand, clock uint64) model.Message {
	sender := rng.Intn(c.Size())
	recipient := rng.Intn(c.Size())
	if c.Size() > 1 {
		for recipient == sender {
			recipient = rng.Intn(c.Size())
		}
	}
	return model.Message{
		Sender:    model.ValidatorID(sender),
		Recipient: model.ValidatorID(recipient),
		Timestamp: clock,
		Type:      model.HeartbeatMessage,
		Payload:   []byte(fmt.Sprintf("heartbeat-%d", clock)),
		Signature: []byte{byte(sender)},
	}
}

func isByzantine(byzantine map[model.ValidatorID]struct{}, v model.ValidatorID) bool {
	_, ok := byzantine[v]
	return ok
}
