package node

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/rotor"
)

// Handle dispatches one message of the node protocol and returns the reply,
// if the message has one. Handle must not be called concurrently.
func (n *Node) Handle(msg interface{}) (interface{}, error) {
	if n.state == model.Initializing {
		switch msg.(type) {
		case Initialize, InjectFault, RequestPerformanceReport, RequestFormalExport:
		default:
			return nil, fmt.Errorf("cannot handle %T: %w", msg, ErrNotInitialized)
		}
	}

	switch m := msg.(type) {
	case Initialize:
		return nil, n.Initialize()
	case Tick:
		return nil, n.Tick()
	case TransportMessage:
		return nil, n.ProcessTransportMessage(m.Message)
	case SendMessage:
		n.network.Send(m.Message)
		return nil, nil
	case BlockProposal:
		return nil, n.proposeBlock(m.Block)
	case VoteCast:
		return nil, n.recordVote(m.Vote)
	case PropagateCertificate:
		return nil, n.propagateCertificate(m.Certificate, true)
	case PeerCertificate:
		return nil, n.propagateCertificate(m.Certificate, false)
	case InjectFault:
		return nil, n.injectFault(m.Component, m.Status)
	case InjectByzantine:
		return nil, n.ProcessTransportMessage(model.Message{
			Sender:    m.Sender,
			Recipient: n.id,
			Timestamp: n.clock,
			Type:      model.ByzantineMessage,
			Payload:   m.Payload,
		})
	case InjectPartition:
		id := n.network.Partition(m.Members)
		n.log.Info().Uint64("partition", id).Int("members", len(m.Members)).Msg("partition injected")
		return id, nil
	case HealPartition:
		if !n.network.Heal(m.ID) {
			return nil, fmt.Errorf("unknown partition %d", m.ID)
		}
		return nil, nil
	case InjectClockSkew:
		n.skewClock(m.Millis)
		return nil, nil
	case InjectRepairRequests:
		for i := 0; i < m.Count; i++ {
			n.rotor.RequestRepair(rotor.RepairRequest{
				Requester:   n.id,
				Index:       i,
				RequestedAt: n.clock,
			})
		}
		return nil, nil
	case RequestRecovery:
		attempt, err := n.AttemptRecovery()
		if attempt == nil {
			return nil, err
		}
		return attempt, err
	case RequestPerformanceReport:
		n.refreshMetrics()
		return n.Report(), nil
	case RequestFormalExport:
		return n.ExportFormalState(), nil
	case UpdateBenchmark:
		return nil, n.updateBenchmark(m)
	default:
		return nil, fmt.Errorf("%T: %w", msg, ErrUnknownMessage)
	}
}

func (n *Node) injectFault(c model.ComponentID, status model.HealthStatus) error {
	if err := n.UpdateHealth(c, status); err != nil {
		return err
	}
	if status != model.Healthy {
		n.recordError(c, model.InjectedFault, status, fmt.Sprintf("injected %s fault", status))
	}
	return nil
}

// skewClock shifts the voting engine's local time and runs the drift check.
func (n *Node) skewClock(millis int64) {
	if millis < 0 && uint64(-millis) > n.votor.LocalTime {
		n.votor.LocalTime = 0
	} else if millis < 0 {
		n.votor.LocalTime -= uint64(-millis)
	} else {
		n.votor.LocalTime += uint64(millis)
	}
	n.synchronizeTime()
}

func (n *Node) updateBenchmark(m UpdateBenchmark) error {
	if m.Parameters != nil {
		if err := m.Parameters.Validate(); err != nil {
			return fmt.Errorf("invalid integration parameters: %w", err)
		}
		n.params = *m.Parameters
		n.errors.window = n.params.ErrorDedupWindow
		n.limiters = make(map[model.ValidatorID]*rate.Limiter)
	}
	if m.Restart {
		start := n.clock
		n.benchmarkStart = &start
		n.log.Info().Uint64("start", start).Msg("benchmark restarted")
	}
	return nil
}
