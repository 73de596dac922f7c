package simnet

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Snapshot is the transport's exported sub-state.
type Snapshot struct {
	Clock             uint64                                `json:"clock"`
	MessageQueue      []model.Message                       `json:"messageQueue"`
	MessageBuffer     map[model.ValidatorID][]model.Message `json:"messageBuffer"`
	Partitions        []Partition                           `json:"networkPartitions"`
	DroppedMessages   uint64                                `json:"droppedMessages"`
	DeliveredMessages uint64                                `json:"deliveredMessages"`
	ByzantineNodes    []model.ValidatorID                   `json:"byzantineNodes"`
	Deliveries        []Delivery                            `json:"deliveries"`
}

func (s *State) Snapshot() Snapshot {
	buffer := make(map[model.ValidatorID][]model.Message, len(s.Buffer))
	for r, held := range s.Buffer {
		buffer[r] = append([]model.Message{}, held...)
	}
	partitions := make([]Partition, 0, len(s.Partitions))
	for _, p := range s.Partitions {
		p.Members = append([]model.ValidatorID{}, p.Members...)
		partitions = append(partitions, p)
	}
	return Snapshot{
		Clock:             s.Clock,
		MessageQueue:      append([]model.Message{}, s.Queue...),
		MessageBuffer:     buffer,
		Partitions:        partitions,
		DroppedMessages:   s.DroppedMessages,
		DeliveredMessages: s.DeliveredMessages,
		ByzantineNodes:    s.ByzantineNodes(),
		Deliveries:        append([]Delivery{}, s.Deliveries...),
	}
}

func (s *State) Restore(snap Snapshot) {
	s.Clock = snap.Clock
	s.Queue = append([]model.Message{}, snap.MessageQueue...)
	s.Buffer = make(map[model.ValidatorID][]model.Message, len(snap.MessageBuffer))
	for r, held := range snap.MessageBuffer {
		s.Buffer[r] = append([]model.Message{}, held...)
	}
	s.Partitions = append([]Partition{}, snap.Partitions...)
	s.nextPartitionID = 0
	for _, p := range s.Partitions {
		if p.ID > s.nextPartitionID {
			s.nextPartitionID = p.ID
		}
	}
	s.DroppedMessages = snap.DroppedMessages
	s.DeliveredMessages = snap.DeliveredMessages
	s.Byzantine = make(map[model.ValidatorID]struct{}, len(snap.ByzantineNodes))
	for _, v := range snap.ByzantineNodes {
		s.Byzantine[v] = struct{}{}
	}
	s.Deliveries = append([]Delivery{}, snap.Deliveries...)
}
