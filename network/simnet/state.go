package simnet

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/alpenglow/consensus/alpenglow/committees"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// maxDeliveries bounds the delivery records kept for delay checks.
const maxDeliveries = 1024

// Partition separates Members from the rest of the committee until healed.
type Partition struct {
	ID        uint64              `json:"id"`
	Members   []model.ValidatorID `json:"members"`
	Healed    bool                `json:"healed"`
	CreatedAt uint64              `json:"createdAt"`
	HealedAt  uint64              `json:"healedAt"`
}

func (p Partition) contains(v model.ValidatorID) bool {
	return slices.Contains(p.Members, v)
}

// separates returns true if the partition puts a and b on different sides.
func (p Partition) separates(a, b model.ValidatorID) bool {
	return !p.Healed && p.contains(a) != p.contains(b)
}

// Delivery records when a message was sent and when it was delivered.
type Delivery struct {
	Sender      model.ValidatorID `json:"sender"`
	Type        model.MessageType `json:"type"`
	SentAt      uint64            `json:"sentAt"`
	DeliveredAt uint64            `json:"deliveredAt"`
}

// State is the partition-aware transport state of one node. It is owned by
// exactly one node and is not safe for concurrent use.
type State struct {
	cfg  *model.Config
	self model.ValidatorID

	Clock             uint64
	Queue             []model.Message
	Buffer            map[model.ValidatorID][]model.Message
	Partitions        []Partition
	DroppedMessages   uint64
	DeliveredMessages uint64
	Byzantine         map[model.ValidatorID]struct{}
	Deliveries        []Delivery

	nextPartitionID uint64
}

func New(self model.ValidatorID, cfg *model.Config) *State {
	return &State{
		cfg:       cfg,
		self:      self,
		Buffer:    make(map[model.ValidatorID][]model.Message),
		Byzantine: make(map[model.ValidatorID]struct{}),
	}
}

// Send queues msg for delivery, or buffers it when a partition separates
// the sender from the recipient.
func (s *State) Send(msg model.Message) {
	if s.IsPartitioned(msg.Sender, msg.Recipient) {
		s.Buffer[msg.Recipient] = append(s.Buffer[msg.Recipient], msg)
		return
	}
	s.Queue = append(s.Queue, msg)
}

// Drain removes and returns every queued message. Buffered messages whose
// partition has healed are released first.
func (s *State) Drain() []model.Message {
	s.releaseBuffered()
	out := s.Queue
	s.Queue = nil
	return out
}

// Take removes and returns up to max queued messages in arrival order,
// after releasing buffered messages whose partition has healed.
func (s *State) Take(max int) []model.Message {
	s.releaseBuffered()
	if max > len(s.Queue) {
		max = len(s.Queue)
	}
	out := append([]model.Message{}, s.Queue[:max]...)
	s.Queue = append(s.Queue[:0], s.Queue[max:]...)
	return out
}

func (s *State) releaseBuffered() {
	recipients := maps.Keys(s.Buffer)
	slices.Sort(recipients)
	for _, r := range recipients {
		held := s.Buffer[r][:0]
		for _, msg := range s.Buffer[r] {
			if s.IsPartitioned(msg.Sender, msg.Recipient) {
				held = append(held, msg)
				continue
			}
			s.Queue = append(s.Queue, msg)
		}
		if len(held) == 0 {
			delete(s.Buffer, r)
			continue
		}
		s.Buffer[r] = held
	}
}

// Partition splits members off from the rest of the committee.
func (s *State) Partition(members []model.ValidatorID) uint64 {
	s.nextPartitionID++
	s.Partitions = append(s.Partitions, Partition{
		ID:        s.nextPartitionID,
		Members:   append([]model.ValidatorID{}, members...),
		CreatedAt: s.Clock,
	})
	return s.nextPartitionID
}

// Heal marks a partition healed. Returns false for unknown ids.
func (s *State) Heal(id uint64) bool {
	for i := range s.Partitions {
		if s.Partitions[i].ID == id {
			if !s.Partitions[i].Healed {
				s.Partitions[i].Healed = true
				s.Partitions[i].HealedAt = s.Clock
			}
			return true
		}
	}
	return false
}

// HealAll heals every unhealed partition and returns how many were healed.
func (s *State) HealAll() int {
	healed := 0
	for i := range s.Partitions {
		if !s.Partitions[i].Healed {
			s.Partitions[i].Healed = true
			s.Partitions[i].HealedAt = s.Clock
			healed++
		}
	}
	return healed
}

// UnhealedPartitions returns the partitions still in effect.
func (s *State) UnhealedPartitions() []Partition {
	var out []Partition
	for _, p := range s.Partitions {
		if !p.Healed {
			out = append(out, p)
		}
	}
	return out
}

// IsPartitioned returns true if an unhealed partition separates a and b.
func (s *State) IsPartitioned(a, b model.ValidatorID) bool {
	for _, p := range s.Partitions {
		if p.separates(a, b) {
			return true
		}
	}
	return false
}

// TrimQueue drops queued messages older than minTimestamp and counts them as dropped.
func (s *State) TrimQueue(minTimestamp uint64) int {
	kept := s.Queue[:0]
	for _, msg := range s.Queue {
		if msg.Timestamp >= minTimestamp {
			kept = append(kept, msg)
		}
	}
	removed := len(s.Queue) - len(kept)
	s.Queue = kept
	s.DroppedMessages += uint64(removed)
	return removed
}

// BufferedCount is the number of messages held back by partitions.
func (s *State) BufferedCount() int {
	total := 0
	for _, held := range s.Buffer {
		total += len(held)
	}
	return total
}

// Drop counts a message that was rejected or lost.
func (s *State) Drop(model.Message) {
	s.DroppedMessages++
}

// RecordDelivery counts a delivered message and remembers its delay.
func (s *State) RecordDelivery(msg model.Message) {
	s.DeliveredMessages++
	s.Deliveries = append(s.Deliveries, Delivery{
		Sender:      msg.Sender,
		Type:        msg.Type,
		SentAt:      msg.Timestamp,
		DeliveredAt: s.Clock,
	})
	if len(s.Deliveries) > maxDeliveries {
		s.Deliveries = append([]Delivery{}, s.Deliveries[len(s.Deliveries)-maxDeliveries:]...)
	}
}

// DropRate is the fraction of messages dropped among dropped and delivered ones.
func (s *State) DropRate() float64 {
	total := s.DroppedMessages + s.DeliveredMessages
	if total == 0 {
		return 0
	}
	return float64(s.DroppedMessages) / float64(total)
}

func (s *State) MarkByzantine(v model.ValidatorID) {
	s.Byzantine[v] = struct{}{}
}

func (s *State) IsByzantine(v model.ValidatorID) bool {
	_, ok := s.Byzantine[v]
	return ok
}

// ByzantineNodes returns the known Byzantine senders in ascending order.
func (s *State) ByzantineNodes() []model.ValidatorID {
	out := maps.Keys(s.Byzantine)
	slices.Sort(out)
	return out
}

// CheckSafety verifies that, after GST, every recorded delivery from an
// honest sender happened within Delta ticks.
func (s *State) CheckSafety() error {
	for _, d := range s.Deliveries {
		if s.IsByzantine(d.Sender) || d.SentAt < s.cfg.GST {
			continue
		}
		if d.DeliveredAt > d.SentAt+s.cfg.Delta {
			return fmt.Errorf("message from %d sent at %d delivered at %d exceeds delta %d",
				d.Sender, d.SentAt, d.DeliveredAt, s.cfg.Delta)
		}
	}
	return nil
}

// CheckLiveness verifies no partition outlives the given timeout past GST.
func (s *State) CheckLiveness(timeout uint64) error {
	if s.Clock <= s.cfg.GST {
		return nil
	}
	for _, p := range s.UnhealedPartitions() {
		start := p.CreatedAt
		if start < s.cfg.GST {
			start = s.cfg.GST
		}
		if s.Clock-start > timeout {
			return fmt.Errorf("partition %d unhealed for %d ticks after GST", p.ID, s.Clock-start)
		}
	}
	return nil
}

// CheckByzantineResilience verifies fewer than a fifth of the stake is known Byzantine.
func (s *State) CheckByzantineResilience() error {
	var stake uint64
	for v := range s.Byzantine {
		stake += s.cfg.StakeOf(v)
	}
	bound := committees.ByzantineStakeBound(s.cfg.TotalStake())
	if len(s.Byzantine) > 0 && stake >= bound {
		return fmt.Errorf("byzantine stake %d reaches bound %d", stake, bound)
	}
	return nil
}
