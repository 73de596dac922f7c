package model

import (
	"fmt"
)

// MessageType is the type of a transport message.
type MessageType int

const (
	VoteMessage MessageType = iota + 1
	BlockMessage
	CertificateMessage
	RepairRequestMessage
	RepairResponseMessage
	HeartbeatMessage
	ByzantineMessage
	ShredMessage
	RepairMessage
)

var messageTypeNames = map[MessageType]string{
	VoteMessage:           "vote",
	BlockMessage:          "block",
	CertificateMessage:    "certificate",
	RepairRequestMessage:  "repair_request",
	RepairResponseMessage: "repair_response",
	HeartbeatMessage:      "heartbeat",
	ByzantineMessage:      "byzantine",
	ShredMessage:          "shred",
	RepairMessage:         "repair",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown_message_type_%d", int(t))
}

func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func ParseMessageType(s string) (MessageType, error) {
	for t, name := range messageTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

func (t MessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MessageType) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Message is a transport-level message. Signature is a presence marker only,
// no cryptographic verification happens in this model.
type Message struct {
	Sender    ValidatorID `json:"sender"`
	Recipient ValidatorID `json:"recipient"`
	Timestamp uint64      `json:"timestamp"`
	Type      MessageType `json:"type"`
	Payload   []byte      `json:"payload"`
	Signature []byte      `json:"signature"`
}

// Signed returns true if the message carries a signature marker.
func (m Message) Signed() bool {
	return len(m.Signature) > 0
}

func (m Message) Size() uint64 {
	return uint64(len(m.Payload))
}
