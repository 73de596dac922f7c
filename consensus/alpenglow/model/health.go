package model

import (
	"fmt"
)

// ComponentID identifies one of the node's mandatory components. The set is
// closed: every HealthMap carries exactly one entry per component.
type ComponentID int

const (
	Voting ComponentID = iota
	Dissemination
	Transport
	Crypto

	NumComponents = 4
)

// Components lists all component identifiers in canonical order.
var Components = [NumComponents]ComponentID{Voting, Dissemination, Transport, Crypto}

func (c ComponentID) String() string {
	switch c {
	case Voting:
		return "voting"
	case Dissemination:
		return "dissemination"
	case Transport:
		return "transport"
	case Crypto:
		return "crypto"
	default:
		return fmt.Sprintf("unknown_component_%d", int(c))
	}
}

func (c ComponentID) Valid() bool {
	return c >= Voting && c <= Crypto
}

// Critical components halt the node on failure.
func (c ComponentID) Critical() bool {
	return c == Voting || c == Crypto
}

func ParseComponentID(s string) (ComponentID, error) {
	for _, c := range Components {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown component %q", s)
}

func (c ComponentID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ComponentID) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HealthStatus classifies a single component.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Slow
	Congested
	Degraded
	Partitioned
	Failed
)

var healthNames = [...]string{"healthy", "slow", "congested", "degraded", "partitioned", "failed"}

func (h HealthStatus) String() string {
	if h.Valid() {
		return healthNames[h]
	}
	return fmt.Sprintf("unknown_health_%d", int(h))
}

func (h HealthStatus) Valid() bool {
	return h >= Healthy && h <= Failed
}

// Worse reports whether h is a more severe classification than other.
func (h HealthStatus) Worse(other HealthStatus) bool {
	return h > other
}

// AllowedFor returns true if component c may take status h.
func (h HealthStatus) AllowedFor(c ComponentID) bool {
	if h == Partitioned {
		return c == Transport
	}
	return h.Valid()
}

func ParseHealthStatus(s string) (HealthStatus, error) {
	for i, name := range healthNames {
		if name == s {
			return HealthStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown health status %q", s)
}

func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HealthStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseHealthStatus(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HealthMap holds the health of every component. Indexing by ComponentID
// makes a missing entry unrepresentable.
type HealthMap [NumComponents]HealthStatus

// AllHealthy returns a map with every component Healthy.
func AllHealthy() HealthMap {
	return HealthMap{}
}

// Unhealthy lists the components whose status is not Healthy.
func (m HealthMap) Unhealthy() []ComponentID {
	var out []ComponentID
	for _, c := range Components {
		if m[c] != Healthy {
			out = append(out, c)
		}
	}
	return out
}

// ToMap converts the health map to its named form used in documents.
func (m HealthMap) ToMap() map[string]string {
	out := make(map[string]string, NumComponents)
	for _, c := range Components {
		out[c.String()] = m[c].String()
	}
	return out
}

// HealthMapFromMap is the inverse of ToMap. Every component must be present.
func HealthMapFromMap(in map[string]string) (HealthMap, error) {
	var m HealthMap
	for _, c := range Components {
		raw, ok := in[c.String()]
		if !ok {
			return m, fmt.Errorf("missing health entry for component %s", c)
		}
		h, err := ParseHealthStatus(raw)
		if err != nil {
			return m, fmt.Errorf("component %s: %w", c, err)
		}
		if !h.AllowedFor(c) {
			return m, fmt.Errorf("component %s cannot be %s", c, h)
		}
		m[c] = h
	}
	return m, nil
}

// SystemState is the node's top-level lifecycle state.
type SystemState int

const (
	Initializing SystemState = iota
	Running
	DegradedState
	Recovering
	Halted
)

var systemStateNames = [...]string{"initializing", "running", "degraded", "recovering", "halted"}

func (s SystemState) String() string {
	if s.Valid() {
		return systemStateNames[s]
	}
	return fmt.Sprintf("unknown_system_state_%d", int(s))
}

func (s SystemState) Valid() bool {
	return s >= Initializing && s <= Halted
}

func ParseSystemState(str string) (SystemState, error) {
	for i, name := range systemStateNames {
		if name == str {
			return SystemState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown system state %q", str)
}

func (s SystemState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SystemState) UnmarshalText(text []byte) error {
	parsed, err := ParseSystemState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SystemStateOf maps a health tuple to the system state, in priority order:
// any Failed component halts the node, a partitioned transport or any other
// non-healthy component degrades it.
func SystemStateOf(m HealthMap) SystemState {
	for _, c := range Components {
		if m[c] == Failed {
			return Halted
		}
	}
	if m[Transport] == Partitioned {
		return DegradedState
	}
	for _, c := range Components {
		switch m[c] {
		case Degraded, Congested, Slow:
			return DegradedState
		}
	}
	return Running
}
