package node

import (
	"github.com/ef-ds/deque"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// InteractionLog is the append-only record of cross-component hand-offs.
// Entries arrive in timestamp order, so pruning only ever pops the front.
type InteractionLog struct {
	entries deque.Deque
}

func NewInteractionLog() *InteractionLog {
	return &InteractionLog{}
}

func (l *InteractionLog) Append(entry model.Interaction) {
	l.entries.PushBack(entry)
}

func (l *InteractionLog) Len() int {
	return l.entries.Len()
}

// PruneBefore drops the entries older than tick and returns how many were dropped.
func (l *InteractionLog) PruneBefore(tick uint64) int {
	removed := 0
	for l.entries.Len() > 0 {
		front, _ := l.entries.Front()
		if front.(model.Interaction).Timestamp >= tick {
			break
		}
		l.entries.PopFront()
		removed++
	}
	return removed
}

// Entries returns a copy of the log, oldest first.
func (l *InteractionLog) Entries() []model.Interaction {
	n := l.entries.Len()
	out := make([]model.Interaction, 0, n)
	// the deque has no random access: rotate through it once
	for i := 0; i < n; i++ {
		v, _ := l.entries.PopFront()
		l.entries.PushBack(v)
		out = append(out, v.(model.Interaction))
	}
	return out
}

// Routes counts entries per "source->target" route.
func (l *InteractionLog) Routes() map[string]uint64 {
	out := make(map[string]uint64)
	for _, e := range l.Entries() {
		out[e.Route()]++
	}
	return out
}

// CountByType counts entries per interaction type name.
func (l *InteractionLog) CountByType() map[string]uint64 {
	out := make(map[string]uint64)
	for _, e := range l.Entries() {
		out[e.Type.String()]++
	}
	return out
}

// Reset replaces the log content.
func (l *InteractionLog) Reset(entries []model.Interaction) {
	l.entries = deque.Deque{}
	for _, e := range entries {
		l.entries.PushBack(e)
	}
}
