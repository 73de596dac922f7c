package node

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

var (
	ErrNotInitialized     = errors.New("node has not been initialized")
	ErrAlreadyInitialized = errors.New("node is already initialized")
	ErrUnknownMessage     = errors.New("unknown message type")
	ErrRecoveryFailed     = errors.New("recovery failed")
)

// ProtocolViolation is the single error kind returned for a rejected
// certificate, block, vote or transport message. Tag identifies the violated
// check; Msg is human-readable.
type ProtocolViolation struct {
	Tag model.ErrorTag
	Msg string
}

func (e ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation [%s]: %s", e.Tag.Label(), e.Msg)
}

// IsProtocolViolation returns whether err is a ProtocolViolation
func IsProtocolViolation(err error) bool {
	var e ProtocolViolation
	return errors.As(err, &e)
}

// AsProtocolViolation determines whether the given error is a ProtocolViolation
// (potentially wrapped). It follows the same semantics as a checked type cast.
func AsProtocolViolation(err error) (*ProtocolViolation, bool) {
	var e ProtocolViolation
	ok := errors.As(err, &e)
	if ok {
		return &e, true
	}
	return nil, false
}

type errorKey struct {
	component model.ComponentID
	category  model.ErrorCategory
	window    uint64
}

// ErrorSet holds the integration error tags of a node. Tags of the same
// component and category raised within one dedup window collapse into the
// first of them.
type ErrorSet struct {
	window uint64
	tags   map[errorKey]model.ErrorTag
}

func NewErrorSet(dedupWindow uint64) *ErrorSet {
	if dedupWindow == 0 {
		dedupWindow = 1
	}
	return &ErrorSet{
		window: dedupWindow,
		tags:   make(map[errorKey]model.ErrorTag),
	}
}

func (s *ErrorSet) key(tag model.ErrorTag) errorKey {
	return errorKey{
		component: tag.Component,
		category:  tag.Category,
		window:    tag.Timestamp / s.window,
	}
}

// Add inserts tag and returns false if an equivalent tag is already present.
func (s *ErrorSet) Add(tag model.ErrorTag) bool {
	k := s.key(tag)
	if _, ok := s.tags[k]; ok {
		return false
	}
	s.tags[k] = tag
	return true
}

func (s *ErrorSet) Len() int {
	return len(s.tags)
}

// Tags returns all tags ordered by timestamp, component and category.
func (s *ErrorSet) Tags() []model.ErrorTag {
	out := maps.Values(s.tags)
	slices.SortFunc(out, func(a, b model.ErrorTag) int {
		switch {
		case a.Timestamp != b.Timestamp:
			return compare(a.Timestamp, b.Timestamp)
		case a.Component != b.Component:
			return compare(a.Component, b.Component)
		default:
			return compare(a.Category, b.Category)
		}
	})
	return out
}

// Has returns true if any tag of the given component and category is present.
func (s *ErrorSet) Has(component model.ComponentID, category model.ErrorCategory) bool {
	for k := range s.tags {
		if k.component == component && k.category == category {
			return true
		}
	}
	return false
}

// Critical returns the tags whose category survives recovery.
func (s *ErrorSet) Critical() []model.ErrorTag {
	var out []model.ErrorTag
	for _, tag := range s.Tags() {
		if !tag.Category.Recoverable() {
			out = append(out, tag)
		}
	}
	return out
}

// HasCritical returns true if a tag that survives recovery is charged to component.
func (s *ErrorSet) HasCritical(component model.ComponentID) bool {
	for k := range s.tags {
		if k.component == component && !k.category.Recoverable() {
			return true
		}
	}
	return false
}

// RemoveRecoverable drops the recoverable tags charged to any of the given
// components and returns how many were removed.
func (s *ErrorSet) RemoveRecoverable(components ...model.ComponentID) int {
	removed := 0
	for k, tag := range s.tags {
		if tag.Category.Recoverable() && slices.Contains(components, k.component) {
			delete(s.tags, k)
			removed++
		}
	}
	return removed
}

// PruneBefore drops tags raised before tick.
func (s *ErrorSet) PruneBefore(tick uint64) int {
	removed := 0
	for k, tag := range s.tags {
		if tag.Timestamp < tick {
			delete(s.tags, k)
			removed++
		}
	}
	return removed
}

// CountByCategory returns the number of tags per category name.
func (s *ErrorSet) CountByCategory() map[string]int {
	out := make(map[string]int)
	for _, tag := range s.tags {
		out[tag.Category.String()]++
	}
	return out
}

// Reset replaces the content of the set.
func (s *ErrorSet) Reset(tags []model.ErrorTag) {
	s.tags = make(map[errorKey]model.ErrorTag, len(tags))
	for _, tag := range tags {
		s.Add(tag)
	}
}

type ordered interface {
	~int | ~uint32 | ~uint64
}

func compare[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
