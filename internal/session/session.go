// Package session implements the immutable execution context threaded
// through a virtual user's scenario. Every operation takes a Session by
// value and returns a new one; stacks and the attribute map are copied on
// write so that retained snapshots stay independently inspectable.
package session

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrAttributeMissing indicates an attribute lookup for a key that is not
// present in the session.
var ErrAttributeMissing = errors.New("session attribute not found")

// CastError indicates an attribute exists but does not have the requested
// type.
type CastError struct {
	Key  string
	Have any
	Want string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("session attribute %q is %T, not %s", e.Key, e.Have, e.Want)
}

// Session is the per-virtual-user execution context. The zero value is not
// usable; construct with New.
//
// A Session is a plain value: none of its methods mutate the receiver, and
// two copies never share mutable backing storage. It must not be shared
// across goroutines while a scenario is executing, but copies taken at any
// point remain valid snapshots.
type Session struct {
	Scenario  string
	UserID    int64
	StartDate time.Time
	// Drift accumulates scheduling skew from pauses so pacing stays
	// accurate across iterations.
	Drift time.Duration

	attributes     map[string]any
	groupStack     []GroupBlock
	statusStack    []Status
	interruptStack []Handler
	counterStack   []string
}

// New creates the context for one virtual user at scenario start.
func New(scenario string, userID int64) Session {
	return Session{
		Scenario:    scenario,
		UserID:      userID,
		StartDate:   time.Now(),
		statusStack: []Status{Passed},
	}
}

// Get returns the raw attribute value and whether it exists.
func (s Session) Get(key string) (any, bool) {
	v, ok := s.attributes[key]
	return v, ok
}

// Contains reports whether an attribute is set.
func (s Session) Contains(key string) bool {
	_, ok := s.attributes[key]
	return ok
}

// SetAttribute returns a copy with key set to value.
func (s Session) SetAttribute(key string, value any) Session {
	attrs := copyAttributes(s.attributes, 1)
	attrs[key] = value
	s.attributes = attrs
	return s
}

// SetAttributes returns a copy with all pairs merged in; last write for a
// key wins.
func (s Session) SetAttributes(pairs map[string]any) Session {
	if len(pairs) == 0 {
		return s
	}
	attrs := copyAttributes(s.attributes, len(pairs))
	for k, v := range pairs {
		attrs[k] = v
	}
	s.attributes = attrs
	return s
}

// RemoveAttribute returns a copy without key. Removing an absent key is a
// no-op copy.
func (s Session) RemoveAttribute(key string) Session {
	if _, ok := s.attributes[key]; !ok {
		return s
	}
	attrs := copyAttributes(s.attributes, 0)
	delete(attrs, key)
	if len(attrs) == 0 {
		attrs = nil
	}
	s.attributes = attrs
	return s
}

// Attribute is the validating accessor: it returns ErrAttributeMissing for
// an absent key and a *CastError when the value is not a T.
func Attribute[T any](s Session, key string) (T, error) {
	var zero T
	v, ok := s.attributes[key]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrAttributeMissing, key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, &CastError{Key: key, Have: v, Want: fmt.Sprintf("%T", zero)}
	}
	return t, nil
}

// MustAttribute is the contract-violation accessor: an absent key or a
// mistyped value is a caller bug and panics.
func MustAttribute[T any](s Session, key string) T {
	t, err := Attribute[T](s, key)
	if err != nil {
		panic(err)
	}
	return t
}

// Equal reports structural equality. Interrupt handlers are function values
// and compare by count only.
func (s Session) Equal(other Session) bool {
	return s.Scenario == other.Scenario &&
		s.UserID == other.UserID &&
		s.StartDate.Equal(other.StartDate) &&
		s.Drift == other.Drift &&
		reflect.DeepEqual(s.attributes, other.attributes) &&
		reflect.DeepEqual(s.groupStack, other.groupStack) &&
		reflect.DeepEqual(s.statusStack, other.statusStack) &&
		reflect.DeepEqual(s.counterStack, other.counterStack) &&
		len(s.interruptStack) == len(other.interruptStack)
}

func copyAttributes(m map[string]any, extra int) map[string]any {
	out := make(map[string]any, len(m)+extra)
	for k, v := range m {
		out[k] = v
	}
	return out
}
