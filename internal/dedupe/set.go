// ABOUTME: Bounded insertion-ordered set for deduplicating inbound event ids.
// ABOUTME: Loaded from and saved back to a conversation's processed_event_ids list.

package dedupe

import (
	"container/list"
)

// DefaultMaxIDs bounds how many event ids a conversation remembers.
const DefaultMaxIDs = 200

// Set is a size-limited set of seen event ids. When full, the oldest id is
// evicted first. Uses a doubly-linked list to keep insertion order for O(1)
// eviction. A Set is not safe for concurrent use; callers serialize access
// per conversation.
type Set struct {
	seen    map[string]*list.Element
	order   *list.List // oldest at front
	maxSize int
}

// New returns an empty set holding at most maxSize ids. maxSize <= 0 uses DefaultMaxIDs.
func New(maxSize int) *Set {
	if maxSize <= 0 {
		maxSize = DefaultMaxIDs
	}
	return &Set{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// FromIDs rebuilds a set from a persisted list, oldest first. If ids is
// longer than maxSize only the newest entries are kept.
func FromIDs(ids []string, maxSize int) *Set {
	s := New(maxSize)
	for _, id := range ids {
		s.Mark(id)
	}
	return s
}

// Contains reports whether id has been seen.
func (s *Set) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Mark records id. Marking an existing id does not change its position.
func (s *Set) Mark(id string) {
	if id == "" {
		return
	}
	if _, exists := s.seen[id]; exists {
		return
	}
	for len(s.seen) >= s.maxSize {
		s.evictOldest()
	}
	s.seen[id] = s.order.PushBack(id)
}

// evictOldest removes the front entry.
func (s *Set) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.seen, id)
}

// Len returns the number of ids held.
func (s *Set) Len() int {
	return len(s.seen)
}

// IDs returns the ids in insertion order, oldest first, for persistence.
func (s *Set) IDs() []string {
	out := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}
