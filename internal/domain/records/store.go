package records

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrInvariantViolation is returned when a mutation would break a
	// collection-level rule (for example a second ongoing pregnancy).
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNotFound           = errors.New("record not found")
)

// Entity is implemented by every item kept in a Store. T is the item type
// itself, normally a pointer to a struct.
type Entity[T any] interface {
	GetID() string
	SetID(id string)
	Clone() T
}

// Guard inspects a candidate against the other items of the collection and
// returns an error to refuse the mutation. Guards must not modify either
// argument.
type Guard[T any] func(others []T, candidate T) error

type subscriber struct {
	id int
	fn func()
}

// Store is an in-memory collection of clinical items keyed by synthetic id.
// It is not safe for concurrent use.
type Store[T Entity[T]] struct {
	items []T
	guard Guard[T]
	less  func(a, b T) bool
	newID func() string

	subs    []subscriber
	nextSub int
}

type Option[T Entity[T]] func(*Store[T])

// WithGuard installs a guard that runs before every insert and update.
func WithGuard[T Entity[T]](g Guard[T]) Option[T] {
	return func(s *Store[T]) { s.guard = g }
}

// WithOrder keeps the collection stably sorted by less after each mutation.
func WithOrder[T Entity[T]](less func(a, b T) bool) Option[T] {
	return func(s *Store[T]) { s.less = less }
}

// WithIDFunc overrides the id generator (tests).
func WithIDFunc[T Entity[T]](fn func() string) Option[T] {
	return func(s *Store[T]) { s.newID = fn }
}

func New[T Entity[T]](opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add stores a copy of item under a freshly assigned id and returns that copy.
func (s *Store[T]) Add(item T) (T, error) {
	candidate := item.Clone()
	candidate.SetID(s.newID())
	if s.guard != nil {
		if err := s.guard(s.items, candidate); err != nil {
			var zero T
			return zero, err
		}
	}
	s.items = append(s.items, candidate)
	s.sort()
	s.notify()
	return candidate.Clone(), nil
}

// Update applies patch to a copy of the item with the given id and stores the
// result if the guard accepts it. The id survives any patch.
func (s *Store[T]) Update(id string, patch func(T)) (T, error) {
	var zero T
	idx := s.indexOf(id)
	if idx < 0 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	candidate := s.items[idx].Clone()
	patch(candidate)
	candidate.SetID(id)
	if s.guard != nil {
		others := make([]T, 0, len(s.items)-1)
		others = append(others, s.items[:idx]...)
		others = append(others, s.items[idx+1:]...)
		if err := s.guard(others, candidate); err != nil {
			return zero, err
		}
	}
	s.items[idx] = candidate
	s.sort()
	s.notify()
	return candidate.Clone(), nil
}

// Remove deletes the item with the given id. Unknown ids are ignored.
func (s *Store[T]) Remove(id string) bool {
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.notify()
	return true
}

// Replace swaps the whole collection for copies of items, each under a new id.
// When the guard refuses any item the store is left untouched.
func (s *Store[T]) Replace(items []T) error {
	next := make([]T, 0, len(items))
	for _, it := range items {
		c := it.Clone()
		c.SetID(s.newID())
		if s.guard != nil {
			if err := s.guard(next, c); err != nil {
				return err
			}
		}
		next = append(next, c)
	}
	s.items = next
	s.sort()
	s.notify()
	return nil
}

func (s *Store[T]) Get(id string) (T, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		var zero T
		return zero, false
	}
	return s.items[idx].Clone(), true
}

// List returns deep copies of all items in collection order.
func (s *Store[T]) List() []T {
	return s.Filter(nil)
}

// Filter returns deep copies of the items matching pred. A nil pred matches all.
func (s *Store[T]) Filter(pred func(T) bool) []T {
	out := make([]T, 0, len(s.items))
	for _, it := range s.items {
		if pred == nil || pred(it) {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (s *Store[T]) Len() int { return len(s.items) }

// Reset empties the collection. Subscribers are kept.
func (s *Store[T]) Reset() {
	if len(s.items) == 0 {
		return
	}
	s.items = nil
	s.notify()
}

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it.
func (s *Store[T]) Subscribe(fn func()) func() {
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store[T]) indexOf(id string) int {
	for i, it := range s.items {
		if it.GetID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) sort() {
	if s.less == nil {
		return
	}
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.less(s.items[i], s.items[j])
	})
}

func (s *Store[T]) notify() {
	for _, sub := range s.subs {
		sub.fn()
	}
}
