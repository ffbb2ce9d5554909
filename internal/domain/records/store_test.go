package records

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type note struct {
	ID   string
	Text string
	Tags []string
}

func (n *note) GetID() string   { return n.ID }
func (n *note) SetID(id string) { n.ID = id }
func (n *note) Clone() *note {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	return &c
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestStore_AddAssignsID(t *testing.T) {
	s := New[*note](WithIDFunc[*note](seqIDs()))
	in := &note{ID: "caller-supplied", Text: "a"}

	got, err := s.Add(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "id-1" {
		t.Errorf("expected id-1, got %s", got.ID)
	}
	if in.ID != "caller-supplied" {
		t.Error("Add must not modify the caller's value")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 item, got %d", s.Len())
	}
}

func TestStore_ListReturnsCopies(t *testing.T) {
	s := New[*note]()
	s.Add(&note{Text: "a", Tags: []string{"x"}})

	list := s.List()
	list[0].Text = "changed"
	list[0].Tags[0] = "changed"

	again := s.List()
	if again[0].Text != "a" || again[0].Tags[0] != "x" {
		t.Errorf("store was mutated through List(): %+v", again[0])
	}
}

func TestStore_Update(t *testing.T) {
	s := New[*note]()
	n, _ := s.Add(&note{Text: "a"})

	updated, err := s.Update(n.ID, func(x *note) {
		x.Text = "b"
		x.ID = "hijack"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != n.ID {
		t.Errorf("patch must not change id, got %s", updated.ID)
	}
	got, ok := s.Get(n.ID)
	if !ok || got.Text != "b" {
		t.Errorf("expected updated text b, got %+v", got)
	}
}

func TestStore_UpdateUnknown(t *testing.T) {
	s := New[*note]()
	s.Add(&note{Text: "a"})

	_, err := s.Update("missing", func(x *note) { x.Text = "b" })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.List()[0].Text != "a" {
		t.Error("unknown update must not touch the collection")
	}
}

func TestStore_RemoveIsTotal(t *testing.T) {
	s := New[*note]()
	n, _ := s.Add(&note{Text: "a"})

	if s.Remove("missing") {
		t.Error("expected false for unknown id")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 item, got %d", s.Len())
	}
	if !s.Remove(n.ID) {
		t.Error("expected true for known id")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestStore_Filter(t *testing.T) {
	s := New[*note]()
	s.Add(&note{Text: "apple"})
	s.Add(&note{Text: "banana"})
	s.Add(&note{Text: "avocado"})

	got := s.Filter(func(n *note) bool { return strings.HasPrefix(n.Text, "a") })
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestStore_GuardRefusesAdd(t *testing.T) {
	guard := func(others []*note, c *note) error {
		for _, o := range others {
			if o.Text == c.Text {
				return fmt.Errorf("%w: duplicate %s", ErrInvariantViolation, c.Text)
			}
		}
		return nil
	}
	s := New[*note](WithGuard[*note](guard))
	first, _ := s.Add(&note{Text: "a"})

	_, err := s.Add(&note{Text: "a"})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("refused add changed size to %d", s.Len())
	}
	got, _ := s.Get(first.ID)
	if got.Text != "a" {
		t.Error("refused add changed existing item")
	}
}

func TestStore_GuardOnUpdateExcludesSelf(t *testing.T) {
	guard := func(others []*note, c *note) error {
		for _, o := range others {
			if o.Text == c.Text {
				return ErrInvariantViolation
			}
		}
		return nil
	}
	s := New[*note](WithGuard[*note](guard))
	a, _ := s.Add(&note{Text: "a"})
	s.Add(&note{Text: "b"})

	if _, err := s.Update(a.ID, func(n *note) { n.Tags = []string{"t"} }); err != nil {
		t.Fatalf("self-update refused: %v", err)
	}
	if _, err := s.Update(a.ID, func(n *note) { n.Text = "b" }); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestStore_OrderAfterMutation(t *testing.T) {
	s := New[*note](WithOrder[*note](func(a, b *note) bool { return a.Text < b.Text }))
	s.Add(&note{Text: "c"})
	s.Add(&note{Text: "a"})
	s.Add(&note{Text: "b"})

	list := s.List()
	if list[0].Text != "a" || list[1].Text != "b" || list[2].Text != "c" {
		t.Errorf("unexpected order: %s %s %s", list[0].Text, list[1].Text, list[2].Text)
	}
}

func TestStore_ReplaceRekeys(t *testing.T) {
	s := New[*note](WithIDFunc[*note](seqIDs()))
	prev := []*note{{ID: "old-1", Text: "a"}, {ID: "old-2", Text: "b"}}

	if err := s.Replace(prev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range s.List() {
		if n.ID == "old-1" || n.ID == "old-2" {
			t.Errorf("item kept its previous id %s", n.ID)
		}
	}
	if prev[0].ID != "old-1" {
		t.Error("Replace must not modify its input")
	}
}

func TestStore_ReplaceGuardLeavesStoreUntouched(t *testing.T) {
	guard := func(others []*note, c *note) error {
		if len(others) >= 1 {
			return ErrInvariantViolation
		}
		return nil
	}
	s := New[*note](WithGuard[*note](guard))
	s.Add(&note{Text: "keep"})

	err := s.Replace([]*note{{Text: "a"}, {Text: "b"}})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if s.Len() != 1 || s.List()[0].Text != "keep" {
		t.Error("refused Replace modified the store")
	}
}

func TestStore_SubscribeAndReset(t *testing.T) {
	s := New[*note]()
	calls := 0
	unsub := s.Subscribe(func() { calls++ })

	n, _ := s.Add(&note{Text: "a"})
	s.Update(n.ID, func(x *note) { x.Text = "b" })
	s.Remove("missing")
	s.Reset()
	if calls != 3 {
		t.Errorf("expected 3 notifications, got %d", calls)
	}

	unsub()
	s.Add(&note{Text: "c"})
	if calls != 3 {
		t.Errorf("unsubscribed callback still invoked")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 item after reset+add, got %d", s.Len())
	}
}
