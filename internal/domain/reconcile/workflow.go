// Package reconcile implements the one-shot "copy from previous visit"
// prompt shared by every history section.
package reconcile

import (
	"errors"
	"strings"

	"github.com/ehr/intake/internal/domain/records"
)

var ErrNoPendingData = errors.New("no pending previous-visit data")

type State string

const (
	NoPreviousData      State = "no_previous_data"
	PendingPreviousData State = "pending_previous_data"
	Reconciled          State = "reconciled"
)

// Item is an entity that can be shown in the banner and matched by name.
type Item[T any] interface {
	records.Entity[T]
	DisplayName() string
}

// Defaults is a section's preferred item set. Make builds one default item
// in its baseline status. When SupplementOnCopy is set, CopyAll appends the
// defaults missing from the copied set.
type Defaults[T any] struct {
	Names            []string
	Make             func(name string) T
	SupplementOnCopy bool
}

// Workflow holds the previous-visit banner of one section. Previous data is
// read-only and is consumed by CopyAll, Ignore or Dismiss.
type Workflow[T Item[T]] struct {
	state        State
	previous     []T
	previousDate string
	defaults     *Defaults[T]
}

// New returns a workflow in NoPreviousData. defaults may be nil.
func New[T Item[T]](defaults *Defaults[T]) *Workflow[T] {
	return &Workflow[T]{state: NoPreviousData, defaults: defaults}
}

func (w *Workflow[T]) State() State { return w.state }

func (w *Workflow[T]) Pending() bool { return w.state == PendingPreviousData }

func (w *Workflow[T]) HasDefaults() bool {
	return w.defaults != nil && len(w.defaults.Names) > 0
}

// Previous returns copies of the previous-visit items.
func (w *Workflow[T]) Previous() []T {
	return cloneAll(w.previous)
}

func (w *Workflow[T]) PreviousDate() string { return w.previousDate }

// Seed arms the banner with previous-visit data. It only transitions from
// NoPreviousData (or refreshes a pending banner) and only while the current
// collection is empty; it reports whether the banner is now pending.
func (w *Workflow[T]) Seed(previous []T, date string, currentEmpty bool) bool {
	if w.state == Reconciled || !currentEmpty || len(previous) == 0 {
		return false
	}
	w.previous = cloneAll(previous)
	w.previousDate = date
	w.state = PendingPreviousData
	return true
}

// CopyAll replaces store's contents with re-keyed copies of the previous
// items and, for sections that supplement on copy, appends the defaults not
// already present (names compared case-insensitively).
func (w *Workflow[T]) CopyAll(store *records.Store[T]) error {
	if w.state != PendingPreviousData {
		return ErrNoPendingData
	}
	items := cloneAll(w.previous)
	if w.defaults != nil && w.defaults.SupplementOnCopy {
		items = w.supplement(items)
	}
	if err := store.Replace(items); err != nil {
		return err
	}
	w.consume()
	return nil
}

// Ignore clears the banner without copying. Sections with defaults are set
// to exactly the default set; others are left empty.
func (w *Workflow[T]) Ignore(store *records.Store[T]) error {
	if w.state != PendingPreviousData {
		return ErrNoPendingData
	}
	if w.HasDefaults() {
		if err := store.Replace(w.DefaultItems()); err != nil {
			return err
		}
	}
	w.consume()
	return nil
}

// Dismiss clears a pending banner without touching any collection. It is
// used when a save consumes the prompt.
func (w *Workflow[T]) Dismiss() bool {
	if w.state != PendingPreviousData {
		return false
	}
	w.consume()
	return true
}

// Reset starts a new session: the banner can be armed again.
func (w *Workflow[T]) Reset() {
	w.state = NoPreviousData
	w.previous = nil
	w.previousDate = ""
}

// DefaultItems builds the default set, dropping duplicate names.
func (w *Workflow[T]) DefaultItems() []T {
	if w.defaults == nil {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]T, 0, len(w.defaults.Names))
	for _, name := range w.defaults.Names {
		k := nameKey(name)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, w.defaults.Make(name))
	}
	return out
}

// LoadDefaults fills store with the default set (first-visit baseline). The
// banner state is not changed.
func (w *Workflow[T]) LoadDefaults(store *records.Store[T]) error {
	if !w.HasDefaults() {
		store.Reset()
		return nil
	}
	return store.Replace(w.DefaultItems())
}

func (w *Workflow[T]) supplement(copied []T) []T {
	seen := make(map[string]bool, len(copied))
	out := make([]T, 0, len(copied)+len(w.defaults.Names))
	for _, it := range copied {
		k := nameKey(it.DisplayName())
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	for _, d := range w.DefaultItems() {
		k := nameKey(d.DisplayName())
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

func (w *Workflow[T]) consume() {
	w.previous = nil
	w.state = Reconciled
}

func cloneAll[T records.Entity[T]](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// nameKey normalises a name for case-insensitive comparison.
func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
