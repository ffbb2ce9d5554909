// Package section combines a record store, the previous-visit workflow and
// the visit timeline into the working state of one history section.
package section

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/records"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/internal/platform/telemetry"
)

var ErrSaveRefused = errors.New("save refused: section answer is not set")

// Section is not safe for concurrent use; callers serialise access.
type Section[T reconcile.Item[T]] struct {
	name     string
	answer   timeline.Answer
	store    *records.Store[T]
	workflow *reconcile.Workflow[T]
	timeline *timeline.Timeline[T]
	metrics  *telemetry.Metrics

	subs    []func()
	unwatch func()
}

func New[T reconcile.Item[T]](name string, store *records.Store[T], wf *reconcile.Workflow[T], tl *timeline.Timeline[T], m *telemetry.Metrics) *Section[T] {
	s := &Section[T]{
		name:     name,
		store:    store,
		workflow: wf,
		timeline: tl,
		metrics:  m,
	}
	s.unwatch = store.Subscribe(s.notify)
	return s
}

func (s *Section[T]) Name() string                     { return s.name }
func (s *Section[T]) Store() *records.Store[T]         { return s.store }
func (s *Section[T]) Workflow() *reconcile.Workflow[T] { return s.workflow }
func (s *Section[T]) Timeline() *timeline.Timeline[T]  { return s.timeline }
func (s *Section[T]) Answer() timeline.Answer          { return s.answer }
func (s *Section[T]) HasDefaults() bool                { return s.workflow.HasDefaults() }

func (s *Section[T]) SetAnswer(a timeline.Answer) error {
	if _, err := timeline.ParseAnswer(string(a)); err != nil {
		return err
	}
	if s.answer == a {
		return nil
	}
	s.answer = a
	s.notify()
	return nil
}

// SeedPrevious offers a previous visit for reconciliation. The banner is
// only armed while the section has no items.
func (s *Section[T]) SeedPrevious(items []T, date string) bool {
	armed := s.workflow.Seed(items, date, s.store.Len() == 0)
	if armed {
		s.notify()
	}
	return armed
}

func (s *Section[T]) CopyPrevious() error {
	if err := s.workflow.CopyAll(s.store); err != nil {
		return s.refused(err)
	}
	s.metrics.ReconcileAction(s.name, "copy")
	s.notify()
	return nil
}

func (s *Section[T]) IgnorePrevious() error {
	if err := s.workflow.Ignore(s.store); err != nil {
		return s.refused(err)
	}
	s.metrics.ReconcileAction(s.name, "ignore")
	s.notify()
	return nil
}

// LoadDefaults replaces the items with the default set in baseline status.
func (s *Section[T]) LoadDefaults() error {
	return s.refused(s.workflow.LoadDefaults(s.store))
}

// Save appends a snapshot of the current items to the timeline. A pending
// previous-visit banner is consumed by a successful save.
func (s *Section[T]) Save(ctx context.Context) (timeline.Snapshot[T], error) {
	snap, ok := s.timeline.Save(ctx, s.store.List(), s.answer)
	if !ok {
		return snap, ErrSaveRefused
	}
	if s.workflow.Dismiss() {
		s.metrics.ReconcileAction(s.name, "dismiss")
	}
	s.notify()
	return snap, nil
}

// ResetWorkingState clears the answer, the items, the save indicator and the
// banner. Saved visits are kept.
func (s *Section[T]) ResetWorkingState() {
	s.answer = timeline.Unanswered
	s.store.Reset()
	s.timeline.ResetStatus()
	s.workflow.Reset()
	s.notify()
}

// StartNewEntry begins a new visit. When visits have been saved, the most
// recent one is offered as the previous visit.
func (s *Section[T]) StartNewEntry() bool {
	s.ResetWorkingState()
	latest, ok := s.timeline.Latest()
	if !ok {
		return false
	}
	return s.SeedPrevious(latest.Items, latest.Date)
}

// LoadFromStorage reads the persisted timeline. It runs once when the
// session starts.
func (s *Section[T]) LoadFromStorage(ctx context.Context) {
	s.timeline.Load(ctx)
	s.notify()
}

// Subscribe registers fn for every change of the section's working state.
func (s *Section[T]) Subscribe(fn func()) {
	s.subs = append(s.subs, fn)
}

// Dispose detaches the section from its store.
func (s *Section[T]) Dispose() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	s.subs = nil
}

func (s *Section[T]) refused(err error) error {
	if errors.Is(err, records.ErrInvariantViolation) {
		s.metrics.InvariantViolation(s.name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (s *Section[T]) notify() {
	for _, fn := range s.subs {
		fn()
	}
}
