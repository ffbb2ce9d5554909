package intake

import (
	"context"

	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/section"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/domain/timeline"
)

// sectionAPI erases the item type so that history and obstetric sections
// can be driven through the same routes.
type sectionAPI interface {
	Info() SectionInfo
	View() any
	SetAnswer(a timeline.Answer) error
	CopyPrevious() error
	IgnorePrevious() error
	LoadDefaults() error
	Save(ctx context.Context) (any, error)
	StartNewEntry() bool
	Visits() []section.VisitSummary
	Visit(id string) (any, error)
	ViewVisit(id string) (any, error)
	CloseVisit()
	LoadFromStorage(ctx context.Context)
	SeedVisit(v *simulation.Visit) bool
	HasHistory() bool
	Target() simulation.Target
	Subscribe(fn func())
	Dispose()
}

type adapter[T reconcile.Item[T]] struct {
	info     SectionInfo
	sec      *section.Section[T]
	previous func(*simulation.Visit) []T
}

func newAdapter[T reconcile.Item[T]](info SectionInfo, sec *section.Section[T], previous func(*simulation.Visit) []T) *adapter[T] {
	return &adapter[T]{info: info, sec: sec, previous: previous}
}

func (a *adapter[T]) Info() SectionInfo                   { return a.info }
func (a *adapter[T]) View() any                           { return a.sec.View() }
func (a *adapter[T]) SetAnswer(ans timeline.Answer) error { return a.sec.SetAnswer(ans) }
func (a *adapter[T]) CopyPrevious() error                 { return a.sec.CopyPrevious() }
func (a *adapter[T]) IgnorePrevious() error               { return a.sec.IgnorePrevious() }
func (a *adapter[T]) LoadDefaults() error                 { return a.sec.LoadDefaults() }
func (a *adapter[T]) StartNewEntry() bool                 { return a.sec.StartNewEntry() }
func (a *adapter[T]) CloseVisit()                         { a.sec.CloseVisit() }
func (a *adapter[T]) LoadFromStorage(ctx context.Context) { a.sec.LoadFromStorage(ctx) }
func (a *adapter[T]) HasHistory() bool                    { return a.sec.Timeline().Len() > 0 }
func (a *adapter[T]) Subscribe(fn func())                 { a.sec.Subscribe(fn) }
func (a *adapter[T]) Dispose()                            { a.sec.Dispose() }

func (a *adapter[T]) Save(ctx context.Context) (any, error) {
	snap, err := a.sec.Save(ctx)
	if err != nil {
		return nil, err
	}
	return a.sec.Visit(snap.ID)
}

func (a *adapter[T]) Visits() []section.VisitSummary {
	return a.sec.View().Visits
}

func (a *adapter[T]) Visit(id string) (any, error) {
	v, err := a.sec.Visit(id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *adapter[T]) ViewVisit(id string) (any, error) {
	v, err := a.sec.ViewVisit(id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *adapter[T]) SeedVisit(v *simulation.Visit) bool {
	if v == nil {
		return false
	}
	return a.sec.SeedPrevious(a.previous(v), v.Date)
}

func (a *adapter[T]) Target() simulation.Target {
	return simulation.Bind(a.sec, a.previous)
}
