package section

import (
	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/timeline"
)

// Banner is the previous-visit prompt as shown to the user.
type Banner[T any] struct {
	State reconcile.State `json:"state"`
	Date  string          `json:"date,omitempty"`
	Items []T             `json:"items,omitempty"`
}

// VisitSummary lists a saved visit without its items.
type VisitSummary struct {
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Answer timeline.Answer `json:"answer"`
	Items  int             `json:"items"`
}

// View is a read-only projection of a section for rendering.
type View[T any] struct {
	Name       string          `json:"name"`
	Answer     timeline.Answer `json:"answer"`
	Items      []T             `json:"items"`
	Banner     Banner[T]       `json:"banner"`
	SaveStatus timeline.Status `json:"save_status"`
	Visits     []VisitSummary  `json:"visits"`
	Viewing    *VisitView[T]   `json:"viewing,omitempty"`
}

// VisitView is a saved visit with its items.
type VisitView[T any] struct {
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Answer timeline.Answer `json:"answer"`
	Items  []T             `json:"items"`
}

func visitView[T reconcile.Item[T]](s timeline.Snapshot[T]) *VisitView[T] {
	return &VisitView[T]{ID: s.ID, Date: s.Date, Answer: s.Answer, Items: s.Items}
}

// View builds the projection. It never mutates the section.
func (s *Section[T]) View() View[T] {
	v := View[T]{
		Name:       s.name,
		Answer:     s.answer,
		Items:      s.store.List(),
		SaveStatus: s.timeline.Status(),
		Banner:     Banner[T]{State: s.workflow.State()},
	}
	if s.workflow.Pending() {
		v.Banner.Date = s.workflow.PreviousDate()
		v.Banner.Items = s.workflow.Previous()
	}
	for _, snap := range s.timeline.History() {
		v.Visits = append(v.Visits, VisitSummary{
			ID: snap.ID, Date: snap.Date, Answer: snap.Answer, Items: len(snap.Items),
		})
	}
	if viewing, ok := s.timeline.Viewing(); ok {
		v.Viewing = visitView(viewing)
	}
	return v
}

// Visit returns a saved visit by id.
func (s *Section[T]) Visit(id string) (*VisitView[T], error) {
	snap, err := s.timeline.Get(id)
	if err != nil {
		return nil, err
	}
	return visitView(snap), nil
}

// ViewVisit opens a saved visit for read-only display.
func (s *Section[T]) ViewVisit(id string) (*VisitView[T], error) {
	snap, err := s.timeline.View(id)
	if err != nil {
		return nil, err
	}
	s.notify()
	return visitView(snap), nil
}

func (s *Section[T]) CloseVisit() {
	s.timeline.CloseView()
	s.notify()
}
