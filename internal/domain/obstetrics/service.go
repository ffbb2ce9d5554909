package obstetrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/records"
	"github.com/ehr/intake/internal/domain/section"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/internal/platform/telemetry"
)

const (
	SectionName = "obstetric"
	StorageKey  = "obstetric_history_visits"
	ItemsField  = "records"
)

// Section is the obstetric history section of a visit.
type Section = section.Section[*PregnancyRecord]

// NewSection wires a pregnancy store, a workflow without defaults and the
// given timeline.
func NewSection(tl *timeline.Timeline[*PregnancyRecord], m *telemetry.Metrics) *Section {
	return section.New[*PregnancyRecord](SectionName, NewStore(), reconcile.New[*PregnancyRecord](nil), tl, m)
}

// ScoreView is the GTPAL shown to the user alongside the live computed value.
type ScoreView struct {
	Score    GTPALScore `json:"score"`
	Computed GTPALScore `json:"computed"`
	Manual   bool       `json:"manual"`
	Display  string     `json:"display"`
}

// Service validates pregnancy records and maintains the GTPAL score for one
// patient's obstetric section.
type Service struct {
	sec     *Section
	tracker Tracker
	metrics *telemetry.Metrics
}

func NewService(sec *Section, m *telemetry.Metrics) *Service {
	return &Service{sec: sec, metrics: m}
}

func (s *Service) Section() *Section { return s.sec }

// AddRecord validates r and inserts it. A second ongoing pregnancy is refused
// with records.ErrInvariantViolation.
func (s *Service) AddRecord(r *PregnancyRecord) (*PregnancyRecord, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := r.Clone()
	c.Normalize()
	out, err := s.sec.Store().Add(c)
	if err != nil {
		return nil, s.refused(err)
	}
	return out, nil
}

// UpdateRecord replaces every field of the record with id by those of r.
func (s *Service) UpdateRecord(id string, r *PregnancyRecord) (*PregnancyRecord, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := r.Clone()
	c.Normalize()
	out, err := s.sec.Store().Update(id, func(dst *PregnancyRecord) { *dst = *c })
	if err != nil {
		return nil, s.refused(err)
	}
	return out, nil
}

func (s *Service) RemoveRecord(id string) bool {
	return s.sec.Store().Remove(id)
}

func (s *Service) GetRecord(id string) (*PregnancyRecord, error) {
	r, ok := s.sec.Store().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return r, nil
}

func (s *Service) Records() []*PregnancyRecord { return s.sec.Store().List() }

func (s *Service) Current() *PregnancyRecord { return Current(s.sec.Store().List()) }

// CanAddCurrent reports whether an ongoing pregnancy may be added.
func (s *Service) CanAddCurrent() bool { return s.Current() == nil }

// Score returns the effective score and the live computed value.
func (s *Service) Score() ScoreView {
	recs := s.sec.Store().List()
	eff := s.tracker.Effective(recs)
	return ScoreView{
		Score:    eff,
		Computed: ComputeGTPAL(recs),
		Manual:   s.tracker.IsManual(),
		Display:  FormatScore(eff),
	}
}

func (s *Service) SetOverride(score GTPALScore) error {
	return s.tracker.SetOverride(score)
}

func (s *Service) ClearOverride() { s.tracker.ClearOverride() }

// Save stores a visit snapshot of the pregnancy list.
func (s *Service) Save(ctx context.Context) (timeline.Snapshot[*PregnancyRecord], error) {
	return s.sec.Save(ctx)
}

// Reset starts a new session: working state and override are cleared.
func (s *Service) Reset() {
	s.tracker.ClearOverride()
	s.sec.ResetWorkingState()
}

func (s *Service) refused(err error) error {
	if errors.Is(err, records.ErrInvariantViolation) {
		s.metrics.InvariantViolation(SectionName)
	}
	return err
}
