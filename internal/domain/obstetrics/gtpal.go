package obstetrics

import (
	"errors"
	"fmt"
)

const (
	termWeeks   = 37
	viableWeeks = 20
)

var ErrInvalidScore = errors.New("invalid GTPAL score")

// GTPALScore is the obstetric summary: gravida, term, preterm, abortive and
// living.
type GTPALScore struct {
	G int `json:"g"`
	T int `json:"t"`
	P int `json:"p"`
	A int `json:"a"`
	L int `json:"l"`
}

func (s GTPALScore) Validate() error {
	if s.G < 0 || s.T < 0 || s.P < 0 || s.A < 0 || s.L < 0 {
		return fmt.Errorf("%w: values must be non-negative", ErrInvalidScore)
	}
	return nil
}

// ComputeGTPAL derives the score from a list of pregnancy records.
//
// Gravida counts every record including the ongoing one. Term and preterm
// count past live births and stillbirths at >=37 and 20-36 weeks. Abortive
// counts past records under 20 weeks or with a miscarriage, abortion or
// ectopic outcome. Living counts past records whose baby is living.
//
// A missing gestation is treated as 0 weeks, so a live birth recorded
// without weeks is counted as abortive and not as term or preterm. The
// record cannot tell "unknown" from "0 weeks"; this is kept as-is until the
// clinical rule is clarified.
func ComputeGTPAL(recs []*PregnancyRecord) GTPALScore {
	var s GTPALScore
	for _, r := range recs {
		if r == nil {
			continue
		}
		s.G++
		if r.Outcome == OutcomeOngoing {
			continue
		}
		weeks := r.Weeks()
		if r.Outcome.IsBirth() {
			switch {
			case weeks >= termWeeks:
				s.T++
			case weeks >= viableWeeks:
				s.P++
			}
		}
		if weeks < viableWeeks || r.Outcome.IsAbortive() {
			s.A++
		}
		if r.BabyStatus == BabyLiving {
			s.L++
		}
	}
	return s
}

// Tracker holds an optional manual override of the computed score. While an
// override is set it replaces the computed value entirely.
type Tracker struct {
	override *GTPALScore
}

func (t *Tracker) SetOverride(s GTPALScore) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.override = &s
	return nil
}

func (t *Tracker) ClearOverride() { t.override = nil }

func (t *Tracker) IsManual() bool { return t.override != nil }

// Effective returns the override when set, otherwise the score computed from
// recs.
func (t *Tracker) Effective(recs []*PregnancyRecord) GTPALScore {
	if t.override != nil {
		return *t.override
	}
	return ComputeGTPAL(recs)
}
