package obstetrics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRecord = errors.New("invalid pregnancy record")

// Outcome is the result of a pregnancy. OutcomeOngoing marks the current,
// unresolved pregnancy.
type Outcome string

const (
	OutcomeOngoing     Outcome = "ongoing"
	OutcomeLiveBirth   Outcome = "live_birth"
	OutcomeStillbirth  Outcome = "stillbirth"
	OutcomeMiscarriage Outcome = "miscarriage"
	OutcomeAbortion    Outcome = "abortion"
	OutcomeEctopic     Outcome = "ectopic"
)

var validOutcomes = map[Outcome]bool{
	OutcomeOngoing: true, OutcomeLiveBirth: true, OutcomeStillbirth: true,
	OutcomeMiscarriage: true, OutcomeAbortion: true, OutcomeEctopic: true,
}

// IsBirth reports whether the outcome is a delivery (live or still).
func (o Outcome) IsBirth() bool {
	return o == OutcomeLiveBirth || o == OutcomeStillbirth
}

// IsAbortive reports whether the outcome counts as abortive regardless of
// gestation.
func (o Outcome) IsAbortive() bool {
	return o == OutcomeMiscarriage || o == OutcomeAbortion || o == OutcomeEctopic
}

type DeliveryMode string

const (
	DeliveryNVD           DeliveryMode = "nvd"
	DeliveryLSCS          DeliveryMode = "lscs"
	DeliveryInstrumental  DeliveryMode = "instrumental"
	DeliveryVacuum        DeliveryMode = "vacuum"
	DeliveryForceps       DeliveryMode = "forceps"
	DeliveryNotApplicable DeliveryMode = "not_applicable"
)

var validDeliveryModes = map[DeliveryMode]bool{
	DeliveryNVD: true, DeliveryLSCS: true, DeliveryInstrumental: true,
	DeliveryVacuum: true, DeliveryForceps: true, DeliveryNotApplicable: true,
}

type Gender string

const (
	GenderMale          Gender = "male"
	GenderFemale        Gender = "female"
	GenderOther         Gender = "other"
	GenderNotApplicable Gender = "not_applicable"
)

var validGenders = map[Gender]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true, GenderNotApplicable: true,
}

type BabyStatus string

const (
	BabyLiving        BabyStatus = "living"
	BabyDeceased      BabyStatus = "deceased"
	BabyNotApplicable BabyStatus = "not_applicable"
)

var validBabyStatuses = map[BabyStatus]bool{
	BabyLiving: true, BabyDeceased: true, BabyNotApplicable: true,
}

// PregnancyRecord is one pregnancy in a patient's obstetric history.
type PregnancyRecord struct {
	ID             string       `json:"id" yaml:"id,omitempty"`
	Outcome        Outcome      `json:"outcome" yaml:"outcome"`
	Year           string       `json:"year,omitempty" yaml:"year,omitempty"`
	LMPDate        *time.Time   `json:"lmp_date,omitempty" yaml:"lmp_date,omitempty"`
	GestationWeeks *int         `json:"gestation_weeks,omitempty" yaml:"gestation_weeks,omitempty"`
	DeliveryMode   DeliveryMode `json:"delivery_mode,omitempty" yaml:"delivery_mode,omitempty"`
	BirthWeight    string       `json:"birth_weight,omitempty" yaml:"birth_weight,omitempty"`
	Gender         Gender       `json:"gender,omitempty" yaml:"gender,omitempty"`
	BabyStatus     BabyStatus   `json:"baby_status,omitempty" yaml:"baby_status,omitempty"`
	Complications  []string     `json:"complications,omitempty" yaml:"complications,omitempty"`
	Remarks        string       `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

func (r *PregnancyRecord) GetID() string   { return r.ID }
func (r *PregnancyRecord) SetID(id string) { r.ID = id }

func (r *PregnancyRecord) Clone() *PregnancyRecord {
	c := *r
	if r.LMPDate != nil {
		d := *r.LMPDate
		c.LMPDate = &d
	}
	if r.GestationWeeks != nil {
		w := *r.GestationWeeks
		c.GestationWeeks = &w
	}
	if r.Complications != nil {
		c.Complications = append([]string(nil), r.Complications...)
	}
	return &c
}

// DisplayName is the label used in the previous-visit banner.
func (r *PregnancyRecord) DisplayName() string {
	if r.Outcome == OutcomeOngoing {
		return "Current pregnancy"
	}
	label := strings.ReplaceAll(string(r.Outcome), "_", " ")
	return strings.TrimSpace(label + " " + FormatYear(r.Year))
}

// Weeks returns the recorded gestation, or 0 when absent.
func (r *PregnancyRecord) Weeks() int {
	if r.GestationWeeks == nil {
		return 0
	}
	return *r.GestationWeeks
}

// Validate checks enum fields and numeric ranges.
func (r *PregnancyRecord) Validate() error {
	if !validOutcomes[r.Outcome] {
		return fmt.Errorf("%w: invalid outcome %q", ErrInvalidRecord, r.Outcome)
	}
	if r.GestationWeeks != nil && *r.GestationWeeks < 0 {
		return fmt.Errorf("%w: gestation_weeks must be non-negative", ErrInvalidRecord)
	}
	if r.DeliveryMode != "" && !validDeliveryModes[r.DeliveryMode] {
		return fmt.Errorf("%w: invalid delivery_mode %q", ErrInvalidRecord, r.DeliveryMode)
	}
	if r.Gender != "" && !validGenders[r.Gender] {
		return fmt.Errorf("%w: invalid gender %q", ErrInvalidRecord, r.Gender)
	}
	if r.BabyStatus != "" && !validBabyStatuses[r.BabyStatus] {
		return fmt.Errorf("%w: invalid baby_status %q", ErrInvalidRecord, r.BabyStatus)
	}
	return nil
}

// Normalize clears fields that carry no meaning for the record's outcome.
func (r *PregnancyRecord) Normalize() {
	if r.Outcome != OutcomeOngoing {
		r.LMPDate = nil
	}
	if !r.Outcome.IsBirth() {
		r.DeliveryMode = DeliveryNotApplicable
		r.Gender = GenderNotApplicable
		r.BabyStatus = BabyNotApplicable
		r.BirthWeight = ""
	}
	r.Year = strings.TrimSpace(r.Year)
}
