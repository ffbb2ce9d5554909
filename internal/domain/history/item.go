package history

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidItem = errors.New("invalid history item")

// Kind identifies the history section an item belongs to.
type Kind string

const (
	KindAllergy    Kind = "allergy"
	KindMedication Kind = "medication"
	KindCondition  Kind = "condition"
	KindHabit      Kind = "habit"
	KindFamily     Kind = "family"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusYes        Status = "yes"
	StatusNo         Status = "no"
	StatusOccasional Status = "occasional"
	StatusUnknown    Status = "unknown"
	StatusPositive   Status = "positive"
	StatusNegative   Status = "negative"
)

var kindStatuses = map[Kind][]Status{
	KindAllergy:    {StatusActive, StatusInactive},
	KindMedication: {StatusActive, StatusInactive},
	KindCondition:  {StatusActive, StatusInactive},
	KindHabit:      {StatusYes, StatusNo, StatusOccasional, StatusUnknown},
	KindFamily:     {StatusPositive, StatusNegative, StatusUnknown},
}

func (k Kind) Valid() bool {
	_, ok := kindStatuses[k]
	return ok
}

// Statuses lists the statuses accepted for the kind.
func (k Kind) Statuses() []Status {
	return append([]Status(nil), kindStatuses[k]...)
}

func (k Kind) Allows(s Status) bool {
	for _, v := range kindStatuses[k] {
		if v == s {
			return true
		}
	}
	return false
}

// Baseline is the "not present" status used when seeding defaults.
func (k Kind) Baseline() Status {
	switch k {
	case KindHabit:
		return StatusNo
	case KindFamily:
		return StatusNegative
	default:
		return StatusInactive
	}
}

// Item is a single allergy, medication, condition, habit or family history
// entry.
type Item struct {
	ID           string `json:"id" yaml:"id,omitempty"`
	Kind         Kind   `json:"kind" yaml:"kind,omitempty"`
	Name         string `json:"name" yaml:"name"`
	Status       Status `json:"status" yaml:"status"`
	Notes        string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Dose         string `json:"dose,omitempty" yaml:"dose,omitempty"`
	Frequency    string `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Since        string `json:"since,omitempty" yaml:"since,omitempty"`
	Relationship string `json:"relationship,omitempty" yaml:"relationship,omitempty"`
}

func (i *Item) GetID() string   { return i.ID }
func (i *Item) SetID(id string) { i.ID = id }

func (i *Item) Clone() *Item {
	c := *i
	return &c
}

func (i *Item) DisplayName() string { return i.Name }

// Validate checks the name and that the status belongs to the item's kind.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("%w: invalid kind %q", ErrInvalidItem, i.Kind)
	}
	if !i.Kind.Allows(i.Status) {
		return fmt.Errorf("%w: status %q not allowed for %s", ErrInvalidItem, i.Status, i.Kind)
	}
	return nil
}

// NewBaseline returns an item of the given kind in its baseline status.
func NewBaseline(kind Kind, name string) *Item {
	return &Item{Kind: kind, Name: name, Status: kind.Baseline()}
}
