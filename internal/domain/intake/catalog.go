package intake

import (
	"errors"
	"fmt"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/obstetrics"
)

var ErrUnknownSection = errors.New("unknown history section")

// SectionInfo describes where and how a section's visits are persisted.
type SectionInfo struct {
	Name       string
	Kind       history.Kind // empty for the obstetric section
	StorageKey string
	ItemsField string
}

var historySections = []SectionInfo{
	{Name: "past_history", Kind: history.KindCondition, StorageKey: "past_history_2_visits", ItemsField: "conditions"},
	{Name: "allergy_history", Kind: history.KindAllergy, StorageKey: "allergy_history_visits", ItemsField: "allergies"},
	{Name: "medication_history", Kind: history.KindMedication, StorageKey: "medication_history_visits", ItemsField: "medications"},
	{Name: "personal_history", Kind: history.KindHabit, StorageKey: "personal_history_visits", ItemsField: "habits"},
	{Name: "family_history", Kind: history.KindFamily, StorageKey: "family_history_visits", ItemsField: "family"},
}

var obstetricSection = SectionInfo{
	Name:       obstetrics.SectionName,
	StorageKey: obstetrics.StorageKey,
	ItemsField: obstetrics.ItemsField,
}

// Sections lists every section in display order.
func Sections() []SectionInfo {
	out := append([]SectionInfo(nil), historySections...)
	return append(out, obstetricSection)
}

// LookupSection finds a section by name.
func LookupSection(name string) (SectionInfo, error) {
	for _, s := range Sections() {
		if s.Name == name {
			return s, nil
		}
	}
	return SectionInfo{}, fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// PatientKey scopes a section's storage key to one patient.
func PatientKey(patientID, key string) string {
	return "patients/" + patientID + "/" + key
}
