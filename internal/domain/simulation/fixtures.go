package simulation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/obstetrics"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Visit is a previous visit across all sections.
type Visit struct {
	Date        string                           `yaml:"date" json:"date"`
	Items       map[history.Kind][]*history.Item `yaml:"items" json:"items"`
	Pregnancies []*obstetrics.PregnancyRecord    `yaml:"pregnancies" json:"pregnancies"`
}

// ItemsOf returns copies of the previous items of kind.
func (v *Visit) ItemsOf(kind history.Kind) []*history.Item {
	if v == nil {
		return nil
	}
	src := v.Items[kind]
	out := make([]*history.Item, len(src))
	for i, it := range src {
		out[i] = it.Clone()
	}
	return out
}

func (v *Visit) PregnancyRecords() []*obstetrics.PregnancyRecord {
	if v == nil {
		return nil
	}
	out := make([]*obstetrics.PregnancyRecord, len(v.Pregnancies))
	for i, r := range v.Pregnancies {
		out[i] = r.Clone()
	}
	return out
}

// Fixtures holds the default lists and the canned previous visit.
type Fixtures struct {
	Defaults history.Defaults `yaml:"defaults"`
	Previous *Visit           `yaml:"previous_visit"`
}

// BuiltinFixtures returns the bundled fixtures with the bundled defaults.
func BuiltinFixtures() *Fixtures {
	f, err := ParseFixtures(fixturesYAML)
	if err != nil {
		panic(fmt.Sprintf("bundled fixtures.yaml: %v", err))
	}
	return f
}

// ParseFixtures decodes and validates a fixtures document. Items take their
// kind from the map key; a missing defaults block falls back to the bundled
// defaults.
func ParseFixtures(b []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for k := range f.Defaults {
		if !k.Valid() {
			return nil, fmt.Errorf("parse fixtures: unknown default kind %q", k)
		}
	}
	if f.Defaults == nil {
		f.Defaults = history.BuiltinDefaults()
	}
	if f.Previous == nil {
		f.Previous = &Visit{}
	}
	for kind, items := range f.Previous.Items {
		for _, it := range items {
			it.Kind = kind
			if err := it.Validate(); err != nil {
				return nil, fmt.Errorf("parse fixtures: %w", err)
			}
		}
	}
	for _, r := range f.Previous.Pregnancies {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("parse fixtures: %w", err)
		}
		r.Normalize()
	}
	if countOngoing(f.Previous.Pregnancies) > 1 {
		return nil, fmt.Errorf("parse fixtures: more than one ongoing pregnancy")
	}
	return &f, nil
}

// LoadFixtures reads fixtures from path, or the bundled ones when path is
// empty.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return BuiltinFixtures(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(b)
}

func countOngoing(recs []*obstetrics.PregnancyRecord) int {
	n := 0
	for _, r := range recs {
		if r.Outcome == obstetrics.OutcomeOngoing {
			n++
		}
	}
	return n
}
