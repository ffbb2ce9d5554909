package obstetrics

import (
	"fmt"
	"strings"

	"github.com/ehr/intake/internal/domain/records"
)

// Store is the pregnancy collection of one patient.
type Store = records.Store[*PregnancyRecord]

// NewStore returns a store that allows a single ongoing pregnancy and keeps
// records ordered ongoing-first, then by descending year.
func NewStore(opts ...records.Option[*PregnancyRecord]) *Store {
	base := []records.Option[*PregnancyRecord]{
		records.WithGuard[*PregnancyRecord](singleOngoing),
		records.WithOrder[*PregnancyRecord](byRecency),
	}
	return records.New[*PregnancyRecord](append(base, opts...)...)
}

func singleOngoing(others []*PregnancyRecord, candidate *PregnancyRecord) error {
	if candidate.Outcome != OutcomeOngoing {
		return nil
	}
	for _, r := range others {
		if r.Outcome == OutcomeOngoing {
			return fmt.Errorf("%w: an ongoing pregnancy already exists (%s)", records.ErrInvariantViolation, r.ID)
		}
	}
	return nil
}

func byRecency(a, b *PregnancyRecord) bool {
	aOngoing, bOngoing := a.Outcome == OutcomeOngoing, b.Outcome == OutcomeOngoing
	if aOngoing != bOngoing {
		return aOngoing
	}
	return ParseYear(a.Year) > ParseYear(b.Year)
}

// ParseYear reads the leading digits of s as a year. Empty or unparsable
// input yields 0.
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	year := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		year = year*10 + int(ch-'0')
		if year > 99999 {
			return 0
		}
	}
	return year
}

// Current returns the ongoing pregnancy in recs, or nil.
func Current(recs []*PregnancyRecord) *PregnancyRecord {
	for _, r := range recs {
		if r.Outcome == OutcomeOngoing {
			return r
		}
	}
	return nil
}

// Past returns all records that are not ongoing.
func Past(recs []*PregnancyRecord) []*PregnancyRecord {
	out := make([]*PregnancyRecord, 0, len(recs))
	for _, r := range recs {
		if r.Outcome != OutcomeOngoing {
			out = append(out, r)
		}
	}
	return out
}
