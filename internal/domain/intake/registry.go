package intake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/ehr/intake/internal/domain/simulation"
)

var ErrInvalidPatientID = errors.New("invalid patient id")

var patientIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// PreviousVisitLoader supplies the previous visit of a patient from outside
// the patient's own saved history.
type PreviousVisitLoader interface {
	LoadPreviousVisit(ctx context.Context, patientID string) (*simulation.Visit, bool, error)
}

// FixtureLoader offers the same canned visit to every patient.
type FixtureLoader struct {
	Fixtures *simulation.Fixtures
}

func (l FixtureLoader) LoadPreviousVisit(context.Context, string) (*simulation.Visit, bool, error) {
	if l.Fixtures == nil || l.Fixtures.Previous == nil {
		return nil, false, nil
	}
	return l.Fixtures.Previous, true, nil
}

// Registry creates sessions on first use and keeps them for the life of the
// process.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.Fixtures == nil {
		opts.Fixtures = simulation.BuiltinFixtures()
	}
	return &Registry{opts: opts, sessions: make(map[string]*Session)}
}

// Acquire returns the locked session of patientID. The caller must call
// release when done.
func (r *Registry) Acquire(ctx context.Context, patientID string) (s *Session, release func(), err error) {
	s, err = r.Get(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	s.Lock()
	return s, s.Unlock, nil
}

// ValidatePatientID reports ErrInvalidPatientID for ids that cannot name a
// storage key.
func ValidatePatientID(patientID string) error {
	if !patientIDPattern.MatchString(patientID) {
		return fmt.Errorf("%w: %q", ErrInvalidPatientID, patientID)
	}
	return nil
}

// Get returns the session of patientID, creating it when needed.
func (r *Registry) Get(ctx context.Context, patientID string) (*Session, error) {
	if err := ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[patientID]; ok {
		return s, nil
	}
	s, err := NewSession(ctx, patientID, r.opts)
	if err != nil {
		return nil, err
	}
	r.sessions[patientID] = s
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close detaches every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Lock()
		s.Close()
		s.Unlock()
		delete(r.sessions, id)
	}
}
