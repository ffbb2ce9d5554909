// Package intake holds the per-patient intake sessions and their HTTP
// surface.
package intake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/obstetrics"
	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/records"
	"github.com/ehr/intake/internal/domain/section"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
	"github.com/ehr/intake/internal/platform/websocket"
)

// Options are shared by every session of a registry.
type Options struct {
	Storage      storage.Store
	Scheduler    clock.Scheduler
	Logger       zerolog.Logger
	Metrics      *telemetry.Metrics
	Fixtures     *simulation.Fixtures
	SavedDisplay time.Duration
	// Loader, when set, supplies a previous visit for sections that have no
	// saved history of their own.
	Loader PreviousVisitLoader
	// OnStorageError is called for every failed storage read or write.
	OnStorageError func(patientID, section string, err error)
	// Events, when set, receives section changes and save status updates.
	Events websocket.Publisher
}

// Session is the intake state of one patient: five history sections and the
// obstetric section. Callers hold the session lock while using it.
type Session struct {
	mu sync.Mutex

	patientID string
	sections  map[string]sectionAPI
	order     []string
	history   map[string]*section.Section[*history.Item]
	obstetric *obstetrics.Service
	sim       *simulation.Controller
	logger    zerolog.Logger
	publish   func(typ, section, status string)
}

// NewSession builds the sections of patientID and loads their saved visits.
// A section with saved visits offers the latest one as previous data; a
// section without any gets the loader's visit, or its defaults.
func NewSession(ctx context.Context, patientID string, opts Options) (*Session, error) {
	if opts.Fixtures == nil {
		opts.Fixtures = simulation.BuiltinFixtures()
	}
	logger := opts.Logger.With().Str("patient_id", patientID).Logger()
	s := &Session{
		patientID: patientID,
		sections:  make(map[string]sectionAPI),
		history:   make(map[string]*section.Section[*history.Item]),
		logger:    logger,
		publish:   publisher(patientID, opts),
	}

	for _, info := range historySections {
		sec := newHistorySection(patientID, info, opts.Fixtures.Defaults, opts, logger)
		s.history[info.Name] = sec
		kind := info.Kind
		s.add(newAdapter(info, sec, func(v *simulation.Visit) []*history.Item { return v.ItemsOf(kind) }))
	}
	obsTL := timeline.New[*obstetrics.PregnancyRecord](timelineConfig(patientID, obstetricSection, opts, logger))
	s.obstetric = obstetrics.NewService(obstetrics.NewSection(obsTL, opts.Metrics), opts.Metrics)
	s.add(newAdapter(obstetricSection, s.obstetric.Section(), (*simulation.Visit).PregnancyRecords))

	s.sim = simulation.NewController(opts.Fixtures, logger)
	for _, name := range s.order {
		s.sim.Register(s.sections[name].Target())
	}

	var previous *simulation.Visit
	if opts.Loader != nil {
		v, ok, err := opts.Loader.LoadPreviousVisit(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("load previous visit for %s: %w", patientID, err)
		}
		if ok {
			previous = v
		}
	}

	for _, name := range s.order {
		api := s.sections[name]
		api.LoadFromStorage(ctx)
		if api.StartNewEntry() || api.HasHistory() {
			continue
		}
		if api.SeedVisit(previous) {
			continue
		}
		if err := api.LoadDefaults(); err != nil {
			return nil, err
		}
	}
	if opts.Events != nil {
		for _, name := range s.order {
			s.sections[name].Subscribe(func() { s.publish(websocket.EventSectionChanged, name, "") })
		}
	}
	logger.Debug().Int("sections", len(s.order)).Msg("intake session started")
	return s, nil
}

func (s *Session) add(api sectionAPI) {
	name := api.Info().Name
	s.sections[name] = api
	s.order = append(s.order, name)
}

func timelineConfig(patientID string, info SectionInfo, opts Options, logger zerolog.Logger) timeline.Config {
	cfg := timeline.Config{
		Section:      info.Name,
		Key:          PatientKey(patientID, info.StorageKey),
		ItemsField:   info.ItemsField,
		SavedDisplay: opts.SavedDisplay,
		Storage:      opts.Storage,
		Scheduler:    opts.Scheduler,
		Logger:       logger,
		Metrics:      opts.Metrics,
	}
	if opts.OnStorageError != nil {
		hook, name := opts.OnStorageError, info.Name
		cfg.OnStorageError = func(err error) { hook(patientID, name, err) }
	}
	if opts.Events != nil {
		publish, name := publisher(patientID, opts), info.Name
		cfg.OnStatus = func(st timeline.Status) { publish(websocket.EventSaveStatus, name, string(st)) }
	}
	return cfg
}

func publisher(patientID string, opts Options) func(typ, section, status string) {
	if opts.Events == nil {
		return func(string, string, string) {}
	}
	return func(typ, section, status string) {
		e := websocket.Event{Type: typ, PatientID: patientID, Section: section, Status: status}
		if opts.Scheduler != nil {
			e.Timestamp = opts.Scheduler.Now().UTC()
		}
		opts.Events.Publish(e)
	}
}

func newHistorySection(patientID string, info SectionInfo, d history.Defaults, opts Options, logger zerolog.Logger) *section.Section[*history.Item] {
	kind := info.Kind
	wf := reconcile.New(&reconcile.Defaults[*history.Item]{
		Names:            d.Names(kind),
		Make:             func(name string) *history.Item { return history.NewBaseline(kind, name) },
		SupplementOnCopy: kind == history.KindAllergy,
	})
	tl := timeline.New[*history.Item](timelineConfig(patientID, info, opts, logger))
	return section.New(info.Name, history.NewStore(kind), wf, tl, opts.Metrics)
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) PatientID() string { return s.patientID }

func (s *Session) Obstetric() *obstetrics.Service { return s.obstetric }

func (s *Session) section(name string) (sectionAPI, error) {
	api, ok := s.sections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	return api, nil
}

// HistorySection returns one of the five item-based sections.
func (s *Session) HistorySection(name string) (*section.Section[*history.Item], error) {
	sec, ok := s.history[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	return sec, nil
}

// Overview returns the view of every section in display order.
func (s *Session) Overview() map[string]any {
	out := make(map[string]any, len(s.order))
	for _, name := range s.order {
		out[name] = s.sections[name].View()
	}
	return out
}

// AddItem adds a copy of it to the named section. The item's kind is set
// from the section.
func (s *Session) AddItem(name string, it *history.Item) (*history.Item, error) {
	sec, err := s.HistorySection(name)
	if err != nil {
		return nil, err
	}
	c := it.Clone()
	c.Kind = kindOf(name)
	c.Name = strings.TrimSpace(c.Name)
	return sec.Store().Add(c)
}

// UpdateItem replaces the editable fields of an item.
func (s *Session) UpdateItem(name, id string, it *history.Item) (*history.Item, error) {
	sec, err := s.HistorySection(name)
	if err != nil {
		return nil, err
	}
	return sec.Store().Update(id, func(dst *history.Item) {
		dst.Name = strings.TrimSpace(it.Name)
		dst.Status = it.Status
		dst.Notes = it.Notes
		dst.Dose = it.Dose
		dst.Frequency = it.Frequency
		dst.Since = it.Since
		dst.Relationship = it.Relationship
	})
}

// RemoveItem deletes an item. It reports records.ErrNotFound for unknown ids.
func (s *Session) RemoveItem(name, id string) error {
	sec, err := s.HistorySection(name)
	if err != nil {
		return err
	}
	if !sec.Store().Remove(id) {
		return fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return nil
}

func (s *Session) Mode() simulation.Mode { return s.sim.Mode() }

// SetMode applies a simulation mode to every section.
func (s *Session) SetMode(m simulation.Mode) error {
	if err := s.sim.SetMode(m); err != nil {
		return err
	}
	s.obstetric.ClearOverride()
	s.publish(websocket.EventModeChanged, "", string(m))
	return nil
}

// Close detaches every section.
func (s *Session) Close() {
	for _, api := range s.sections {
		api.Dispose()
	}
}

func kindOf(name string) history.Kind {
	for _, info := range historySections {
		if info.Name == name {
			return info.Kind
		}
	}
	return ""
}

// StartNewEntry begins a new visit in the named section. For the obstetric
// section the manual GTPAL override is cleared as well.
func (s *Session) StartNewEntry(name string) (bool, error) {
	api, err := s.section(name)
	if err != nil {
		return false, err
	}
	if name == obstetrics.SectionName {
		s.obstetric.ClearOverride()
	}
	return api.StartNewEntry(), nil
}
