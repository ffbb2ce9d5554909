// Package simulation switches every history section between a first-visit
// baseline and a canned previous visit, for demos and manual testing.
package simulation

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/section"
)

var ErrUnknownMode = errors.New("unknown simulation mode")

type Mode string

const (
	ModeFirstVisit       Mode = "first_visit"
	ModeHasPreviousVisit Mode = "has_previous_visit"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFirstVisit, ModeHasPreviousVisit:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Target is a section driven by the controller.
type Target interface {
	Name() string
	// ResetWorkingState clears answer, items, banner and save status. Saved
	// visits are kept.
	ResetWorkingState()
	LoadDefaults() error
	// SeedFixture offers the section's part of v as previous data.
	SeedFixture(v *Visit) bool
}

type bound[T reconcile.Item[T]] struct {
	*section.Section[T]
	previous func(*Visit) []T
}

func (b bound[T]) SeedFixture(v *Visit) bool {
	return b.SeedPrevious(b.previous(v), v.Date)
}

// Bind adapts a section to Target. previous selects the section's items
// from a fixture visit.
func Bind[T reconcile.Item[T]](sec *section.Section[T], previous func(*Visit) []T) Target {
	return bound[T]{Section: sec, previous: previous}
}

// Controller holds the current mode and applies it to its targets.
type Controller struct {
	mode     Mode
	fixtures *Fixtures
	targets  []Target
	logger   zerolog.Logger
}

func NewController(f *Fixtures, logger zerolog.Logger) *Controller {
	if f == nil {
		f = BuiltinFixtures()
	}
	return &Controller{mode: ModeFirstVisit, fixtures: f, logger: logger}
}

func (c *Controller) Register(targets ...Target) {
	c.targets = append(c.targets, targets...)
}

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) Fixtures() *Fixtures { return c.fixtures }

// SetMode resets the working state of every target and applies mode. In
// first_visit the sections with defaults get them in baseline status; in
// has_previous_visit the fixture visit is offered as previous data.
func (c *Controller) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	c.mode = mode
	for _, t := range c.targets {
		t.ResetWorkingState()
		switch mode {
		case ModeFirstVisit:
			if err := t.LoadDefaults(); err != nil {
				return fmt.Errorf("simulation %s: %w", t.Name(), err)
			}
		case ModeHasPreviousVisit:
			if !t.SeedFixture(c.fixtures.Previous) {
				c.logger.Debug().Str("section", t.Name()).Msg("no previous fixture data")
			}
		}
	}
	c.logger.Info().Str("mode", string(mode)).Int("sections", len(c.targets)).Msg("simulation mode applied")
	return nil
}
