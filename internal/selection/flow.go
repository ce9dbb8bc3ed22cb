// Package selection implements the three-step manufacturer → model → year
// vehicle picker as an explicit state machine.
package selection

import (
	"errors"
	"fmt"
	"time"

	"github.com/autogenius/autogenius/internal/catalog"
)

// Step is the currently visible grid.
type Step int

const (
	StepManufacturer Step = iota
	StepModel
	StepYear
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepManufacturer:
		return "manufacturer"
	case StepModel:
		return "model"
	case StepYear:
		return "year"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Mode selects between the grids and free-text entry.
type Mode int

const (
	ModeManual Mode = iota
	ModeGrid
)

func (m Mode) String() string {
	if m == ModeGrid {
		return "grid"
	}
	return "manual"
}

var (
	ErrInvalidTransition = errors.New("invalid selection transition")
	ErrUnknownOption     = errors.New("unknown option")
)

// Flow tracks the grid selection. The zero value is not usable; call New.
type Flow struct {
	step  Step
	mode  Mode
	now   func() time.Time
	sel   catalog.Vehicle
	years []int
}

// New returns a flow positioned on the manufacturer grid in manual mode.
// now may be nil, in which case time.Now is used.
func New(now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{step: StepManufacturer, mode: ModeManual, now: now}
}

func (f *Flow) Step() Step { return f.step }
func (f *Flow) Mode() Mode { return f.mode }

// Selection returns the current (possibly partial) selection.
func (f *Flow) Selection() catalog.Vehicle { return f.sel }

// ToggleMode switches between manual entry and the grids.
func (f *Flow) ToggleMode() Mode {
	if f.mode == ModeManual {
		f.mode = ModeGrid
	} else {
		f.mode = ModeManual
	}
	return f.mode
}

// SetMode forces a mode.
func (f *Flow) SetMode(m Mode) { f.mode = m }

// Manufacturers returns the manufacturer grid.
func (f *Flow) Manufacturers() []string { return catalog.Manufacturers() }

// SelectManufacturer records the manufacturer and returns the model grid.
func (f *Flow) SelectManufacturer(name string) ([]string, error) {
	if f.step != StepManufacturer {
		return nil, fmt.Errorf("%w: manufacturer selected during %s step", ErrInvalidTransition, f.step)
	}
	list, ok := catalog.Models(name)
	if !ok {
		return nil, fmt.Errorf("%w: manufacturer %q", ErrUnknownOption, name)
	}
	f.sel.Manufacturer = name
	f.step = StepModel
	return list, nil
}

// SelectModel records the model and returns the year grid.
func (f *Flow) SelectModel(name string) ([]int, error) {
	if f.step != StepModel {
		return nil, fmt.Errorf("%w: model selected during %s step", ErrInvalidTransition, f.step)
	}
	if !catalog.HasModel(f.sel.Manufacturer, name) {
		return nil, fmt.Errorf("%w: model %q for %s", ErrUnknownOption, name, f.sel.Manufacturer)
	}
	f.sel.Model = name
	f.years = catalog.Years(f.now())
	f.step = StepYear
	return f.years, nil
}

// SelectYear completes the selection.
func (f *Flow) SelectYear(year int) (catalog.Vehicle, error) {
	if f.step != StepYear {
		return catalog.Vehicle{}, fmt.Errorf("%w: year selected during %s step", ErrInvalidTransition, f.step)
	}
	found := false
	for _, y := range f.years {
		if y == year {
			found = true
			break
		}
	}
	if !found {
		return catalog.Vehicle{}, fmt.Errorf("%w: year %d", ErrUnknownOption, year)
	}
	f.sel.Year = year
	f.step = StepComplete
	return f.sel, nil
}

// Back moves one grid back. Deeper selections are kept, so returning to the
// manufacturer grid after picking a model leaves that model recorded until it
// is overwritten.
func (f *Flow) Back() (Step, error) {
	switch f.step {
	case StepModel:
		f.step = StepManufacturer
	case StepYear:
		f.step = StepModel
	case StepComplete:
		f.step = StepYear
	default:
		return f.step, fmt.Errorf("%w: no step before %s", ErrInvalidTransition, f.step)
	}
	return f.step, nil
}

// Load positions the flow on a vehicle restored from history.
func (f *Flow) Load(v catalog.Vehicle) {
	f.sel = v
	f.step = StepComplete
}

// Reset clears every selection and returns to the manufacturer grid.
func (f *Flow) Reset() {
	f.sel = catalog.Vehicle{}
	f.years = nil
	f.step = StepManufacturer
}
