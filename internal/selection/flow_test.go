package selection

import (
	"errors"
	"testing"
	"time"

	"github.com/autogenius/autogenius/internal/catalog"
)

func fixedClock() time.Time {
	return time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
}

func TestEveryManufacturerModelYieldsYearGrid(t *testing.T) {
	for _, make := range catalog.Manufacturers() {
		list, _ := catalog.Models(make)
		for _, model := range list {
			f := New(fixedClock)
			if _, err := f.SelectManufacturer(make); err != nil {
				t.Fatalf("SelectManufacturer(%q): %v", make, err)
			}
			years, err := f.SelectModel(model)
			if err != nil {
				t.Fatalf("SelectModel(%q, %q): %v", make, model, err)
			}
			if years[0] != 2026 || years[len(years)-1] != 2000 {
				t.Fatalf("%s %s: year grid %d..%d", make, model, years[0], years[len(years)-1])
			}
			for i := 1; i < len(years); i++ {
				if years[i] >= years[i-1] {
					t.Fatalf("%s %s: years not descending", make, model)
				}
			}
		}
	}
}

func TestFullFlow(t *testing.T) {
	f := New(fixedClock)
	if f.Step() != StepManufacturer {
		t.Fatalf("initial step = %s", f.Step())
	}

	models, err := f.SelectManufacturer("Toyota")
	if err != nil {
		t.Fatal(err)
	}
	if models[0] != "Camry" {
		t.Errorf("first Toyota model = %q", models[0])
	}
	if f.Step() != StepModel {
		t.Errorf("step = %s, want model", f.Step())
	}

	if _, err := f.SelectModel("RAV4"); err != nil {
		t.Fatal(err)
	}
	v, err := f.SelectYear(2019)
	if err != nil {
		t.Fatal(err)
	}
	want := catalog.Vehicle{Manufacturer: "Toyota", Model: "RAV4", Year: 2019}
	if v != want {
		t.Errorf("vehicle = %+v, want %+v", v, want)
	}
	if f.Step() != StepComplete {
		t.Errorf("step = %s, want complete", f.Step())
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := New(fixedClock)
	if _, err := f.SelectModel("Civic"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SelectModel before manufacturer: %v", err)
	}
	if _, err := f.SelectYear(2010); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SelectYear before model: %v", err)
	}
	if _, err := f.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Back from manufacturer: %v", err)
	}
}

func TestUnknownOptions(t *testing.T) {
	f := New(fixedClock)
	if _, err := f.SelectManufacturer("Yugo"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown manufacturer: %v", err)
	}
	f.SelectManufacturer("Honda")
	if _, err := f.SelectModel("Camry"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("model of another manufacturer: %v", err)
	}
	f.SelectModel("Civic")
	if _, err := f.SelectYear(1999); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("year outside grid: %v", err)
	}
	if _, err := f.SelectYear(2027); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("future year: %v", err)
	}
}

func TestBackKeepsDeeperSelections(t *testing.T) {
	f := New(fixedClock)
	f.SelectManufacturer("Ford")
	f.SelectModel("Mustang")

	step, err := f.Back()
	if err != nil || step != StepModel {
		t.Fatalf("Back() = %s, %v", step, err)
	}
	step, _ = f.Back()
	if step != StepManufacturer {
		t.Fatalf("second Back() = %s", step)
	}
	if got := f.Selection().Model; got != "Mustang" {
		t.Errorf("model after back = %q, want stale Mustang", got)
	}

	f.SelectManufacturer("Kia")
	if got := f.Selection().Manufacturer; got != "Kia" {
		t.Errorf("manufacturer = %q", got)
	}
}

func TestResetClears(t *testing.T) {
	f := New(fixedClock)
	f.SelectManufacturer("Audi")
	f.SelectModel("A4")
	f.SelectYear(2012)
	f.Reset()

	if f.Step() != StepManufacturer {
		t.Errorf("step = %s", f.Step())
	}
	if f.Selection() != (catalog.Vehicle{}) {
		t.Errorf("selection not cleared: %+v", f.Selection())
	}
}

func TestToggleMode(t *testing.T) {
	f := New(nil)
	if f.Mode() != ModeManual {
		t.Fatalf("default mode = %s", f.Mode())
	}
	if f.ToggleMode() != ModeGrid {
		t.Error("expected grid after toggle")
	}
	if f.ToggleMode() != ModeManual {
		t.Error("expected manual after second toggle")
	}
}
