// Package catalog holds the static manufacturer/model table used to populate
// the vehicle selection grids, and the validation rules for free-text entry.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// FirstGridYear is the oldest year offered by the year grid.
	FirstGridYear = 2000
	// FirstManualYear is the oldest year accepted from manual entry.
	FirstManualYear = 1900
)

var (
	ErrMissingField = errors.New("please fill in all fields")
	ErrInvalidYear  = errors.New("invalid year")
)

// Vehicle identifies the car a chat session is about.
type Vehicle struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
	Year         int    `json:"year" yaml:"year"`
}

// String renders the vehicle the way it is shown in chat titles.
func (v Vehicle) String() string {
	return fmt.Sprintf("%d %s %s", v.Year, v.Manufacturer, v.Model)
}

// Complete reports whether all three fields are set.
func (v Vehicle) Complete() bool {
	return strings.TrimSpace(v.Manufacturer) != "" && strings.TrimSpace(v.Model) != "" && v.Year != 0
}

var models = map[string][]string{
	"Acura":         {"ILX", "MDX", "RDX", "TLX"},
	"Audi":          {"A3", "A4", "A6", "Q3", "Q5", "Q7"},
	"BMW":           {"3 Series", "5 Series", "X3", "X5"},
	"Chevrolet":     {"Camaro", "Corvette", "Equinox", "Malibu", "Silverado", "Tahoe"},
	"Ford":          {"Escape", "Explorer", "F-150", "Focus", "Mustang"},
	"Honda":         {"Accord", "Civic", "CR-V", "Odyssey", "Pilot"},
	"Hyundai":       {"Elantra", "Santa Fe", "Sonata", "Tucson"},
	"Jeep":          {"Cherokee", "Grand Cherokee", "Wrangler"},
	"Kia":           {"Forte", "Optima", "Sorento", "Soul", "Sportage"},
	"Lexus":         {"ES", "IS", "NX", "RX"},
	"Mazda":         {"CX-5", "CX-9", "Mazda3", "Mazda6"},
	"Mercedes-Benz": {"C-Class", "E-Class", "GLC", "GLE"},
	"Nissan":        {"Altima", "Maxima", "Murano", "Pathfinder", "Rogue"},
	"Subaru":        {"Crosstrek", "Forester", "Impreza", "Outback"},
	"Tesla":         {"Model 3", "Model S", "Model X", "Model Y"},
	"Toyota":        {"Camry", "Corolla", "Highlander", "RAV4", "Tacoma", "Tundra"},
	"Volkswagen":    {"Atlas", "Golf", "Jetta", "Passat", "Tiguan"},
}

// Manufacturers returns every manufacturer, sorted alphabetically.
func Manufacturers() []string {
	out := make([]string, 0, len(models))
	for m := range models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Models returns the models of the given manufacturer sorted alphabetically.
// The second result is false for an unknown manufacturer.
func Models(manufacturer string) ([]string, bool) {
	list, ok := models[manufacturer]
	if !ok {
		return nil, false
	}
	out := make([]string, len(list))
	copy(out, list)
	sort.Strings(out)
	return out, true
}

// HasModel reports whether model belongs to manufacturer.
func HasModel(manufacturer, model string) bool {
	for _, m := range models[manufacturer] {
		if m == model {
			return true
		}
	}
	return false
}

// Years returns the year grid: the current calendar year down to 2000.
func Years(now time.Time) []int {
	current := now.Year()
	if current < FirstGridYear {
		return nil
	}
	out := make([]int, 0, current-FirstGridYear+1)
	for y := current; y >= FirstGridYear; y-- {
		out = append(out, y)
	}
	return out
}

// ValidateManual checks free-text vehicle details. All fields must be
// non-empty and the year must fall in [1900, current year].
func ValidateManual(manufacturer, model, year string, now time.Time) (Vehicle, error) {
	manufacturer = strings.TrimSpace(manufacturer)
	model = strings.TrimSpace(model)
	year = strings.TrimSpace(year)

	if manufacturer == "" || model == "" || year == "" {
		return Vehicle{}, ErrMissingField
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return Vehicle{}, fmt.Errorf("%w: %q is not a number", ErrInvalidYear, year)
	}
	if y < FirstManualYear || y > now.Year() {
		return Vehicle{}, fmt.Errorf("%w: %d must be between %d and %d", ErrInvalidYear, y, FirstManualYear, now.Year())
	}

	return Vehicle{Manufacturer: manufacturer, Model: model, Year: y}, nil
}

// CanStart reports whether the manual start control should be enabled.
func CanStart(manufacturer, model, year string, now time.Time) bool {
	_, err := ValidateManual(manufacturer, model, year, now)
	return err == nil
}

// Validate applies the manual-entry rules to an already parsed vehicle.
func (v Vehicle) Validate(now time.Time) error {
	_, err := ValidateManual(v.Manufacturer, v.Model, strconv.Itoa(v.Year), now)
	return err
}
