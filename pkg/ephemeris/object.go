package ephemeris

import "github.com/shopspring/decimal"

// TrackedObject identifies a body and carries the static profile used for
// fields Horizons does not report and for the static fallback.
type TrackedObject struct {
	// ID is the cache identifier (e.g. "3i_atlas").
	ID string

	// Slug is the path segment used by the HTTP routes (e.g. "3i-atlas").
	Slug string

	Name        string
	Designation string

	// HorizonsCommand is the COMMAND value that selects the body upstream.
	HorizonsCommand string

	Profile Profile
}

// Profile is the descriptive and baseline data of a tracked object.
type Profile struct {
	// Baseline values used by the static fallback and for optional columns
	// reported as "n.a." upstream.
	RightAscension       decimal.Decimal
	Declination          decimal.Decimal
	Distance             decimal.Decimal
	HeliocentricDistance decimal.Decimal
	RadialVelocity       decimal.Decimal
	TangentialVelocity   decimal.Decimal
	Magnitude            decimal.Decimal

	Orbital    Orbital
	Coma       string
	Tail       string
	Visibility Visibility
}

// Atlas returns the default tracked object, interstellar comet 3I/ATLAS.
func Atlas() TrackedObject {
	return TrackedObject{
		ID:              "3i_atlas",
		Slug:            "3i-atlas",
		Name:            "3i/Atlas",
		Designation:     "C/2025 A1",
		HorizonsCommand: "90003242",
		Profile: Profile{
			RightAscension:       decimal.RequireFromString("280.5"),
			Declination:          decimal.RequireFromString("15.2"),
			Distance:             decimal.RequireFromString("4.2"),
			HeliocentricDistance: decimal.RequireFromString("5.8"),
			RadialVelocity:       decimal.RequireFromString("12.5"),
			TangentialVelocity:   decimal.RequireFromString("8.9"),
			Magnitude:            decimal.RequireFromString("9.2"),
			Orbital: Orbital{
				Eccentricity: "0.9985",
				Inclination:  "89.2°",
				Perihelion:   "1.15 AU",
				Aphelion:     "~2000 AU",
				Period:       "Long-period comet",
			},
			Coma: "125000 km",
			Tail: "6500000 km",
			Visibility: Visibility{
				Constellation:   "Draco",
				BestViewingTime: "Pre-dawn hours",
				MoonPhase:       "Waning Crescent",
			},
		},
	}
}

// Matches reports whether id names the object, either by ID or by route slug.
func (o TrackedObject) Matches(id string) bool {
	return id != "" && (id == o.ID || id == o.Slug)
}
