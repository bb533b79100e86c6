// Package ephemeris defines the comet observation records served by the
// tracker and parses Horizons observer tables into them.
package ephemeris

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tags how current a Snapshot is.
type Status string

const (
	StatusActive      Status = "active"
	StatusStale       Status = "stale"
	StatusUnavailable Status = "unavailable"
)

// Source tags where a Snapshot came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCached   Source = "cached"
	SourceFallback Source = "fallback"
)

// Snapshot is a point-in-time observation of a tracked object.
// Snapshots are replaced wholesale; nothing patches individual fields of a
// stored Snapshot.
type Snapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Designation string `json:"designation"`

	// CapturedAt is the epoch of the ephemeris row.
	CapturedAt  time.Time `json:"capturedAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	NextUpdate  time.Time `json:"nextUpdate"`

	Position   Position   `json:"position"`
	Velocity   Velocity   `json:"velocity"`
	Orbital    Orbital    `json:"orbital"`
	Physical   Physical   `json:"physical"`
	Visibility Visibility `json:"visibility"`

	Status Status `json:"status"`
	Source Source `json:"source"`

	// RawData holds the leading part of the upstream response for diagnostics.
	RawData string `json:"rawData"`
}

// Position holds angular coordinates in decimal degrees and distances in AU.
type Position struct {
	RightAscension       decimal.Decimal `json:"rightAscension"`
	Declination          decimal.Decimal `json:"declination"`
	Distance             decimal.Decimal `json:"distance"`
	HeliocentricDistance decimal.Decimal `json:"heliocentricDistance"`
}

// Velocity components in km/s.
type Velocity struct {
	RadialVelocity     decimal.Decimal `json:"radialVelocity"`
	TangentialVelocity decimal.Decimal `json:"tangentialVelocity"`
}

// Orbital elements are descriptive strings cached verbatim.
type Orbital struct {
	Eccentricity string `json:"eccentricity"`
	Inclination  string `json:"inclination"`
	Perihelion   string `json:"perihelion"`
	Aphelion     string `json:"aphelion"`
	Period       string `json:"period"`
}

// Physical descriptors.
type Physical struct {
	Magnitude decimal.Decimal `json:"magnitude"`
	Coma      string          `json:"coma"`
	Tail      string          `json:"tail"`
}

// Visibility notes for observers.
type Visibility struct {
	Constellation   string `json:"constellation"`
	BestViewingTime string `json:"bestViewingTime"`
	MoonPhase       string `json:"moonPhase"`
}

// Sample is one point of a historical series.
type Sample struct {
	Timestamp time.Time       `json:"timestamp"`
	Distance  decimal.Decimal `json:"distance"`
	Magnitude decimal.Decimal `json:"magnitude"`
	Velocity  decimal.Decimal `json:"velocity"`
}

// HistoricalSeries is a window of samples, ascending by timestamp with no
// duplicate timestamps.
type HistoricalSeries struct {
	// Hours is the trailing window length the samples were fetched for.
	Hours   int      `json:"hours"`
	Samples []Sample `json:"samples"`
}

// Bounds for a requested historical window, in hours.
const (
	MinHistoryHours     = 1
	MaxHistoryHours     = 168
	DefaultHistoryHours = 30
)

// UpdateInterval is the advertised refresh cadence written into NextUpdate.
const UpdateInterval = 15 * time.Minute

// RawExcerptLength is how many characters of the upstream text a Snapshot keeps.
const RawExcerptLength = 500
