package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoEphemerisData indicates the response had no rows between the
	// $$SOE and $$EOE markers.
	ErrNoEphemerisData = errors.New("no ephemeris data found in response")

	// ErrMalformedRow indicates a row lacked a required field.
	ErrMalformedRow = errors.New("malformed ephemeris row")
)

// ParseError is returned when a Horizons response cannot be turned into
// records.
type ParseError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("parse ephemeris: %v", e.Err)
	}
	return fmt.Sprintf("parse ephemeris: %s: %v", e.Reason, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// PlaceholderPolicy decides what happens when required values of the current
// row cannot be extracted.
type PlaceholderPolicy string

const (
	// PolicyStrict fails the parse, which sends the caller down its fallback chain.
	PolicyStrict PlaceholderPolicy = "strict"

	// PolicyPlaceholder fills missing values from a deterministic function
	// of the capture time. The values are plausible but fictitious.
	PolicyPlaceholder PlaceholderPolicy = "placeholder"
)

// ParsePolicy converts a configuration string to a PlaceholderPolicy.
func ParsePolicy(s string) (PlaceholderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyStrict):
		return PolicyStrict, nil
	case string(PolicyPlaceholder):
		return PolicyPlaceholder, nil
	default:
		return "", fmt.Errorf("unknown placeholder policy %q", s)
	}
}

const (
	markerStart = "$$SOE"
	markerEnd   = "$$EOE"
)

// Column positions after the RA/Dec triplets for quantities 9,19,20,23,24.
const (
	colTMag = iota
	colNMag
	colHelioRange
	colHelioRangeRate
	colDelta
	colDeltaRate
)

var (
	rowTimePattern = regexp.MustCompile(`^\s*(\d{4}-[A-Za-z]{3}-\d{2} \d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?)`)
	angularPattern = regexp.MustCompile(`(\d{1,2})\s+(\d{1,2})\s+(\d{1,2}(?:\.\d+)?)\s+([-+]?\d{1,3})\s+(\d{1,2})\s+(\d{1,2}(?:\.\d+)?)`)

	rowTimeLayouts = []string{
		"2006-Jan-02 15:04",
		"2006-Jan-02 15:04:05",
		"2006-Jan-02 15:04:05.000",
	}
)

// ExtractRows returns the non-blank lines between the $$SOE and $$EOE markers.
// A block that is opened but never closed is treated as truncated and yields
// ErrNoEphemerisData.
func ExtractRows(raw string) ([]string, error) {
	var rows []string
	inBlock, closed := false, false

	for _, line := range strings.Split(raw, "\n") {
		if !inBlock {
			if strings.Contains(line, markerStart) {
				inBlock = true
			}
			continue
		}
		if strings.Contains(line, markerEnd) {
			closed = true
			break
		}
		if trimmed := strings.TrimRight(line, "\r"); strings.TrimSpace(trimmed) != "" {
			rows = append(rows, trimmed)
		}
	}

	if !closed || len(rows) == 0 {
		return nil, &ParseError{Err: ErrNoEphemerisData}
	}
	return rows, nil
}

type column struct {
	value float64
	ok    bool
}

// row is what could be read from one ephemeris line.
type row struct {
	time      time.Time
	hasTime   bool
	ra, dec   float64
	hasAngles bool

	tmag, helio, delta, deltaRate column
}

func parseRow(line string) row {
	var r row

	rest := line
	if m := rowTimePattern.FindStringSubmatchIndex(line); m != nil {
		stamp := line[m[2]:m[3]]
		for _, layout := range rowTimeLayouts {
			if t, err := time.ParseInLocation(layout, stamp, time.UTC); err == nil {
				r.time, r.hasTime = t, true
				break
			}
		}
		rest = line[m[1]:]
	}

	m := angularPattern.FindStringSubmatchIndex(rest)
	if m == nil {
		return r
	}
	g := func(i int) string { return rest[m[2*i]:m[2*i+1]] }

	r.ra = hmsToDegrees(g(1), g(2), g(3))
	r.dec = dmsToDegrees(g(4), g(5), g(6))
	r.hasAngles = true

	cols := strings.Fields(rest[m[1]:])
	r.tmag = numericColumn(cols, colTMag)
	r.helio = numericColumn(cols, colHelioRange)
	r.delta = numericColumn(cols, colDelta)
	r.deltaRate = numericColumn(cols, colDeltaRate)

	return r
}

// validate reports the first required field the row is missing.
func (r row) validate() error {
	switch {
	case !r.hasTime:
		return &ParseError{Reason: "row timestamp not found", Err: ErrMalformedRow}
	case !r.hasAngles:
		return &ParseError{Reason: "right ascension/declination triplets not found", Err: ErrMalformedRow}
	case !r.delta.ok || !r.deltaRate.ok:
		return &ParseError{Reason: "observer range columns not found", Err: ErrMalformedRow}
	}
	return nil
}

func numericColumn(cols []string, i int) column {
	if i >= len(cols) {
		return column{}
	}
	v, err := strconv.ParseFloat(cols[i], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return column{}
	}
	return column{value: v, ok: true}
}

func hmsToDegrees(h, m, s string) float64 {
	hours, _ := strconv.ParseFloat(h, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)
	return (hours + minutes/60 + seconds/3600) * 15
}

func dmsToDegrees(d, m, s string) float64 {
	degrees, _ := strconv.ParseFloat(d, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)

	v := math.Abs(degrees) + minutes/60 + seconds/3600
	if strings.HasPrefix(d, "-") {
		v = -v
	}
	return v
}

// Parser turns Horizons observer tables into records for one object.
type Parser struct {
	Object TrackedObject
	Policy PlaceholderPolicy
}

// NewParser creates a parser.
func NewParser(obj TrackedObject, policy PlaceholderPolicy) Parser {
	if policy == "" {
		policy = PolicyStrict
	}
	return Parser{Object: obj, Policy: policy}
}

// Current parses the first row of raw into a Snapshot. The caller sets the
// Source and Status tags.
func (p Parser) Current(raw string, now time.Time) (Snapshot, error) {
	rows, err := ExtractRows(raw)
	if err != nil {
		return Snapshot{}, err
	}

	r := parseRow(rows[0])
	if err := r.validate(); err != nil && p.Policy != PolicyPlaceholder {
		return Snapshot{}, err
	}

	captured := now.UTC()
	if r.hasTime {
		captured = r.time
	}

	// Optional columns fall back to the profile baseline in strict mode.
	ph := p.baseline()
	if p.Policy == PolicyPlaceholder {
		ph = placeholderAt(captured)
	}

	snap := p.Object.snapshotShell(now)
	snap.CapturedAt = captured
	snap.Position = Position{
		RightAscension:       fixed(pick(r.hasAngles, r.ra, ph.ra), 6),
		Declination:          fixed(pick(r.hasAngles, r.dec, ph.dec), 6),
		Distance:             fixed(pickColumn(r.delta, ph.delta), 8),
		HeliocentricDistance: fixed(pickColumn(r.helio, ph.helio), 8),
	}
	snap.Velocity = Velocity{
		RadialVelocity:     fixed(pickColumn(r.deltaRate, ph.radial), 3),
		TangentialVelocity: p.Object.Profile.TangentialVelocity,
	}
	snap.Physical.Magnitude = fixed(pickColumn(r.tmag, ph.magnitude), 1)
	snap.RawData = Excerpt(raw, RawExcerptLength)

	return snap, nil
}

// Historical parses every row of raw into samples, skipping rows without a
// timestamp or range columns. The result is ascending with no duplicate
// timestamps.
func (p Parser) Historical(raw string) ([]Sample, error) {
	rows, err := ExtractRows(raw)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(rows))
	for _, line := range rows {
		r := parseRow(line)
		if !r.hasTime || !r.delta.ok || !r.deltaRate.ok {
			continue
		}
		magnitude := p.Object.Profile.Magnitude
		if r.tmag.ok {
			magnitude = fixed(r.tmag.value, 1)
		}
		samples = append(samples, Sample{
			Timestamp: r.time,
			Distance:  fixed(r.delta.value, 8),
			Magnitude: magnitude,
			Velocity:  fixed(r.deltaRate.value, 3),
		})
	}

	if len(samples) == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("none of %d rows parsable", len(rows)), Err: ErrMalformedRow}
	}
	return NormalizeSamples(samples), nil
}

type values struct {
	ra, dec, delta, helio, radial, magnitude float64
}

func (p Parser) baseline() values {
	prof := p.Object.Profile
	return values{
		ra:        prof.RightAscension.InexactFloat64(),
		dec:       prof.Declination.InexactFloat64(),
		delta:     prof.Distance.InexactFloat64(),
		helio:     prof.HeliocentricDistance.InexactFloat64(),
		radial:    prof.RadialVelocity.InexactFloat64(),
		magnitude: prof.Magnitude.InexactFloat64(),
	}
}

// placeholderAt derives stand-in values from the capture time. The same
// capture time always yields the same values.
func placeholderAt(t time.Time) values {
	ts := float64(t.Unix())
	return values{
		ra:        math.Mod(280.5+math.Mod(ts/100000, 360), 360),
		dec:       15.2 + math.Mod(ts/50000, 30),
		delta:     4.2 + 0.1*math.Mod(ts, 1000)/1000,
		helio:     5.8 + 0.2*math.Mod(ts, 1000)/1000,
		radial:    12.5 + 0.3*math.Mod(ts, 100)/100,
		magnitude: 9.2 + 0.5*math.Mod(ts, 50)/50,
	}
}

func pick(ok bool, v, alt float64) float64 {
	if ok {
		return v
	}
	return alt
}

func pickColumn(c column, alt float64) float64 {
	return pick(c.ok, c.value, alt)
}

func fixed(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// Excerpt returns at most n characters of s.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
