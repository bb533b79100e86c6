package horizons

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the JPL Horizons API endpoint.
	DefaultBaseURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

	// DefaultQuantities selects astrometric RA/Dec (1), visual magnitudes (9),
	// heliocentric range (19), observer range and range-rate (20),
	// elongation (23) and phase angle (24).
	DefaultQuantities = "1,9,19,20,23,24"

	// StepMinute and StepHour are step-size tokens understood by Horizons.
	StepMinute = "1m"
	StepHour   = "1h"

	// ObserverGeocenter is the Earth-center observing site.
	ObserverGeocenter = "500@399"

	// TimeLayout is the START_TIME/STOP_TIME format. Times are sent in UTC.
	TimeLayout = "2006-01-02 15:04"
)

// Query describes one ephemeris request.
type Query struct {
	// ObjectID is the Horizons COMMAND value (e.g. "90003242").
	ObjectID string

	// Start and Stop bound the ephemeris window. Stop must not precede Start.
	Start time.Time
	Stop  time.Time

	// StepSize is a provider step token such as "1m" or "1h".
	StepSize string

	// Quantities is the QUANTITIES code list. Empty means DefaultQuantities.
	Quantities string

	// Timeout overrides the client's default timeout for this call when positive.
	Timeout time.Duration
}

// Validate checks the query before it is sent.
func (q Query) Validate() error {
	if strings.TrimSpace(q.ObjectID) == "" {
		return fmt.Errorf("%w: object id is required", ErrInvalidQuery)
	}
	if strings.TrimSpace(q.StepSize) == "" {
		return fmt.Errorf("%w: step size is required", ErrInvalidQuery)
	}
	if q.Start.IsZero() || q.Stop.IsZero() {
		return fmt.Errorf("%w: start and stop times are required", ErrInvalidQuery)
	}
	if q.Stop.Before(q.Start) {
		return fmt.Errorf("%w: stop %s precedes start %s", ErrInvalidQuery,
			q.Stop.UTC().Format(TimeLayout), q.Start.UTC().Format(TimeLayout))
	}
	return nil
}

// Values renders the query as Horizons API parameters.
func (q Query) Values() url.Values {
	quantities := q.Quantities
	if quantities == "" {
		quantities = DefaultQuantities
	}

	v := url.Values{}
	v.Set("format", "text")
	v.Set("COMMAND", "'"+q.ObjectID+"'")
	v.Set("OBJ_DATA", "NO")
	v.Set("MAKE_EPHEM", "YES")
	v.Set("EPHEM_TYPE", "OBSERVER")
	v.Set("CENTER", ObserverGeocenter)
	v.Set("START_TIME", "'"+q.Start.UTC().Format(TimeLayout)+"'")
	v.Set("STOP_TIME", "'"+q.Stop.UTC().Format(TimeLayout)+"'")
	v.Set("STEP_SIZE", "'"+q.StepSize+"'")
	v.Set("QUANTITIES", "'"+quantities+"'")
	v.Set("REF_SYSTEM", "ICRF")
	v.Set("CAL_FORMAT", "CAL")
	v.Set("TIME_DIGITS", "MINUTES")
	v.Set("ANG_FORMAT", "HMS")
	v.Set("APPARENT", "AIRLESS")
	v.Set("RANGE_UNITS", "AU")
	v.Set("SUPPRESS_RANGE_RATE", "NO")
	v.Set("SKIP_DAYLT", "NO")
	v.Set("SOLAR_ELONG", "'0,180'")
	v.Set("EXTRA_PREC", "NO")
	v.Set("R_T_S_ONLY", "NO")
	v.Set("CSV_FORMAT", "NO")
	return v
}
