package ephemeris

import (
	"sort"
	"time"
)

// FallbackRawData is the diagnostic text carried by the static fallback.
const FallbackRawData = "No connection to JPL Horizons"

// snapshotShell returns a Snapshot carrying the object's constants and
// profile, stamped at now.
func (o TrackedObject) snapshotShell(now time.Time) Snapshot {
	now = now.UTC()
	return Snapshot{
		ID:          o.ID,
		Name:        o.Name,
		Designation: o.Designation,
		LastUpdated: now,
		NextUpdate:  now.Add(UpdateInterval),
		Orbital:     o.Profile.Orbital,
		Physical: Physical{
			Magnitude: o.Profile.Magnitude,
			Coma:      o.Profile.Coma,
			Tail:      o.Profile.Tail,
		},
		Visibility: o.Profile.Visibility,
	}
}

// Fallback returns the static snapshot served when neither the upstream nor
// the cache can supply data. Every field is populated.
func Fallback(o TrackedObject, now time.Time) Snapshot {
	snap := o.snapshotShell(now)
	snap.CapturedAt = snap.LastUpdated
	snap.Position = Position{
		RightAscension:       o.Profile.RightAscension,
		Declination:          o.Profile.Declination,
		Distance:             o.Profile.Distance,
		HeliocentricDistance: o.Profile.HeliocentricDistance,
	}
	snap.Velocity = Velocity{
		RadialVelocity:     o.Profile.RadialVelocity,
		TangentialVelocity: o.Profile.TangentialVelocity,
	}
	snap.Status = StatusUnavailable
	snap.Source = SourceFallback
	snap.RawData = FallbackRawData
	return snap
}

// NormalizeSamples returns samples sorted ascending by timestamp, keeping the
// first sample for any repeated timestamp.
func NormalizeSamples(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Since returns the samples at or after from. The result is never nil.
func (s HistoricalSeries) Since(from time.Time) []Sample {
	out := make([]Sample, 0, len(s.Samples))
	for _, sample := range s.Samples {
		if !sample.Timestamp.Before(from) {
			out = append(out, sample)
		}
	}
	return out
}

// Covers reports whether the series was fetched for a window of at least hours.
func (s HistoricalSeries) Covers(hours int) bool {
	return s.Hours >= hours
}
