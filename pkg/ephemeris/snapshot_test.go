package ephemeris

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback(t *testing.T) {
	now := time.Date(2025, 10, 18, 14, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	snap := Fallback(Atlas(), now)

	assert.Equal(t, StatusUnavailable, snap.Status)
	assert.Equal(t, SourceFallback, snap.Source)
	assert.Equal(t, FallbackRawData, snap.RawData)
	assert.Equal(t, time.UTC, snap.LastUpdated.Location())
	assert.True(t, now.Equal(snap.LastUpdated))
	assert.True(t, snap.CapturedAt.Equal(snap.LastUpdated))
	assert.Equal(t, UpdateInterval, snap.NextUpdate.Sub(snap.LastUpdated))

	assertDecimal(t, "280.5", snap.Position.RightAscension, "rightAscension")
	assertDecimal(t, "15.2", snap.Position.Declination, "declination")
	assertDecimal(t, "4.2", snap.Position.Distance, "distance")
	assertDecimal(t, "5.8", snap.Position.HeliocentricDistance, "heliocentricDistance")
	assertDecimal(t, "12.5", snap.Velocity.RadialVelocity, "radialVelocity")
	assertDecimal(t, "8.9", snap.Velocity.TangentialVelocity, "tangentialVelocity")
	assertDecimal(t, "9.2", snap.Physical.Magnitude, "magnitude")

	// Every string field of the fallback is populated.
	for name, v := range map[string]string{
		"id":              snap.ID,
		"name":            snap.Name,
		"designation":     snap.Designation,
		"eccentricity":    snap.Orbital.Eccentricity,
		"inclination":     snap.Orbital.Inclination,
		"perihelion":      snap.Orbital.Perihelion,
		"aphelion":        snap.Orbital.Aphelion,
		"period":          snap.Orbital.Period,
		"coma":            snap.Physical.Coma,
		"tail":            snap.Physical.Tail,
		"constellation":   snap.Visibility.Constellation,
		"bestViewingTime": snap.Visibility.BestViewingTime,
		"moonPhase":       snap.Visibility.MoonPhase,
	} {
		assert.NotEmpty(t, v, name)
	}
}

func TestSnapshot_JSON(t *testing.T) {
	now := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Fallback(Atlas(), now))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, key := range []string{
		"id", "name", "designation", "capturedAt", "lastUpdated", "nextUpdate",
		"position", "velocity", "orbital", "physical", "visibility",
		"status", "source", "rawData",
	} {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, "2025-10-18T12:15:00Z", doc["nextUpdate"])
	assert.Equal(t, "fallback", doc["source"])

	position := doc["position"].(map[string]any)
	assert.Equal(t, "280.5", position["rightAscension"])

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Position.Distance.Equal(decimal.RequireFromString("4.2")))
	assert.Equal(t, StatusUnavailable, back.Status)
}

func TestNormalizeSamples(t *testing.T) {
	base := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)
	sample := func(h int, d string) Sample {
		return Sample{Timestamp: base.Add(time.Duration(h) * time.Hour), Distance: decimal.RequireFromString(d)}
	}

	in := []Sample{sample(2, "2"), sample(0, "0"), sample(1, "1"), sample(2, "9"), sample(1, "8")}
	got := NormalizeSamples(in)

	require.Len(t, got, 3)
	for i, s := range got {
		assert.True(t, base.Add(time.Duration(i)*time.Hour).Equal(s.Timestamp))
	}
	// The first occurrence of a repeated timestamp wins.
	assertDecimal(t, "1", got[1].Distance, "distance at 01:00")
	assertDecimal(t, "2", got[2].Distance, "distance at 02:00")

	// The input is left untouched.
	assert.True(t, in[0].Timestamp.Equal(base.Add(2*time.Hour)))

	assert.Empty(t, NormalizeSamples(nil))
}

func TestHistoricalSeries_Since(t *testing.T) {
	base := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)
	series := HistoricalSeries{Hours: 3}
	for i := 0; i < 4; i++ {
		series.Samples = append(series.Samples, Sample{Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}

	got := series.Since(base.Add(2 * time.Hour))
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Hour)))

	none := series.Since(base.Add(24 * time.Hour))
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestHistoricalSeries_Covers(t *testing.T) {
	series := HistoricalSeries{Hours: 24}
	assert.True(t, series.Covers(1))
	assert.True(t, series.Covers(24))
	assert.False(t, series.Covers(25))
}
