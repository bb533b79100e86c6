package ephemeris

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/comet-tracker/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var captureTime = time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	if !decimal.RequireFromString(want).Equal(got) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}

func TestExtractRows(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantRows int
		wantErr  error
	}{
		{
			name:     "two rows",
			raw:      testutil.EphemerisText(testutil.SampleRows(captureTime, time.Minute, 2)...),
			wantRows: 2,
		},
		{
			name:    "markers without rows",
			raw:     testutil.EmptyEphemerisText(),
			wantErr: ErrNoEphemerisData,
		},
		{
			name:    "no markers",
			raw:     "API VERSION: 1.2\nNo ephemeris for target \"90003242\"\n",
			wantErr: ErrNoEphemerisData,
		},
		{
			name:     "blank lines and CRLF inside block",
			raw:      "header\r\n$$SOE\r\n\r\n row one\r\n   \r\n row two\r\n$$EOE\r\n row after\r\n",
			wantRows: 2,
		},
		{
			name:    "start marker without end marker",
			raw:     "header\n$$SOE\n" + testutil.SampleRows(captureTime, time.Minute, 1)[0] + "\n",
			wantErr: ErrNoEphemerisData,
		},
		{
			name:    "empty input",
			raw:     "",
			wantErr: ErrNoEphemerisData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ExtractRows(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var pe *ParseError
				assert.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantRows)
			for _, r := range rows {
				assert.False(t, strings.HasSuffix(r, "\r"))
			}
		})
	}
}

func TestParser_Current_TwoRowBlock(t *testing.T) {
	raw := testutil.EphemerisText(testutil.SampleRows(captureTime, time.Minute, 2)...)
	now := captureTime.Add(10 * time.Second)

	snap, err := NewParser(Atlas(), PolicyStrict).Current(raw, now)
	require.NoError(t, err)

	assert.Equal(t, "3i_atlas", snap.ID)
	assert.Equal(t, "3i/Atlas", snap.Name)
	assert.Equal(t, "C/2025 A1", snap.Designation)
	assert.True(t, captureTime.Equal(snap.CapturedAt), "capturedAt = %v", snap.CapturedAt)
	assert.True(t, now.Equal(snap.LastUpdated))
	assert.True(t, now.Add(15*time.Minute).Equal(snap.NextUpdate))

	// 13h19m21.49s and -05°28'43.9"
	assertDecimal(t, "199.839542", snap.Position.RightAscension, "rightAscension")
	assertDecimal(t, "-5.478861", snap.Position.Declination, "declination")
	assertDecimal(t, "2.45678912", snap.Position.Distance, "distance")
	assertDecimal(t, "1.45678912", snap.Position.HeliocentricDistance, "heliocentricDistance")
	assertDecimal(t, "-12.346", snap.Velocity.RadialVelocity, "radialVelocity")
	assertDecimal(t, "8.9", snap.Velocity.TangentialVelocity, "tangentialVelocity")
	assertDecimal(t, "12.3", snap.Physical.Magnitude, "magnitude")

	assert.Equal(t, "0.9985", snap.Orbital.Eccentricity)
	assert.Equal(t, "125000 km", snap.Physical.Coma)
	assert.Equal(t, "Draco", snap.Visibility.Constellation)
	assert.Equal(t, raw[:RawExcerptLength], snap.RawData)

	assert.Empty(t, snap.Source, "source is set by the caller")
	assert.Empty(t, snap.Status, "status is set by the caller")
}

func TestParser_Current_PositiveDeclinationAndNA(t *testing.T) {
	line := " 2025-Oct-18 12:00 *m  01 02 03.00 +10 30 00.0    n.a.    n.a.   n.a.   n.a.  3.000000000000  5.1234567   35.1234 /L  15.4321"
	raw := testutil.EphemerisText(line)

	snap, err := NewParser(Atlas(), PolicyStrict).Current(raw, captureTime)
	require.NoError(t, err)

	assertDecimal(t, "15.5125", snap.Position.RightAscension, "rightAscension")
	assertDecimal(t, "10.5", snap.Position.Declination, "declination")
	assertDecimal(t, "3", snap.Position.Distance, "distance")
	assertDecimal(t, "5.123", snap.Velocity.RadialVelocity, "radialVelocity")

	// n.a. columns take the profile baseline in strict mode.
	assertDecimal(t, "5.8", snap.Position.HeliocentricDistance, "heliocentricDistance")
	assertDecimal(t, "9.2", snap.Physical.Magnitude, "magnitude")
}

func TestParser_Current_NegativeZeroDeclination(t *testing.T) {
	line := testutil.FormatRow(captureTime, "00 00 00.00", "-00 30 00.0", 10, 11, 1, 0, 2, -1)
	snap, err := NewParser(Atlas(), PolicyStrict).Current(testutil.EphemerisText(line), captureTime)
	require.NoError(t, err)
	assertDecimal(t, "-0.5", snap.Position.Declination, "declination")
}

func TestParser_Current_StrictRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{
			name:   "no timestamp",
			line:   " garbage 13 19 21.49 -05 28 43.9 1 2 3 4 5 6",
			reason: "row timestamp not found",
		},
		{
			name:   "no angular triplets",
			line:   " 2025-Oct-18 12:00     199.8395 -5.4788   12.3  16.7  1.45  -20.1  2.45  -12.3",
			reason: "right ascension/declination triplets not found",
		},
		{
			name:   "truncated columns",
			line:   " 2025-Oct-18 12:00     13 19 21.49 -05 28 43.9   12.345  16.789",
			reason: "observer range columns not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(Atlas(), PolicyStrict).Current(testutil.EphemerisText(tt.line), captureTime)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.True(t, errors.Is(err, ErrMalformedRow))
		})
	}
}

func TestParser_Current_PlaceholderPolicy(t *testing.T) {
	line := " 2025-Oct-18 12:00     199.8395 -5.4788   12.3  16.7"
	raw := testutil.EphemerisText(line)
	p := NewParser(Atlas(), PolicyPlaceholder)

	first, err := p.Current(raw, captureTime.Add(time.Minute))
	require.NoError(t, err)
	second, err := p.Current(raw, captureTime.Add(time.Hour))
	require.NoError(t, err)

	// Placeholders are keyed by capture time, not by wall clock.
	assert.True(t, first.Position.RightAscension.Equal(second.Position.RightAscension))
	assert.True(t, first.Position.Declination.Equal(second.Position.Declination))
	assert.True(t, first.Position.Distance.Equal(second.Position.Distance))
	assert.True(t, first.Velocity.RadialVelocity.Equal(second.Velocity.RadialVelocity))

	want := placeholderAt(captureTime)
	assert.True(t, fixed(want.ra, 6).Equal(first.Position.RightAscension))
	assert.True(t, fixed(want.delta, 8).Equal(first.Position.Distance))

	ra := first.Position.RightAscension.InexactFloat64()
	assert.GreaterOrEqual(t, ra, 0.0)
	assert.Less(t, ra, 360.0)
	dec := first.Position.Declination.InexactFloat64()
	assert.GreaterOrEqual(t, dec, 15.2)
	assert.Less(t, dec, 45.2)
}

func TestParser_Current_PlaceholderStillNeedsRows(t *testing.T) {
	_, err := NewParser(Atlas(), PolicyPlaceholder).Current(testutil.EmptyEphemerisText(), captureTime)
	assert.ErrorIs(t, err, ErrNoEphemerisData)
}

func TestParser_Current_PlaceholderWithoutTimestamp(t *testing.T) {
	now := captureTime.Add(42 * time.Second)
	snap, err := NewParser(Atlas(), PolicyPlaceholder).Current(testutil.EphemerisText(" unreadable"), now)
	require.NoError(t, err)
	assert.True(t, now.Equal(snap.CapturedAt))
	assert.False(t, snap.Position.Distance.IsZero())
}

func TestParser_Historical(t *testing.T) {
	rows := testutil.SampleRows(captureTime, time.Hour, 5)
	// Shuffle and duplicate, and add rows that cannot be used.
	shuffled := []string{
		rows[3], rows[0], rows[4], rows[1], rows[1], rows[2],
		" not a row",
		" 2025-Oct-18 18:00     13 19 21.49 -05 28 43.9   12.345",
	}

	samples, err := NewParser(Atlas(), PolicyStrict).Historical(testutil.EphemerisText(shuffled...))
	require.NoError(t, err)
	require.Len(t, samples, 5)

	for i, s := range samples {
		assert.True(t, captureTime.Add(time.Duration(i)*time.Hour).Equal(s.Timestamp), "sample %d at %v", i, s.Timestamp)
		if i > 0 {
			assert.True(t, samples[i-1].Timestamp.Before(s.Timestamp))
		}
	}
	assertDecimal(t, "2.45678912", samples[0].Distance, "distance")
	assertDecimal(t, "12.3", samples[0].Magnitude, "magnitude")
	assertDecimal(t, "-12.346", samples[0].Velocity, "velocity")
}

func TestParser_Historical_NoUsableRows(t *testing.T) {
	_, err := NewParser(Atlas(), PolicyStrict).Historical(testutil.EphemerisText(" junk", " more junk"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = NewParser(Atlas(), PolicyStrict).Historical("")
	assert.ErrorIs(t, err, ErrNoEphemerisData)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PlaceholderPolicy
		wantErr bool
	}{
		{in: "", want: PolicyStrict},
		{in: "strict", want: PolicyStrict},
		{in: " Placeholder ", want: PolicyPlaceholder},
		{in: "lenient", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, PolicyStrict, NewParser(Atlas(), "").Policy)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "", Excerpt("abc", 0))
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "ab", Excerpt("abc", 2))

	multi := strings.Repeat("°", 600)
	got := Excerpt(multi, RawExcerptLength)
	assert.Equal(t, RawExcerptLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestParseError(t *testing.T) {
	err := &ParseError{Err: ErrNoEphemerisData}
	assert.Equal(t, "parse ephemeris: no ephemeris data found in response", err.Error())

	err = &ParseError{Reason: "bad row", Err: ErrMalformedRow}
	assert.Equal(t, "parse ephemeris: bad row: malformed ephemeris row", err.Error())
}
