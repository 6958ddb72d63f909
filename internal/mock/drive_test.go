package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/geo"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

var start = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestPresetsMatchPublishedShape(t *testing.T) {
	cases := []struct {
		preset   Preset
		distance float64
		duration time.Duration
		kind     trip.DriveType
	}{
		{Urban10Min, 4445, 10 * time.Minute, trip.DriveTypeDrive},
		{Highway60Min, 59112, 58 * time.Minute, trip.DriveTypeDrive},
		{Urban30MinWithCollision, 50130, 31 * time.Minute, trip.DriveTypeDrive},
		{NonDriving60Min, 74990, 66 * time.Minute, trip.DriveTypeNonDriving},
		{Invalid, 1624, 14700 * time.Millisecond, trip.DriveTypeInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.preset.String(), func(t *testing.T) {
			b, err := PresetBuilder(tc.preset, start)
			require.NoError(t, err)
			d, err := b.Build()
			require.NoError(t, err)

			assert.Equal(t, tc.duration, d.Duration())
			assert.Equal(t, tc.distance, d.Distance)
			assert.Equal(t, tc.kind, d.DriveType)

			var walked float64
			for i := 1; i < len(d.Waypoints); i++ {
				a, b := d.Waypoints[i-1], d.Waypoints[i]
				walked += geo.HaversineM(a.Lat, a.Lng, b.Lat, b.Lng)
			}
			assert.InDelta(t, tc.distance, walked, tc.distance*0.001)
			assert.True(t, d.Waypoints[len(d.Waypoints)-1].Timestamp.Equal(d.End))
		})
	}
}

func TestCollisionPresets(t *testing.T) {
	b, err := PresetBuilder(Urban30MinWithCollision, start)
	require.NoError(t, err)
	single, err := b.Build()
	require.NoError(t, err)
	require.Len(t, single.Accidents, 1)
	assert.False(t, single.Accidents[0].Potential)

	b, err = PresetBuilder(Urban30MinWithMultipleCollisionCallback, start)
	require.NoError(t, err)
	multiple, err := b.Build()
	require.NoError(t, err)
	require.Len(t, multiple.Accidents, 1)
	assert.True(t, multiple.Accidents[0].Potential)
	assert.Equal(t, accident.DefaultMockConfig(), multiple.Accidents[0].Config)
}

func TestMotorcyclePreset(t *testing.T) {
	b, err := PresetBuilder(Urban10MinMotorcycle, start)
	require.NoError(t, err)
	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, trip.VehicleMotorcycle, d.VehicleType)
}

func TestUnknownPreset(t *testing.T) {
	_, err := PresetBuilder(Preset(42), start)
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))

	p, ok := ParsePreset("Highway_60_Min")
	assert.True(t, ok)
	assert.Equal(t, Highway60Min, p)
	_, ok = ParsePreset("moon")
	assert.False(t, ok)
}

func TestBuildValidation(t *testing.T) {
	end := start.Add(time.Minute)

	_, err := NewAutoDriveBuilder(end, start).Build()
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))

	_, err = NewAutoDriveBuilder(start, end).EndDelay(-time.Second).Build()
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))

	_, err = NewAutoDriveBuilder(start, end).VehicleIDTag("bad id").Build()
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidVehicleID))

	_, err = NewAutoDriveBuilder(start, end).
		Waypoints([]trip.Point{{Timestamp: end.Add(time.Second)}}).
		Build()
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))

	bad := accident.DefaultMockConfig()
	bad.PotentialNumber = 0
	_, err = NewAutoDriveBuilder(start, end).
		AddAccident(Accident{At: start, Config: bad}).
		Build()
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))
}

func TestBuilderDefaultsAndClear(t *testing.T) {
	end := start.Add(time.Minute)
	b := NewAutoDriveBuilder(start, end).
		AddEvent(trip.Event{Type: trip.EventHardBrake, Start: trip.Point{Timestamp: start}, Stop: trip.Point{Timestamp: start}}).
		AddAccident(Accident{At: start, Config: accident.DefaultMockConfig()}).
		ClearEvents()
	d, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, trip.DriveTypeInvalid, d.DriveType)
	assert.Equal(t, -1, d.Score)
	assert.Empty(t, d.Events)
	assert.Empty(t, d.Accidents)
}

func TestAnalysisCarriesTagAndAccidentEvents(t *testing.T) {
	b, err := PresetBuilder(Urban30MinWithCollision, start)
	require.NoError(t, err)
	d, err := b.VehicleIDTag("car-1").Build()
	require.NoError(t, err)

	a := d.Analysis("T1")
	assert.Equal(t, "T1", a.DriveID)
	assert.Equal(t, 41, a.Score)
	require.Len(t, a.Tags, 1)
	assert.Equal(t, trip.Tag{Key: vehicle.TagKey, Value: "car-1"}, a.Tags[0])
	require.NotNil(t, a.EventRatings)
	assert.Equal(t, trip.StarFour, a.EventRatings.HardBrake)
	assert.Equal(t, trip.StarFour, a.EventRatings.HardTurn)
	assert.Equal(t, trip.StarFive, a.EventRatings.Speeding)

	var accidents int
	for _, e := range a.Events {
		if e.Type == trip.EventAccident {
			accidents++
		}
	}
	assert.Equal(t, 1, accidents)

	d.Accidents[0].Config = d.Accidents[0].Config.InvalidateFinal()
	for _, e := range d.Analysis("T1").Events {
		assert.NotEqual(t, trip.EventAccident, e.Type)
	}
}

func TestRateEventsFloorsAtOneStar(t *testing.T) {
	events := make([]trip.Event, 7)
	for i := range events {
		events[i].Type = trip.EventOverSpeeding
	}
	events = append(events, trip.Event{Type: trip.EventPhoneScreenInteraction})
	r := rateEvents(events)
	assert.Equal(t, trip.StarOne, r.Speeding)
	assert.Equal(t, trip.StarFour, r.PhoneHandling)
	assert.Equal(t, trip.StarFive, r.HardBrake)
}
