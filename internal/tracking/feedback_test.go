package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

func endedTripWithBrake(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.rt.StartManual(ctx, "t1"))
	id := f.activeID(t)
	brake := trip.Event{
		Type:  trip.EventHardBrake,
		Start: trip.Point{Timestamp: epoch.Add(10 * time.Second)},
		Stop:  trip.Point{Timestamp: epoch.Add(12 * time.Second)},
	}
	require.NoError(t, f.rt.AddEvent(ctx, brake))
	require.NoError(t, f.rt.StopManual(ctx))
	return id
}

func TestFeedbackOnEndedTrip(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())
	id := endedTripWithBrake(t, f)

	require.NoError(t, f.rt.AddDriveCategory(ctx, id, trip.CategoryCarPassenger))
	require.NoError(t, f.rt.AddEventOccurrence(ctx, id, trip.EventOccurrence{
		Type: trip.EventHardBrake, StartedAt: epoch.Add(10 * time.Second), Occurred: false,
	}))
	err := f.rt.AddEventOccurrence(ctx, id, trip.EventOccurrence{
		Type: trip.EventHardBrake, StartedAt: epoch.Add(11 * time.Second), Occurred: true,
	})
	assert.True(t, sdkerr.IsKind(err, sdkerr.InvalidParams))

	info, err := f.rt.Trip(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, info.Feedback)
	require.NotNil(t, info.Feedback.Category)
	assert.Equal(t, trip.CategoryCarPassenger, *info.Feedback.Category)
	require.Len(t, info.Feedback.Events, 1)
	assert.False(t, info.Feedback.Events[0].Occurred)

	require.NoError(t, f.rt.AnalysisReady(ctx, trip.Analysis{DriveID: id, DriveType: trip.DriveTypeDrive, Score: 64}))
	info, err = f.rt.Trip(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, trip.QualityAnalyzed, info.Quality)
	require.NotNil(t, info.Feedback)
	assert.Equal(t, trip.CategoryCarPassenger, *info.Feedback.Category)

	f.hub.Sync()
	analyzed := f.rec.analyzed()
	require.Len(t, analyzed, 1)
	assert.NotNil(t, analyzed[0].Feedback)
}

func TestFeedbackRequiresStoredTrip(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()

	assert.True(t, sdkerr.IsKind(f.rt.AddDriveCategory(ctx, "nope", trip.CategoryCar), sdkerr.NotSetup))
	f.setup(t, baseConfig())
	assert.True(t, sdkerr.IsKind(f.rt.AddDriveCategory(ctx, "nope", trip.CategoryCar), sdkerr.InvalidParams))

	require.NoError(t, f.rt.StartManual(ctx, "t1"))
	active := f.activeID(t)
	assert.True(t, sdkerr.IsKind(f.rt.AddDriveCategory(ctx, active, trip.CategoryCar), sdkerr.InvalidParams))
}
