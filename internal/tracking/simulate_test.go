package tracking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/mock"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

func presetDrive(t *testing.T, p mock.Preset, edit func(*mock.Builder)) mock.Drive {
	t.Helper()
	b, err := mock.PresetBuilder(p, epoch.Add(-time.Hour))
	require.NoError(t, err)
	if edit != nil {
		edit(b)
	}
	d, err := b.Build()
	require.NoError(t, err)
	return d
}

func waitFor(t *testing.T, f *fixture, prefix string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, e := range f.events() {
			if strings.HasPrefix(e, prefix) {
				return true
			}
		}
		return false
	}, 3*time.Second, 5*time.Millisecond, "no %s event in %v", prefix, f.rec.got())
}

func kinds(events []string) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i], _, _ = strings.Cut(e, ":")
	}
	return out
}

func TestSimulateDrivePlaysPresetThroughDetection(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())

	d := presetDrive(t, mock.Urban10Min, func(b *mock.Builder) {
		b.AnalysisDelay(10 * time.Millisecond).VehicleIDTag("car-1")
	})
	require.NoError(t, f.rt.SimulateDrive(ctx, d, 100*time.Millisecond))
	waitFor(t, f, "analyzed:")

	assert.Equal(t, []string{"start", "end", "analyzed"}, kinds(f.events()))
	ended := f.rec.ended()
	require.Len(t, ended, 1)
	assert.Equal(t, 10*time.Minute, ended[0].EndedAt.Sub(ended[0].StartedAt))
	assert.Len(t, ended[0].Events, 2)
	assert.InDelta(t, 4445, ended[0].Distance, 5)

	analyzed := f.rec.analyzed()[0]
	assert.Equal(t, ended[0].DriveID, analyzed.DriveID)
	assert.Equal(t, 82, analyzed.Score)
	assert.Equal(t, trip.DriveTypeDrive, analyzed.DriveType)
	assert.Equal(t, "car-1", analyzed.TagValue("vehicle_id"))

	require.Eventually(t, func() bool {
		s, err := f.rt.State(ctx)
		return err == nil && !s.Simulating
	}, time.Second, 5*time.Millisecond)
}

func TestSimulatedCollisionRaisesAccidentAndEndsTrip(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, multipleCallbacks())

	d := presetDrive(t, mock.Urban30MinWithMultipleCollisionCallback, nil)
	require.NoError(t, f.rt.SimulateDrive(ctx, d, 150*time.Millisecond))
	waitFor(t, f, "analyzed:")

	assert.Equal(t, []string{"start", "potential", "accident", "end", "analyzed"}, kinds(f.events()))
	analyzed := f.rec.analyzed()[0]
	assert.Equal(t, 41, analyzed.Score)
}

func TestSimulatedCollisionWithoutPotentialStage(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())

	d := presetDrive(t, mock.Urban30MinWithCollision, nil)
	require.NoError(t, f.rt.SimulateDrive(ctx, d, 150*time.Millisecond))
	waitFor(t, f, "analyzed:")

	assert.Equal(t, []string{"start", "accident", "end", "analyzed"}, kinds(f.events()))
}

func TestSimulateDrivePreconditions(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	d := presetDrive(t, mock.Urban10Min, nil)

	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, d, time.Second), sdkerr.NotSetup))
	f.setup(t, baseConfig())

	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, d, 0), sdkerr.MockInvalidRunTime))
	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, d, mock.MaxRunTime+time.Second), sdkerr.MockInvalidRunTime))

	moto := presetDrive(t, mock.Urban10MinMotorcycle, nil)
	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, moto, time.Second), sdkerr.UnsupportedVehicleType))

	require.NoError(t, f.rt.SetMode(ctx, trip.ModeAutoOff))
	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, d, time.Second), sdkerr.MockAutoDetectionNotOn))
	require.NoError(t, f.rt.SetMode(ctx, trip.ModeAutoOn))

	slow := presetDrive(t, mock.Urban10Min, func(b *mock.Builder) { b.StartDelay(time.Hour) })
	require.NoError(t, f.rt.SimulateDrive(ctx, slow, time.Second))
	assert.True(t, sdkerr.IsKind(f.rt.SimulateDrive(ctx, d, time.Second), sdkerr.MockSimulationInProgress))

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Simulating)
}

func TestTeardownStopsSimulation(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())

	d := presetDrive(t, mock.Urban10Min, nil)
	require.NoError(t, f.rt.SimulateDrive(ctx, d, 400*time.Millisecond))
	waitFor(t, f, "start:")
	require.NoError(t, f.rt.Teardown(ctx))

	f.setup(t, baseConfig())
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, []string{"start"}, kinds(f.events()))

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Simulating)
	assert.False(t, state.DriveInProgress)
}
