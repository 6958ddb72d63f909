package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	infos  map[string][]trip.Info
	starts []trip.StartInfo
	resume []trip.ResumeInfo
	signal []accident.Signal
	sets   []stream.Settings
}

func newRecorder() *recorder {
	return &recorder{infos: map[string][]trip.Info{}}
}

func (r *recorder) add(s string) {
	r.events = append(r.events, s)
}

func (r *recorder) DriveStart(i trip.StartInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("start:" + i.DriveID)
	r.starts = append(r.starts, i)
}

func (r *recorder) DriveResume(i trip.ResumeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("resume:" + i.DriveID)
	r.resume = append(r.resume, i)
}

func (r *recorder) DriveEnd(i trip.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("end:" + i.DriveID)
	r.infos["end"] = append(r.infos["end"], i)
}

func (r *recorder) DriveAnalyzed(i trip.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("analyzed:" + i.DriveID)
	r.infos["analyzed"] = append(r.infos["analyzed"], i)
}

func (r *recorder) PotentialAccident(s accident.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("potential:" + s.AccidentID)
	r.signal = append(r.signal, s)
}

func (r *recorder) Accident(s accident.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add("accident:" + s.AccidentID)
	r.signal = append(r.signal, s)
}

func (r *recorder) SettingsChanged(s stream.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(fmt.Sprintf("settings:%d", len(s.Errors)))
	r.sets = append(r.sets, s)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) ended() []trip.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trip.Info(nil), r.infos["end"]...)
}

func (r *recorder) analyzed() []trip.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trip.Info(nil), r.infos["analyzed"]...)
}

func (r *recorder) started() []trip.StartInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trip.StartInfo(nil), r.starts...)
}

func (r *recorder) signals() []accident.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]accident.Signal(nil), r.signal...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.infos = map[string][]trip.Info{}
	r.starts = nil
	r.resume = nil
	r.signal = nil
	r.sets = nil
}

type fakeValidator struct {
	grant auth.Grant
	err   error
	block chan struct{}
}

func (v *fakeValidator) Validate(ctx context.Context, key, driverID string) (auth.Grant, error) {
	if v.block != nil {
		select {
		case <-v.block:
		case <-ctx.Done():
			return auth.Grant{}, ctx.Err()
		}
	}
	return v.grant, v.err
}

type fixture struct {
	rt    *Runtime
	hub   *stream.Hub
	store *store.SQLite
	clock *clock
	rec   *recorder
}

func openStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newFixture(t *testing.T, st *store.SQLite, validator KeyValidator, opts Options) *fixture {
	t.Helper()
	if st == nil {
		st = openStore(t)
	}
	f := &fixture{store: st, clock: &clock{now: epoch}, rec: newRecorder()}
	var n int
	var idMu sync.Mutex
	if opts.Now == nil {
		opts.Now = f.clock.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string {
			idMu.Lock()
			defer idMu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		}
	}
	f.hub = stream.NewHub(nil, "")
	f.rt = New(f.hub, st, validator, opts)
	t.Cleanup(func() {
		_ = f.rt.Close()
		f.hub.Close()
	})
	return f
}

func baseConfig() Config {
	return Config{
		ApplicationKey: "app-key",
		DriverID:       "driver-1",
		Mode:           trip.ModeAutoOn,
		Region:         RegionUS,
	}
}

func (f *fixture) setup(t *testing.T, cfg Config) {
	t.Helper()
	require.NoError(t, f.rt.Setup(context.Background(), cfg, f.rec))
}

// events waits for delivery and returns what the delegate saw.
func (f *fixture) events() []string {
	f.hub.Sync()
	return f.rec.got()
}

func (f *fixture) activeID(t *testing.T) string {
	t.Helper()
	info, err := f.rt.ActiveDrive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	return info.DriveID
}

func TestOperationsBeforeSetupReportNotSetup(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()

	assert.True(t, sdkerr.IsKind(f.rt.StartManual(ctx, "t1"), sdkerr.NotSetup))
	assert.True(t, sdkerr.IsKind(f.rt.StopPeriod(ctx), sdkerr.NotSetup))
	assert.True(t, sdkerr.IsKind(f.rt.StartSession(ctx, "s1"), sdkerr.NotSetup))
	_, err := f.rt.ActiveDrive(ctx)
	assert.True(t, sdkerr.IsKind(err, sdkerr.NotSetup))

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Ready)
	assert.Empty(t, state.DriverID)

	f.setup(t, baseConfig())
	assert.NoError(t, f.rt.StartManual(ctx, "t1"))
}

func TestSetupValidatesConfig(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*Config)
		kind sdkerr.Kind
	}{
		{"missing key", func(c *Config) { c.ApplicationKey = "" }, sdkerr.InvalidSDKKey},
		{"bad driver", func(c *Config) { c.DriverID = "driver 1" }, sdkerr.InvalidParams},
		{"empty driver", func(c *Config) { c.DriverID = "" }, sdkerr.InvalidParams},
		{"bad region", func(c *Config) { c.Region = "mars" }, sdkerr.InvalidRegion},
		{"bad group", func(c *Config) { c.Attributes.Group = "a/b" }, sdkerr.InvalidParams},
		{"too many custom", func(c *Config) {
			c.Attributes.Custom = map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}
		}, sdkerr.InvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.edit(&cfg)
			err := f.rt.Setup(ctx, cfg, f.rec)
			assert.True(t, sdkerr.IsKind(err, tc.kind), "got %v", err)
		})
	}

	cfg := baseConfig()
	cfg.Region = " EU "
	f.setup(t, cfg)
	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, RegionEU, state.Region)
}

func TestSetupGrantChecks(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		grant auth.Grant
		cfg   func(*Config)
		kind  sdkerr.Kind
	}{
		{"deprovisioned", auth.Grant{Deprovisioned: true}, func(*Config) {}, sdkerr.UserDeprovisioned},
		{"region", auth.Grant{Regions: []string{"eu"}}, func(*Config) {}, sdkerr.RegionUnsupported},
		{"motorcycle", auth.Grant{}, func(c *Config) { c.Attributes.VehicleType = trip.VehicleMotorcycle }, sdkerr.UnsupportedVehicleType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil, &fakeValidator{grant: tc.grant}, Options{})
			cfg := baseConfig()
			tc.cfg(&cfg)
			err := f.rt.Setup(ctx, cfg, f.rec)
			assert.True(t, sdkerr.IsKind(err, tc.kind), "got %v", err)

			state, err := f.rt.State(ctx)
			require.NoError(t, err)
			assert.False(t, state.Ready)
			assert.False(t, state.SettingUp)
		})
	}
}

func TestSetupMapsValidatorFailures(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, nil, &fakeValidator{err: errors.New("boom")}, Options{})
	assert.True(t, sdkerr.IsKind(f.rt.Setup(ctx, baseConfig(), f.rec), sdkerr.InternalFailure))

	f = newFixture(t, nil, &fakeValidator{err: sdkerr.New(sdkerr.InvalidSDKKey)}, Options{})
	assert.True(t, sdkerr.IsKind(f.rt.Setup(ctx, baseConfig(), f.rec), sdkerr.InvalidSDKKey))

	f = newFixture(t, nil, &fakeValidator{block: make(chan struct{})}, Options{})
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.True(t, sdkerr.IsKind(f.rt.Setup(short, baseConfig(), f.rec), sdkerr.NetworkUnreachable))
	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.SettingUp)
}

func TestTeardownDuringValidationMakesCompletionNoop(t *testing.T) {
	v := &fakeValidator{block: make(chan struct{})}
	f := newFixture(t, nil, v, Options{})
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- f.rt.Setup(ctx, baseConfig(), f.rec) }()

	require.Eventually(t, func() bool {
		s, err := f.rt.State(ctx)
		return err == nil && s.SettingUp
	}, time.Second, 5*time.Millisecond)

	assert.True(t, sdkerr.IsKind(f.rt.StartManual(ctx, "t1"), sdkerr.NotSetup))
	assert.True(t, sdkerr.IsKind(f.rt.Setup(ctx, baseConfig(), f.rec), sdkerr.NotTornDown))

	require.NoError(t, f.rt.Teardown(ctx))
	select {
	case err := <-errc:
		assert.True(t, sdkerr.IsKind(err, sdkerr.NotSetup), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("setup did not return after teardown")
	}

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Ready)
	assert.Empty(t, f.events())
}

func TestSetupAgainReappliesOrRequiresTeardown(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())

	require.NoError(t, f.rt.DetectStart(ctx, time.Time{}))
	id := f.activeID(t)

	cfg := baseConfig()
	cfg.Mode = trip.ModeAutoOff
	f.setup(t, cfg)
	assert.Equal(t, []string{"start:" + id, "end:" + id}, f.events())

	other := baseConfig()
	other.DriverID = "driver-2"
	assert.True(t, sdkerr.IsKind(f.rt.Setup(ctx, other, f.rec), sdkerr.NotTornDown))

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, trip.ModeAutoOff, state.Mode)
	assert.Equal(t, "driver-1", state.DriverID)
}

func TestRegionLockedUntilWipe(t *testing.T) {
	st := openStore(t)
	f := newFixture(t, st, nil, Options{})
	ctx := context.Background()

	f.setup(t, baseConfig())
	assert.True(t, sdkerr.IsKind(f.rt.Wipe(ctx), sdkerr.NotTornDown))
	require.NoError(t, f.rt.Teardown(ctx))

	eu := baseConfig()
	eu.Region = RegionEU
	assert.True(t, sdkerr.IsKind(f.rt.Setup(ctx, eu, f.rec), sdkerr.UnauthorizedRegionSwitch))

	require.NoError(t, f.rt.Wipe(ctx))
	f.setup(t, eu)
	region, err := st.Region(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eu", region)
}

func TestNoCallbackAfterTeardown(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	ctx := context.Background()
	f.setup(t, baseConfig())

	require.NoError(t, f.rt.StartManual(ctx, "t1"))
	require.NoError(t, f.rt.Teardown(ctx))
	before := f.events()

	assert.True(t, sdkerr.IsKind(f.rt.StopManual(ctx), sdkerr.NotSetup))
	assert.Equal(t, before, f.events())

	state, err := f.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.DriveInProgress)
}

func TestResumeAfterRestart(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	first.setup(t, baseConfig())
	require.NoError(t, first.rt.StartManual(ctx, "t1"))
	id := first.activeID(t)
	require.NoError(t, first.rt.AddLocation(ctx, trip.Point{Timestamp: epoch, Lat: 37.0, Lng: -122.0}))
	require.NoError(t, first.rt.AddLocation(ctx, trip.Point{Timestamp: epoch.Add(time.Minute), Lat: 37.01, Lng: -122.0}))
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{})
	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, epoch, epoch), sdkerr.NotSetup))
	second.setup(t, baseConfig())

	state, err := second.rt.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Resumable)
	assert.False(t, state.DriveInProgress)

	gapStart, gapEnd := epoch.Add(2*time.Minute), epoch.Add(5*time.Minute)
	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, gapEnd, gapStart), sdkerr.InvalidParams))
	require.NoError(t, second.rt.Resume(ctx, gapStart, gapEnd))
	assert.Equal(t, []string{"resume:" + id}, second.events())

	second.rec.mu.Lock()
	resumed := second.rec.resume[0]
	second.rec.mu.Unlock()
	assert.Equal(t, "t1", resumed.TrackingID)
	assert.InDelta(t, 1112, resumed.Distance, 5)
	assert.Equal(t, gapStart, resumed.GapStart)
	assert.Equal(t, gapEnd, resumed.GapEnd)

	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, gapStart, gapEnd), sdkerr.NothingToResume))
	require.NoError(t, second.rt.StopManual(ctx))
	assert.Equal(t, []string{"resume:" + id, "end:" + id}, second.events())
}

func TestNewTripEndsUnresumedTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	first.setup(t, baseConfig())
	require.NoError(t, first.rt.DetectStart(ctx, time.Time{}))
	old := first.activeID(t)
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{NewID: func() string { return "fresh" }})
	second.setup(t, baseConfig())
	require.NoError(t, second.rt.DetectStart(ctx, time.Time{}))
	assert.Equal(t, []string{"end:" + old, "start:fresh"}, second.events())

	state, err := second.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Resumable)
}

func TestRestoredAutoTripEndsWhenDetectionIsOff(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	first.setup(t, baseConfig())
	require.NoError(t, first.rt.DetectStart(ctx, time.Time{}))
	old := first.activeID(t)
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{})
	cfg := baseConfig()
	cfg.Mode = trip.ModeAutoOff
	second.setup(t, cfg)
	assert.Equal(t, []string{"end:" + old}, second.events())

	state, err := second.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Resumable)
	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, epoch, epoch.Add(time.Minute)), sdkerr.NothingToResume))
	assert.Equal(t, []string{"end:" + old}, second.events())
}

func TestPendingAutoTripEndsOnModeChange(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	first.setup(t, baseConfig())
	require.NoError(t, first.rt.DetectStart(ctx, time.Time{}))
	old := first.activeID(t)
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{})
	second.setup(t, baseConfig())
	state, err := second.rt.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Resumable)

	cfg := baseConfig()
	cfg.Mode = trip.ModeAutoOff
	second.setup(t, cfg)
	assert.Contains(t, second.events(), "end:"+old)
	state, err = second.rt.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Resumable)
	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, epoch, epoch.Add(time.Minute)), sdkerr.NothingToResume))
}

func TestRestoredPeriodTripRestoresPeriod(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	cfg := baseConfig()
	cfg.Mode = trip.ModeInsurance
	first.setup(t, cfg)
	require.NoError(t, first.rt.StartPeriod(ctx, trip.Period2, "p2"))
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{})
	second.setup(t, cfg)
	state, err := second.rt.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Resumable)
	assert.Equal(t, trip.Period2, state.Period)
	assert.Equal(t, "p2", state.PeriodTrackingID)

	err = second.rt.StartPeriod(ctx, trip.Period2, "p2")
	assert.True(t, sdkerr.IsKind(err, sdkerr.PeriodUnchanged))
}

func TestResumeClampsGapToLastUpdate(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	first := newFixture(t, st, nil, Options{})
	first.setup(t, baseConfig())
	require.NoError(t, first.rt.StartManual(ctx, "t1"))
	require.NoError(t, first.rt.AddLocation(ctx, trip.Point{Timestamp: epoch.Add(time.Minute), Lat: 37.0, Lng: -122.0}))
	require.NoError(t, first.rt.Close())

	second := newFixture(t, st, nil, Options{})
	second.setup(t, baseConfig())

	assert.True(t, sdkerr.IsKind(second.rt.Resume(ctx, epoch, epoch.Add(30*time.Second)), sdkerr.InvalidParams))
	require.NoError(t, second.rt.Resume(ctx, epoch, epoch.Add(3*time.Minute)))

	second.hub.Sync()
	second.rec.mu.Lock()
	resumed := second.rec.resume[0]
	second.rec.mu.Unlock()
	assert.Equal(t, epoch.Add(time.Minute), resumed.GapStart)
	assert.Equal(t, epoch.Add(3*time.Minute), resumed.GapEnd)
}

func TestClosedRuntime(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})
	require.NoError(t, f.rt.Close())
	require.NoError(t, f.rt.Close())
	assert.ErrorIs(t, f.rt.StartManual(context.Background(), "t1"), ErrClosed)
}
