// Package tracking is the telematics runtime: the drive detection state
// machine, the session and insurance period overlay, the accident protocol
// and vehicle tagging, all serialized through one goroutine.
//
// Every exported operation is submitted to that goroutine and waits for its
// result. Work that may block, such as application key validation or timed
// mock signals, runs elsewhere and re-enters through the same queue; a
// generation counter turns completions that outlived a teardown into no-ops.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/analysis"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/logger"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("tracking: runtime closed")

type phase int

const (
	phaseIdle phase = iota
	phaseSettingUp
	phaseReady
)

type endedTrip struct {
	info   trip.Info
	routes []trip.RouteSpan
}

type Runtime struct {
	hub       *stream.Hub
	store     store.Store
	validator KeyValidator
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
	expiry    time.Duration

	analysisTimeout  time.Duration
	analysisCapacity int

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the loop goroutine.
	phase       phase
	gen         uint64
	cancelSetup context.CancelFunc
	cfg         Config
	grant       auth.Grant
	sub         *stream.Subscription

	mode             trip.Mode
	active           *trip.Trip
	pending          *trip.Trip
	sessionID        string
	period           trip.Period
	periodTrackingID string

	accidents *accident.Tracker
	vehicles  *vehicle.Registry
	sequencer *analysis.Sequencer[trip.Info]
	ended     map[string]endedTrip
	timers    map[*time.Timer]struct{}
	sim       *simulation

	reported []stream.SettingsError
	emitted  []stream.SettingsError
}

// New starts the runtime loop. A nil validator accepts every application key
// with an unrestricted grant.
func New(hub *stream.Hub, st store.Store, validator KeyValidator, opts Options) *Runtime {
	r := &Runtime{
		hub:              hub,
		store:            st,
		validator:        validator,
		log:              logger.Component("tracking"),
		now:              opts.Now,
		newID:            opts.NewID,
		expiry:           opts.ExpiryInterval,
		analysisTimeout:  opts.AnalysisTimeout,
		analysisCapacity: opts.AnalysisCapacity,
		cmds:             make(chan func()),
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
		accidents:        accident.NewTracker(false),
		vehicles:         vehicle.NewRegistry(nil),
		ended:            map[string]endedTrip{},
		timers:           map[*time.Timer]struct{}{},
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.expiry <= 0 {
		r.expiry = defaultExpiryInterval
	}
	if r.analysisTimeout <= 0 {
		r.analysisTimeout = defaultAnalysisTimeout
	}
	if r.analysisCapacity <= 0 {
		r.analysisCapacity = defaultAnalysisCapacity
	}
	r.sequencer = analysis.NewSequencer[trip.Info](r.analysisTimeout, r.analysisCapacity)
	go r.loop()
	return r
}

func (r *Runtime) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.expiry)
	defer ticker.Stop()
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-ticker.C:
			r.expireAnalyses()
		case <-r.quit:
			return
		}
	}
}

// Close tears the runtime down and stops its loop. It does not close the hub.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		_ = r.do(context.Background(), func() error {
			r.teardown()
			return nil
		})
		close(r.quit)
		<-r.done
	})
	return nil
}

// do runs fn on the loop goroutine and returns its result. Once fn is queued
// it runs to completion even if ctx ends.
func (r *Runtime) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case r.cmds <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrClosed
	}
}

func call[T any](ctx context.Context, r *Runtime, fn func() (T, error)) (T, error) {
	var out T
	err := r.do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// submit queues fn from a background goroutine without waiting for it.
func (r *Runtime) submit(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.quit:
	}
}

// after runs fn on the loop once d has passed, unless the runtime was torn
// down in between.
func (r *Runtime) after(d time.Duration, fn func()) {
	gen := r.gen
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.submit(func() {
			delete(r.timers, t)
			if r.gen != gen {
				return
			}
			fn()
		})
	})
	r.timers[t] = struct{}{}
}

func (r *Runtime) stopTimers() {
	for t := range r.timers {
		t.Stop()
	}
	r.timers = map[*time.Timer]struct{}{}
}

func (r *Runtime) ready() error {
	if r.phase != phaseReady {
		return sdkerr.New(sdkerr.NotSetup)
	}
	return nil
}

func (r *Runtime) emit(e stream.Event) {
	r.hub.Publish(e)
}

// State never fails for a torn down runtime; it reports Ready false.
func (r *Runtime) State(ctx context.Context) (State, error) {
	return call(ctx, r, func() (State, error) {
		s := State{
			Ready:            r.phase == phaseReady,
			SettingUp:        r.phase == phaseSettingUp,
			Mode:             r.mode,
			SessionID:        r.sessionID,
			Period:           r.period,
			PeriodTrackingID: r.periodTrackingID,
			DriveInProgress:  r.active != nil,
			Resumable:        r.pending != nil,
			Simulating:       r.sim != nil,
			PendingAnalyses:  r.sequencer.Pending(),
			Associations:     len(r.vehicles.Associated()),
		}
		if r.phase != phaseIdle {
			s.DriverID = r.cfg.DriverID
			s.Region = r.cfg.Region
		}
		return s, nil
	})
}

func (r *Runtime) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (r *Runtime) checkpoint() {
	if r.active == nil {
		return
	}
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.SaveCheckpoint(ctx, r.active); err != nil {
		r.log.Error().Err(err).Str("trip_id", r.active.ID).Msg("checkpoint failed")
	}
}

func (r *Runtime) clearCheckpoint() {
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.ClearCheckpoint(ctx); err != nil {
		r.log.Error().Err(err).Msg("clear checkpoint failed")
	}
}

func (r *Runtime) saveTrip(info trip.Info) {
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.SaveTrip(ctx, info); err != nil {
		r.log.Error().Err(err).Str("trip_id", info.DriveID).Str("quality", info.Quality.String()).Msg("save trip failed")
	}
}

func (r *Runtime) saveAssociations() {
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.store.SaveAssociations(ctx, r.vehicles.Associated()); err != nil {
		r.log.Error().Err(err).Msg("save associations failed")
	}
}
