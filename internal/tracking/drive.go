package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// SetMode changes the detection mode. A change ends an auto-detected trip in
// progress before the new mode takes effect.
func (r *Runtime) SetMode(ctx context.Context, mode trip.Mode) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		r.setMode(mode)
		return nil
	})
}

func (r *Runtime) setMode(mode trip.Mode) {
	if mode == r.mode {
		return
	}
	if r.active != nil && r.active.Trigger == trip.TriggerAuto {
		r.endActive(r.now())
	}
	if mode != trip.ModeAutoOn && r.pending != nil && r.pending.Trigger == trip.TriggerAuto {
		r.endPending()
	}
	r.log.Debug().Str("from", r.mode.String()).Str("mode", mode.String()).Msg("mode changed")
	r.mode = mode
	r.cfg.Mode = mode
	r.publishSettings()
}

// StartManual starts a host-driven trip. Repeating the call with the tracking
// id of the manual trip in progress does nothing; any other trip in progress
// is ended first.
func (r *Runtime) StartManual(ctx context.Context, trackingID string) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if !ident.ValidID(trackingID, false) {
			return sdkerr.New(sdkerr.InvalidTrackingID)
		}
		if r.active != nil {
			if r.active.Trigger.Manual() && r.active.TrackingID == trackingID {
				return nil
			}
			r.endActive(r.now())
		}
		r.startTrip(trip.TriggerManual, trackingID, r.now())
		return nil
	})
}

// StopManual ends a manual or period trip. The insurance period stays active.
func (r *Runtime) StopManual(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active == nil || !r.active.Trigger.Manual() {
			return sdkerr.New(sdkerr.NotTrackingManually)
		}
		r.endActive(r.now())
		return nil
	})
}

// DetectStart is the detection engine's start signal. It is ignored unless
// mode is auto-on and no trip is in progress. A zero at means now.
func (r *Runtime) DetectStart(ctx context.Context, at time.Time) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		r.detectStart(at)
		return nil
	})
}

func (r *Runtime) detectStart(at time.Time) *trip.Trip {
	if r.mode != trip.ModeAutoOn || r.active != nil {
		r.log.Debug().Str("mode", r.mode.String()).Bool("drive_in_progress", r.active != nil).Msg("auto start ignored")
		return nil
	}
	if at.IsZero() {
		at = r.now()
	}
	return r.startTrip(trip.TriggerAuto, "", at)
}

// DetectEnd ends the auto-detected trip in progress; it is ignored otherwise.
func (r *Runtime) DetectEnd(ctx context.Context, at time.Time) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active == nil || r.active.Trigger != trip.TriggerAuto {
			r.log.Debug().Msg("auto end ignored")
			return nil
		}
		if at.IsZero() {
			at = r.now()
		}
		r.endActive(at)
		return nil
	})
}

// Resume reactivates the trip restored at setup. The gap is the interval in
// which the process was not tracking.
func (r *Runtime) Resume(ctx context.Context, gapStart, gapEnd time.Time) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.pending == nil {
			return sdkerr.New(sdkerr.NothingToResume)
		}
		if r.pending.Trigger == trip.TriggerAuto && r.mode != trip.ModeAutoOn {
			r.endPending()
			return sdkerr.New(sdkerr.NothingToResume)
		}
		if gapStart.Before(r.pending.UpdatedAt) {
			gapStart = r.pending.UpdatedAt
		}
		if gapEnd.Before(gapStart) {
			return sdkerr.Newf(sdkerr.InvalidParams, "gap end before gap start")
		}
		t := r.pending
		r.pending = nil
		r.active = t
		r.checkpoint()
		r.emit(stream.DriveResume(t.ResumeInfo(gapStart, gapEnd)))
		r.log.Debug().Str("trip_id", t.ID).Dur("gap", gapEnd.Sub(gapStart)).Msg("trip resumed")
		return nil
	})
}

// AddLocation appends a waypoint to the trip in progress.
func (r *Runtime) AddLocation(ctx context.Context, p trip.Point) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active == nil {
			return nil
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = r.now()
		}
		r.active.AddPoint(p)
		r.checkpoint()
		return nil
	})
}

// AddEvent records a driving event on the trip in progress.
func (r *Runtime) AddEvent(ctx context.Context, e trip.Event) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active == nil {
			return nil
		}
		r.active.AddEvent(e)
		r.checkpoint()
		return nil
	})
}

// AudioRouteConnected records that bluetoothID became the audio route.
func (r *Runtime) AudioRouteConnected(ctx context.Context, bluetoothID string, at time.Time) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if !ident.ValidMAC(bluetoothID) {
			return sdkerr.Newf(sdkerr.InvalidParams, "bluetooth id must be a mac address")
		}
		if r.active == nil {
			return nil
		}
		if at.IsZero() {
			at = r.now()
		}
		r.active.ConnectRoute(ident.NormalizeMAC(bluetoothID), at)
		r.checkpoint()
		return nil
	})
}

func (r *Runtime) AudioRouteDisconnected(ctx context.Context, at time.Time) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active == nil {
			return nil
		}
		if at.IsZero() {
			at = r.now()
		}
		r.active.DisconnectRoute(at)
		r.checkpoint()
		return nil
	})
}

// AnalysisReady delivers the engine's analysis of an ended trip. Analyzed
// callbacks are emitted oldest trip first, so this may emit nothing or several.
func (r *Runtime) AnalysisReady(ctx context.Context, a trip.Analysis) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		return r.analysisReady(a)
	})
}

func (r *Runtime) analysisReady(a trip.Analysis) error {
	e, ok := r.ended[a.DriveID]
	if !ok {
		return sdkerr.Newf(sdkerr.InvalidParams, "analysis for unknown or still active trip %s", a.DriveID)
	}
	info := e.info.Apply(a)
	if _, tagged := vehicle.VehicleForTrip(info); !tagged {
		r.vehicles.TagTrip(&info, e.routes)
	}
	released, err := r.sequencer.Complete(a.DriveID, info)
	if err != nil {
		return err
	}
	r.release(released)
	return nil
}

func (r *Runtime) expireAnalyses() {
	if r.phase != phaseReady {
		return
	}
	r.release(r.sequencer.Expire(r.now()))
	for id := range r.ended {
		if !r.sequencer.Tracks(id) {
			delete(r.ended, id)
		}
	}
}

func (r *Runtime) release(infos []trip.Info) {
	for _, info := range infos {
		delete(r.ended, info.DriveID)
		r.carryFeedback(&info)
		r.saveTrip(info)
		r.emit(stream.DriveAnalyzed(info))
		r.log.Debug().Str("trip_id", info.DriveID).Int("score", info.Score).Msg("trip analyzed")
	}
}

// ActiveDrive describes the trip in progress, or returns nil.
func (r *Runtime) ActiveDrive(ctx context.Context) (*trip.ActiveInfo, error) {
	return call(ctx, r, func() (*trip.ActiveInfo, error) {
		if err := r.ready(); err != nil {
			return nil, err
		}
		if r.active == nil {
			return nil, nil
		}
		info := r.active.ActiveInfo()
		return &info, nil
	})
}

// Trips lists persisted trip reports, oldest first.
func (r *Runtime) Trips(ctx context.Context) ([]trip.Info, error) {
	return call(ctx, r, func() ([]trip.Info, error) {
		if err := r.ready(); err != nil {
			return nil, err
		}
		sctx, cancel := r.storeCtx()
		defer cancel()
		infos, err := r.store.Trips(sctx)
		if err != nil {
			return nil, sdkerr.Newf(sdkerr.IOError, "list trips: %v", err)
		}
		return infos, nil
	})
}

func (r *Runtime) Trip(ctx context.Context, driveID string) (trip.Info, error) {
	return call(ctx, r, func() (trip.Info, error) {
		if err := r.ready(); err != nil {
			return trip.Info{}, err
		}
		sctx, cancel := r.storeCtx()
		defer cancel()
		info, err := r.store.Trip(sctx, driveID)
		if errors.Is(err, store.ErrNotFound) {
			return trip.Info{}, sdkerr.Newf(sdkerr.InvalidParams, "unknown trip %s", driveID)
		}
		if err != nil {
			return trip.Info{}, sdkerr.Newf(sdkerr.IOError, "read trip: %v", err)
		}
		return info, nil
	})
}

// startTrip makes a new trip active, tagged with the current session and
// period. A restored trip that was never resumed is ended first.
func (r *Runtime) startTrip(trigger trip.Trigger, trackingID string, at time.Time) *trip.Trip {
	r.endPending()
	t := trip.New(r.newID(), trigger, at, trackingID, r.sessionID, r.period)
	t.VehicleType = r.cfg.Attributes.VehicleType
	r.active = t
	r.emit(stream.DriveStart(t.StartInfo()))
	r.checkpoint()
	r.log.Debug().
		Str("trip_id", t.ID).
		Str("trigger", trigger.String()).
		Str("mode", r.mode.String()).
		Str("session_id", t.SessionID).
		Str("period", t.Period.String()).
		Msg("trip started")
	return t
}

// endPending ends a restored trip at its last update without resuming it.
func (r *Runtime) endPending() {
	if r.pending == nil {
		return
	}
	p := r.pending
	r.pending = nil
	r.finish(p, p.UpdatedAt)
}

// restore adopts a checkpointed trip for Resume. An auto-detected trip only
// survives while detection is on; otherwise it ends right away.
func (r *Runtime) restore(cp *trip.Trip) {
	r.pending = cp
	if cp == nil {
		return
	}
	if cp.Trigger == trip.TriggerPeriod {
		r.period = cp.Period
		r.periodTrackingID = cp.TrackingID
	}
	if cp.Trigger == trip.TriggerAuto && r.mode != trip.ModeAutoOn {
		r.endPending()
	}
}

func (r *Runtime) endActive(at time.Time) {
	t := r.active
	r.active = nil
	r.finish(t, at)
}

// finish freezes t, emits its estimated report and queues it for analysis.
func (r *Runtime) finish(t *trip.Trip, at time.Time) {
	t.End(at)
	info := t.Estimate()
	r.vehicles.TagTrip(&info, t.Routes)
	r.emit(stream.DriveEnd(info))
	r.saveTrip(info)
	r.clearCheckpoint()
	r.ended[t.ID] = endedTrip{info: info, routes: append([]trip.RouteSpan(nil), t.Routes...)}
	r.release(r.sequencer.Register(t.ID, t.StartedAt, r.now()))
	r.log.Debug().
		Str("trip_id", t.ID).
		Str("trigger", t.Trigger.String()).
		Float64("distance_m", info.Distance).
		Msg("trip ended")
}
