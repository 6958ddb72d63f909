package tracking

import (
	"context"
	"errors"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// Setup validates cfg and the application key, then restores persisted state
// and subscribes delegate. Calling it again with the same key, driver and
// region only applies the new mode, attributes and callback settings; a
// different identity requires Teardown first.
//
// The key check may block; other operations report NotSetup until it is done.
// A Teardown during the check makes its completion a no-op and Setup returns
// NotSetup.
func (r *Runtime) Setup(ctx context.Context, cfg Config, delegate stream.Delegate) error {
	type started struct {
		gen uint64
		ctx context.Context
	}
	var s started
	reapplied := false
	err := r.do(ctx, func() error {
		if err := validateConfig(&cfg); err != nil {
			return err
		}
		switch r.phase {
		case phaseSettingUp:
			return sdkerr.New(sdkerr.NotTornDown)
		case phaseReady:
			if cfg.ApplicationKey != r.cfg.ApplicationKey || cfg.DriverID != r.cfg.DriverID || cfg.Region != r.cfg.Region {
				return sdkerr.New(sdkerr.NotTornDown)
			}
			if cfg.Attributes.VehicleType == trip.VehicleMotorcycle && !r.grant.Motorcycle {
				return sdkerr.New(sdkerr.UnsupportedVehicleType)
			}
			r.reapply(cfg, delegate)
			reapplied = true
			return nil
		}

		sctx, cancel := r.storeCtx()
		stored, err := r.store.Region(sctx)
		cancel()
		if err != nil {
			return sdkerr.Newf(sdkerr.IOError, "read region: %v", err)
		}
		if stored != "" && Region(stored) != cfg.Region {
			return sdkerr.New(sdkerr.UnauthorizedRegionSwitch)
		}

		r.gen++
		r.phase = phaseSettingUp
		r.cfg = cfg
		vctx, vcancel := context.WithCancel(context.Background())
		r.cancelSetup = vcancel
		s = started{gen: r.gen, ctx: vctx}
		return nil
	})
	if err != nil || reapplied {
		return err
	}

	grant, verr := r.validate(ctx, s.ctx, cfg)

	return r.do(context.Background(), func() error {
		if r.gen != s.gen || r.phase != phaseSettingUp {
			return sdkerr.Newf(sdkerr.NotSetup, "setup was cancelled by teardown")
		}
		r.cancelSetup()
		r.cancelSetup = nil
		if verr == nil {
			verr = checkGrant(grant, cfg)
		}
		if verr != nil {
			r.phase = phaseIdle
			r.log.Warn().Err(verr).Str("driver_id", cfg.DriverID).Msg("setup rejected")
			return verr
		}
		if err := r.complete(cfg, grant, delegate); err != nil {
			r.phase = phaseIdle
			return err
		}
		return nil
	})
}

func (r *Runtime) validate(callerCtx, setupCtx context.Context, cfg Config) (auth.Grant, error) {
	if r.validator == nil {
		return auth.Grant{Motorcycle: true}, nil
	}
	ctx, cancel := context.WithCancel(setupCtx)
	defer cancel()
	stop := context.AfterFunc(callerCtx, cancel)
	defer stop()

	grant, err := r.validator.Validate(ctx, cfg.ApplicationKey, cfg.DriverID)
	if err != nil {
		if _, ok := sdkerr.KindOf(err); !ok {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return auth.Grant{}, sdkerr.Newf(sdkerr.NetworkUnreachable, "key validation interrupted: %v", err)
			}
			return auth.Grant{}, sdkerr.Newf(sdkerr.InternalFailure, "key validation: %v", err)
		}
		return auth.Grant{}, err
	}
	return grant, nil
}

func validateConfig(cfg *Config) error {
	if cfg.ApplicationKey == "" {
		return sdkerr.New(sdkerr.InvalidSDKKey)
	}
	if !ident.ValidID(cfg.DriverID, true) {
		return sdkerr.Newf(sdkerr.InvalidParams, "driver id must be 1-64 valid characters")
	}
	region, ok := ParseRegion(string(cfg.Region))
	if !ok {
		return sdkerr.New(sdkerr.InvalidRegion)
	}
	cfg.Region = region
	return cfg.Attributes.validate()
}

func checkGrant(g auth.Grant, cfg Config) error {
	if g.Deprovisioned {
		return sdkerr.New(sdkerr.UserDeprovisioned)
	}
	if !g.AllowsRegion(string(cfg.Region)) {
		return sdkerr.New(sdkerr.RegionUnsupported)
	}
	if cfg.Attributes.VehicleType == trip.VehicleMotorcycle && !g.Motorcycle {
		return sdkerr.New(sdkerr.UnsupportedVehicleType)
	}
	return nil
}

func (r *Runtime) complete(cfg Config, grant auth.Grant, delegate stream.Delegate) error {
	ctx, cancel := r.storeCtx()
	defer cancel()

	if err := r.store.SaveRegion(ctx, string(cfg.Region)); err != nil {
		return sdkerr.Newf(sdkerr.IOError, "persist region: %v", err)
	}
	assocs, err := r.store.Associations(ctx)
	if err != nil {
		return sdkerr.Newf(sdkerr.IOError, "load vehicles: %v", err)
	}
	cp, err := r.store.Checkpoint(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cp = nil
	case err != nil:
		return sdkerr.Newf(sdkerr.IOError, "load checkpoint: %v", err)
	}

	r.grant = grant
	r.vehicles = vehicle.NewRegistry(assocs)
	r.accidents = accident.NewTracker(cfg.MultipleAccidentCallbacks)
	r.mode = cfg.Mode
	if delegate != nil {
		r.sub = r.hub.Subscribe(delegate)
	}
	r.restore(cp)
	r.phase = phaseReady
	r.log.Info().
		Str("driver_id", cfg.DriverID).
		Str("region", string(cfg.Region)).
		Str("mode", cfg.Mode.String()).
		Bool("resumable", r.pending != nil).
		Msg("setup complete")
	return nil
}

func (r *Runtime) reapply(cfg Config, delegate stream.Delegate) {
	r.cfg = cfg
	r.accidents.SetMultiple(cfg.MultipleAccidentCallbacks)
	switch {
	case delegate == nil:
	case r.sub != nil:
		r.sub.Swap(delegate)
	default:
		r.sub = r.hub.Subscribe(delegate)
	}
	r.setMode(cfg.Mode)
}

// Teardown stops tracking. An in-flight Setup is cancelled, pending timers and
// simulations stop and undelivered callbacks are dropped. The active trip is
// not ended; its checkpoint stays so the next Setup can resume it.
func (r *Runtime) Teardown(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.teardown()
		return nil
	})
}

func (r *Runtime) teardown() {
	if r.phase == phaseIdle {
		return
	}
	if r.cancelSetup != nil {
		r.cancelSetup()
		r.cancelSetup = nil
	}
	r.gen++
	r.stopTimers()
	r.stopSimulation()
	r.active = nil
	r.pending = nil
	r.sessionID = ""
	r.period = trip.NoPeriod
	r.periodTrackingID = ""
	r.accidents.Reset()
	r.sequencer.Reset()
	r.ended = map[string]endedTrip{}
	r.reported = nil
	r.emitted = nil
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
	r.hub.Drop()
	r.phase = phaseIdle
	r.log.Info().Str("driver_id", r.cfg.DriverID).Msg("teardown")
}

// Wipe erases persisted state, including the locked region. It requires a torn
// down runtime.
func (r *Runtime) Wipe(ctx context.Context) error {
	return r.do(ctx, func() error {
		if r.phase != phaseIdle {
			return sdkerr.New(sdkerr.NotTornDown)
		}
		sctx, cancel := r.storeCtx()
		defer cancel()
		if err := r.store.Wipe(sctx); err != nil {
			return sdkerr.Newf(sdkerr.IOError, "wipe: %v", err)
		}
		r.vehicles = vehicle.NewRegistry(nil)
		return nil
	})
}
