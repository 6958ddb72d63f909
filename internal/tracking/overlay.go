package tracking

import (
	"context"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// StartSession tags trips started from now on with id. Trips in progress keep
// the session they started with. An invalid id is ignored.
func (r *Runtime) StartSession(ctx context.Context, id string) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if !ident.ValidID(id, true) {
			r.log.Debug().Msg("invalid session id ignored")
			return nil
		}
		if r.sessionID != "" && r.sessionID != id {
			r.log.Debug().Str("session_id", r.sessionID).Msg("session replaced")
		}
		r.sessionID = id
		r.log.Debug().Str("session_id", id).Msg("session started")
		return nil
	})
}

func (r *Runtime) StopSession(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.sessionID == "" {
			return nil
		}
		r.log.Debug().Str("session_id", r.sessionID).Msg("session stopped")
		r.sessionID = ""
		return nil
	})
}

// StartPeriod switches the insurance period. Any trip in progress ends and a
// new trip tagged with the period starts at once, so no trip spans two
// periods. Periods 2 and 3 require a tracking id.
func (r *Runtime) StartPeriod(ctx context.Context, period trip.Period, trackingID string) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if period == trip.NoPeriod {
			return sdkerr.Newf(sdkerr.InvalidParams, "use StopPeriod to leave the insurance period")
		}
		if !ident.ValidID(trackingID, false) {
			return sdkerr.New(sdkerr.InvalidTrackingID)
		}
		if trackingID == "" && (period == trip.Period2 || period == trip.Period3) {
			return sdkerr.Newf(sdkerr.InvalidTrackingID, "%s requires a tracking id", period)
		}
		if period == r.period && trackingID == r.periodTrackingID {
			return sdkerr.New(sdkerr.PeriodUnchanged)
		}
		now := r.now()
		if r.active != nil {
			r.endActive(now)
		}
		r.period = period
		r.periodTrackingID = trackingID
		r.startTrip(trip.TriggerPeriod, trackingID, now)
		return nil
	})
}

// StopPeriod ends any trip in progress and leaves the insurance period.
func (r *Runtime) StopPeriod(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if r.active != nil {
			r.endActive(r.now())
		}
		if r.period != trip.NoPeriod {
			r.log.Debug().Str("period", r.period.String()).Msg("period stopped")
		}
		r.period = trip.NoPeriod
		r.periodTrackingID = ""
		return nil
	})
}
