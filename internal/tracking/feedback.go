package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// AddDriveCategory records what kind of trip an ended drive really was.
func (r *Runtime) AddDriveCategory(ctx context.Context, driveID string, category trip.DriveCategory) error {
	return r.updateFeedback(ctx, driveID, func(_ trip.Info, fb *trip.Feedback) error {
		fb.SetCategory(category)
		return nil
	})
}

// AddEventOccurrence confirms or denies an event of an ended drive. The event
// must be part of the stored report.
func (r *Runtime) AddEventOccurrence(ctx context.Context, driveID string, o trip.EventOccurrence) error {
	return r.updateFeedback(ctx, driveID, func(info trip.Info, fb *trip.Feedback) error {
		if !info.HasEvent(o.Type, o.StartedAt) {
			return sdkerr.Newf(sdkerr.InvalidParams, "trip %s has no %s event at %s", driveID, o.Type, o.StartedAt.Format(time.RFC3339Nano))
		}
		fb.SetOccurrence(o)
		return nil
	})
}

func (r *Runtime) updateFeedback(ctx context.Context, driveID string, fn func(trip.Info, *trip.Feedback) error) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		sctx, cancel := r.storeCtx()
		defer cancel()
		info, err := r.store.Trip(sctx, driveID)
		if errors.Is(err, store.ErrNotFound) {
			return sdkerr.Newf(sdkerr.InvalidParams, "unknown or still active trip %s", driveID)
		}
		if err != nil {
			return sdkerr.Newf(sdkerr.IOError, "read trip: %v", err)
		}

		var fb trip.Feedback
		if info.Feedback != nil {
			fb = *info.Feedback
			fb.Events = append([]trip.EventOccurrence(nil), info.Feedback.Events...)
		}
		if err := fn(info, &fb); err != nil {
			return err
		}
		info.Feedback = &fb
		if err := r.store.SaveTrip(sctx, info); err != nil {
			return sdkerr.Newf(sdkerr.IOError, "save feedback: %v", err)
		}
		if e, ok := r.ended[driveID]; ok {
			e.info.Feedback = info.Feedback
			r.ended[driveID] = e
		}
		r.log.Debug().Str("trip_id", driveID).Int("event_answers", len(fb.Events)).Msg("feedback recorded")
		return nil
	})
}

// carryFeedback copies feedback given on the estimate onto a later report of
// the same trip.
func (r *Runtime) carryFeedback(info *trip.Info) {
	if info.Feedback != nil {
		return
	}
	ctx, cancel := r.storeCtx()
	defer cancel()
	stored, err := r.store.Trip(ctx, info.DriveID)
	if err != nil {
		return
	}
	info.Feedback = stored.Feedback
}
