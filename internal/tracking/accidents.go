package tracking

import (
	"context"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// PotentialAccident records the first stage of an accident on the trip in
// progress. Missing accident id and timestamp are filled in; the returned
// signal is what was recorded.
func (r *Runtime) PotentialAccident(ctx context.Context, s accident.Signal) (accident.Signal, error) {
	return call(ctx, r, func() (accident.Signal, error) {
		if err := r.ready(); err != nil {
			return accident.Signal{}, err
		}
		return r.potentialAccident(s)
	})
}

func (r *Runtime) potentialAccident(s accident.Signal) (accident.Signal, error) {
	if s.DriveID == "" && r.active != nil {
		s.DriveID = r.active.ID
	}
	r.fillSignal(&s)
	s.Stage = accident.StagePotential
	emit, err := r.accidents.Potential(s)
	if err != nil {
		return accident.Signal{}, err
	}
	r.log.Debug().
		Str("accident_id", s.AccidentID).
		Str("trip_id", s.DriveID).
		Str("confidence", s.Confidence.String()).
		Int("number", s.Number).
		Bool("delivered", emit).
		Msg("potential accident")
	if emit {
		r.emit(stream.AccidentEvent(s))
	}
	return s, nil
}

// FinalAccident closes an accident. A number of 0 retracts the potential
// signal. Either way the trip in progress ends.
func (r *Runtime) FinalAccident(ctx context.Context, s accident.Signal) (accident.Signal, error) {
	return call(ctx, r, func() (accident.Signal, error) {
		if err := r.ready(); err != nil {
			return accident.Signal{}, err
		}
		return r.finalAccident(s)
	})
}

func (r *Runtime) finalAccident(s accident.Signal) (accident.Signal, error) {
	if s.DriveID == "" {
		if p, ok := r.accidents.Open(s.AccidentID); ok && s.AccidentID != "" {
			s.DriveID = p.DriveID
		} else if r.active != nil {
			s.DriveID = r.active.ID
		}
	}
	r.fillSignal(&s)
	final, err := r.accidents.Final(s)
	if err != nil {
		return accident.Signal{}, err
	}
	r.log.Debug().
		Str("accident_id", final.AccidentID).
		Str("trip_id", final.DriveID).
		Int("number", final.Number).
		Bool("false_alarm", final.FalseAlarm()).
		Msg("final accident")

	// A retraction is only meaningful to a delegate that saw the potential.
	if !final.FalseAlarm() || r.cfg.MultipleAccidentCallbacks {
		r.emit(stream.AccidentEvent(final))
	}
	if r.active != nil {
		if !final.FalseAlarm() {
			r.active.AddEvent(trip.Event{
				Type:     trip.EventAccident,
				Severity: trip.SeverityHigh,
				Start:    final.Location,
				Stop:     final.Location,
			})
		}
		r.endActive(r.now())
	}
	return final, nil
}

func (r *Runtime) fillSignal(s *accident.Signal) {
	if s.AccidentID == "" {
		s.AccidentID = r.newID()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = r.now()
	}
	if s.Location.Timestamp.IsZero() {
		s.Location.Timestamp = s.Timestamp
	}
}

// RaiseMockAccident injects an accident on the trip in progress, or on a
// synthetic trip id when none is. The potential signal is raised at once and
// the final one cfg.Delay later, as production detection does. It returns the
// accident id.
func (r *Runtime) RaiseMockAccident(ctx context.Context, cfg accident.MockConfig) (string, error) {
	return call(ctx, r, func() (string, error) {
		if err := r.ready(); err != nil {
			return "", err
		}
		if err := cfg.Validate(); err != nil {
			return "", err
		}
		driveID := "mock-" + r.newID()
		var loc trip.Point
		if r.active != nil {
			driveID = r.active.ID
			if n := len(r.active.Waypoints); n > 0 {
				loc = r.active.Waypoints[n-1]
			}
		}
		potential, final := cfg.Signals(r.newID(), driveID, r.now(), loc)
		if _, err := r.potentialAccident(potential); err != nil {
			return "", err
		}
		r.after(cfg.Delay, func() {
			if _, err := r.finalAccident(final); err != nil {
				r.log.Warn().Err(err).Str("accident_id", final.AccidentID).Msg("mock final accident rejected")
			}
		})
		return potential.AccidentID, nil
	})
}
