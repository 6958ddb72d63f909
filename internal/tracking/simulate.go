package tracking

import (
	"context"
	"sort"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/mock"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// simulation is a mock drive being fed through the detection signals. Steps
// only touch the trip the simulation started.
type simulation struct {
	cancel  context.CancelFunc
	driveID string
	origin  time.Time
	drive   mock.Drive
}

// shift maps a drive timestamp onto the runtime clock.
func (s *simulation) shift(t time.Time) time.Time {
	return s.origin.Add(t.Sub(s.drive.Start))
}

func (s *simulation) owns(t *trip.Trip) bool {
	return t != nil && s.driveID != "" && t.ID == s.driveID
}

type simStep struct {
	at  time.Duration
	run func(*simulation)
}

// SimulateDrive plays d through the auto detection pipeline, compressed into
// runTime of real time plus the drive's start, end and analysis delays. It
// returns once the simulation is scheduled.
func (r *Runtime) SimulateDrive(ctx context.Context, d mock.Drive, runTime time.Duration) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if runTime <= 0 || runTime > mock.MaxRunTime {
			return sdkerr.New(sdkerr.MockInvalidRunTime)
		}
		if r.mode != trip.ModeAutoOn {
			return sdkerr.New(sdkerr.MockAutoDetectionNotOn)
		}
		if r.sim != nil {
			return sdkerr.New(sdkerr.MockSimulationInProgress)
		}
		if d.Duration() <= 0 {
			return sdkerr.Newf(sdkerr.InvalidParams, "mock drive has no duration")
		}
		if d.VehicleType != r.cfg.Attributes.VehicleType {
			return sdkerr.Newf(sdkerr.UnsupportedVehicleType, "mock drive is a %s, driver uses a %s", d.VehicleType, r.cfg.Attributes.VehicleType)
		}

		sctx, cancel := context.WithCancel(context.Background())
		sim := &simulation{cancel: cancel, drive: d}
		r.sim = sim
		steps := r.simSteps(d, runTime)
		go r.playSimulation(sctx, sim, steps)
		r.log.Info().
			Dur("run_time", runTime).
			Dur("drive_duration", d.Duration()).
			Int("steps", len(steps)).
			Msg("mock drive simulation started")
		return nil
	})
}

func (r *Runtime) simSteps(d mock.Drive, runTime time.Duration) []simStep {
	scale := float64(runTime) / float64(d.Duration())
	offset := func(t time.Time) time.Duration {
		return d.StartDelay + min(time.Duration(float64(t.Sub(d.Start))*scale), runTime)
	}

	steps := []simStep{{at: d.StartDelay, run: func(s *simulation) {
		s.origin = r.now()
		t := r.detectStart(s.origin)
		if t == nil {
			r.log.Warn().Msg("mock drive could not start, trip already in progress")
			r.stopSimulation()
			return
		}
		s.driveID = t.ID
	}}}

	for _, p := range d.Waypoints {
		steps = append(steps, simStep{at: offset(p.Timestamp), run: func(s *simulation) {
			if !s.owns(r.active) {
				return
			}
			p.Timestamp = s.shift(p.Timestamp)
			r.active.AddPoint(p)
			r.checkpoint()
		}})
	}
	for _, e := range d.Events {
		steps = append(steps, simStep{at: offset(e.Stop.Timestamp), run: func(s *simulation) {
			if !s.owns(r.active) {
				return
			}
			e.Start.Timestamp = s.shift(e.Start.Timestamp)
			e.Stop.Timestamp = s.shift(e.Stop.Timestamp)
			r.active.AddEvent(e)
			r.checkpoint()
		}})
	}
	for _, a := range d.Accidents {
		accidentID := r.newID()
		at := offset(a.At)
		steps = append(steps, simStep{at: at, run: func(s *simulation) {
			if !a.Potential || !s.owns(r.active) {
				return
			}
			potential, _ := r.mockSignals(s, accidentID, a)
			if _, err := r.potentialAccident(potential); err != nil {
				r.log.Warn().Err(err).Str("accident_id", accidentID).Msg("mock potential accident rejected")
			}
		}})
		delay := time.Duration(float64(a.Config.Delay) * scale)
		steps = append(steps, simStep{at: at + delay, run: func(s *simulation) {
			_, open := r.accidents.Open(accidentID)
			if !open && !s.owns(r.active) {
				return
			}
			_, final := r.mockSignals(s, accidentID, a)
			if _, err := r.finalAccident(final); err != nil {
				r.log.Warn().Err(err).Str("accident_id", accidentID).Msg("mock final accident rejected")
			}
		}})
	}

	end := d.StartDelay + runTime + d.EndDelay
	steps = append(steps,
		simStep{at: end, run: func(s *simulation) {
			if s.owns(r.active) {
				r.endActive(s.shift(d.End))
			}
		}},
		simStep{at: end + d.AnalysisDelay, run: func(s *simulation) {
			if _, ok := r.ended[s.driveID]; ok {
				if err := r.analysisReady(d.Analysis(s.driveID)); err != nil {
					r.log.Warn().Err(err).Str("trip_id", s.driveID).Msg("mock analysis rejected")
				}
			}
			r.stopSimulation()
			r.log.Info().Str("trip_id", s.driveID).Msg("mock drive simulation finished")
		}},
	)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].at < steps[j].at })
	return steps
}

func (r *Runtime) mockSignals(s *simulation, accidentID string, a mock.Accident) (accident.Signal, accident.Signal) {
	loc := a.Location
	loc.Timestamp = s.shift(a.Location.Timestamp)
	if a.Location.Timestamp.IsZero() {
		loc.Timestamp = s.shift(a.At)
	}
	return a.Config.Signals(accidentID, s.driveID, s.shift(a.At), loc)
}

// playSimulation paces steps on the wall clock and runs each on the loop.
func (r *Runtime) playSimulation(ctx context.Context, sim *simulation, steps []simStep) {
	begin := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for _, st := range steps {
		if wait := time.Until(begin.Add(st.at)); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		run := st.run
		r.submit(func() {
			if r.sim != sim {
				return
			}
			run(sim)
		})
	}
}

func (r *Runtime) stopSimulation() {
	if r.sim == nil {
		return
	}
	r.sim.cancel()
	r.sim = nil
}
