package accident

import (
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
)

// closedHistory bounds how many finalized accident ids are remembered for
// duplicate detection.
const closedHistory = 64

// openLimit bounds how many potential signals wait for a final one. The oldest
// is forgotten first; a late final for it is handled as a standalone final.
const openLimit = 16

// Tracker holds the open potential signal per accident id. It is not safe for
// concurrent use; the tracking runtime owns it.
type Tracker struct {
	multiple bool
	open     map[string]Signal
	opened   []string
	closed   []string
}

// NewTracker returns a tracker. With multiple disabled, potential signals are
// still recorded but never emitted.
func NewTracker(multiple bool) *Tracker {
	return &Tracker{multiple: multiple, open: map[string]Signal{}}
}

func (t *Tracker) SetMultiple(multiple bool) {
	t.multiple = multiple
}

// Potential validates a potential signal and records it. emit is false when the
// signal is valid but potential callbacks are disabled.
func (t *Tracker) Potential(s Signal) (emit bool, err error) {
	if s.AccidentID == "" || s.DriveID == "" {
		return false, sdkerr.Newf(sdkerr.InvalidParams, "accident and drive ids are required")
	}
	if s.Number < 1 || s.Number > MaxNumber {
		return false, sdkerr.Newf(sdkerr.InvalidParams, "potential confidence number must be within 1-100, got %d", s.Number)
	}
	if s.Confidence == ConfidenceInvalid {
		return false, sdkerr.Newf(sdkerr.InvalidParams, "potential signal cannot be invalid")
	}
	if _, ok := t.open[s.AccidentID]; ok || t.isClosed(s.AccidentID) {
		return false, sdkerr.Newf(sdkerr.InvalidParams, "accident %s already signalled", s.AccidentID)
	}
	s.Stage = StagePotential
	t.open[s.AccidentID] = s
	t.opened = append(t.opened, s.AccidentID)
	if len(t.opened) > openLimit {
		delete(t.open, t.opened[0])
		t.opened = t.opened[1:]
	}
	return t.multiple, nil
}

// Final validates a final signal and closes its accident. A number of 0 after a
// potential signal turns the final into an invalidation; without a potential it
// is rejected.
func (t *Tracker) Final(s Signal) (Signal, error) {
	if s.AccidentID == "" || s.DriveID == "" {
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "accident and drive ids are required")
	}
	if s.Number < 0 || s.Number > MaxNumber {
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "final confidence number must be within 0-100, got %d", s.Number)
	}
	if t.isClosed(s.AccidentID) {
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "accident %s already finalized", s.AccidentID)
	}
	potential, hadPotential := t.open[s.AccidentID]
	if hadPotential && potential.DriveID != s.DriveID {
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "accident %s belongs to drive %s", s.AccidentID, potential.DriveID)
	}
	switch {
	case s.Number == 0 && !hadPotential:
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "invalidation without a potential signal")
	case s.Number == 0:
		s.Confidence = ConfidenceInvalid
	case s.Confidence == ConfidenceInvalid:
		return Signal{}, sdkerr.Newf(sdkerr.InvalidParams, "invalid confidence requires number 0")
	}
	s.Stage = StageFinal
	if hadPotential {
		delete(t.open, s.AccidentID)
		t.opened = remove(t.opened, s.AccidentID)
	}
	t.closed = append(t.closed, s.AccidentID)
	if len(t.closed) > closedHistory {
		t.closed = t.closed[len(t.closed)-closedHistory:]
	}
	return s, nil
}

// Open returns the potential signal awaiting a final one.
func (t *Tracker) Open(accidentID string) (Signal, bool) {
	s, ok := t.open[accidentID]
	return s, ok
}

func (t *Tracker) Reset() {
	t.open = map[string]Signal{}
	t.opened = nil
	t.closed = nil
}

func remove(ids []string, id string) []string {
	for i, have := range ids {
		if have == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func (t *Tracker) isClosed(id string) bool {
	for _, c := range t.closed {
		if c == id {
			return true
		}
	}
	return false
}
