// Package accident implements the two-stage accident signal protocol: an
// optional potential signal followed by exactly one final signal, where a final
// confidence number of 0 retracts the potential as a false alarm.
package accident

import (
	"strings"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

type Stage int

const (
	StagePotential Stage = iota
	StageFinal
)

func (s Stage) String() string {
	if s == StageFinal {
		return "final"
	}
	return "potential"
}

type Confidence int

const (
	ConfidenceHigh Confidence = iota
	ConfidenceLow
	ConfidenceInvalid
)

var confidenceNames = []string{"high", "low", "invalid"}

func (c Confidence) String() string {
	if c < 0 || int(c) >= len(confidenceNames) {
		return confidenceNames[ConfidenceHigh]
	}
	return confidenceNames[c]
}

// ConfidenceFromRaw falls back to ConfidenceHigh.
func ConfidenceFromRaw(raw int) Confidence {
	if raw < 0 || raw >= len(confidenceNames) {
		return ConfidenceHigh
	}
	return Confidence(raw)
}

// ParseConfidence falls back to ConfidenceHigh.
func ParseConfidence(s string) Confidence {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range confidenceNames {
		if n == s {
			return Confidence(i)
		}
	}
	return ConfidenceHigh
}

// MaxNumber is the upper bound of a confidence number.
const MaxNumber = 100

type Signal struct {
	AccidentID string     `json:"accident_id"`
	DriveID    string     `json:"drive_id"`
	Stage      Stage      `json:"stage"`
	Timestamp  time.Time  `json:"timestamp"`
	Location   trip.Point `json:"location"`
	Confidence Confidence `json:"confidence"`
	Number     int        `json:"confidence_number"`
}

// FalseAlarm reports whether a final signal retracts its potential signal.
func (s Signal) FalseAlarm() bool {
	return s.Stage == StageFinal && s.Confidence == ConfidenceInvalid
}
