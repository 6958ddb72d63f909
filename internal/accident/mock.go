package accident

import (
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// MockConfig parameterizes an injected accident. The final signal is delivered
// Delay after the potential one, matching the production timing contract.
type MockConfig struct {
	PotentialConfidence Confidence    `json:"potential_confidence"`
	FinalConfidence     Confidence    `json:"final_confidence"`
	PotentialNumber     int           `json:"potential_number"`
	FinalNumber         int           `json:"final_number"`
	Delay               time.Duration `json:"delay"`
}

const DefaultMockDelay = 20 * time.Second

func DefaultMockConfig() MockConfig {
	return MockConfig{
		PotentialConfidence: ConfidenceHigh,
		FinalConfidence:     ConfidenceHigh,
		PotentialNumber:     70,
		FinalNumber:         70,
		Delay:               DefaultMockDelay,
	}
}

// InvalidateFinal makes the final signal retract the potential one.
func (c MockConfig) InvalidateFinal() MockConfig {
	c.FinalNumber = 0
	c.FinalConfidence = ConfidenceInvalid
	return c
}

func (c MockConfig) Validate() error {
	if c.PotentialNumber < 1 || c.PotentialNumber > MaxNumber {
		return sdkerr.Newf(sdkerr.InvalidParams, "potential confidence number must be within 1-100")
	}
	if c.PotentialConfidence == ConfidenceInvalid {
		return sdkerr.Newf(sdkerr.InvalidParams, "potential confidence cannot be invalid")
	}
	if c.FinalNumber < 0 || c.FinalNumber > MaxNumber {
		return sdkerr.Newf(sdkerr.InvalidParams, "final confidence number must be within 0-100")
	}
	if (c.FinalNumber == 0) != (c.FinalConfidence == ConfidenceInvalid) {
		return sdkerr.Newf(sdkerr.InvalidParams, "final number 0 and invalid confidence go together")
	}
	if c.Delay < 0 {
		return sdkerr.Newf(sdkerr.InvalidParams, "delay must not be negative")
	}
	return nil
}

// Signals builds the potential/final pair for one injected accident.
func (c MockConfig) Signals(accidentID, driveID string, at time.Time, loc trip.Point) (Signal, Signal) {
	potential := Signal{
		AccidentID: accidentID,
		DriveID:    driveID,
		Stage:      StagePotential,
		Timestamp:  at,
		Location:   loc,
		Confidence: c.PotentialConfidence,
		Number:     c.PotentialNumber,
	}
	final := potential
	final.Stage = StageFinal
	final.Confidence = c.FinalConfidence
	final.Number = c.FinalNumber
	return potential, final
}
