package trip

import "testing"

func TestRawFallbacks(t *testing.T) {
	if ModeFromRaw(7) != ModeAutoOn || ModeFromRaw(-1) != ModeAutoOn || ModeFromRaw(2) != ModeInsurance {
		t.Fatalf("unexpected mode fallback")
	}
	if PeriodFromRaw(9) != NoPeriod || PeriodFromRaw(3) != Period3 {
		t.Fatalf("unexpected period fallback")
	}
	if DriveTypeFromRaw(42) != DriveTypeDrive || DriveTypeFromRaw(1) != DriveTypeNonDriving {
		t.Fatalf("unexpected drive type fallback")
	}
	if UserModeFromRaw(5) != UserModeDriver || UserModeFromRaw(1) != UserModePassenger {
		t.Fatalf("unexpected user mode fallback")
	}
}

func TestParseNames(t *testing.T) {
	if ParseMode(" Insurance ") != ModeInsurance || ParseMode("bogus") != ModeAutoOn {
		t.Fatalf("unexpected mode parse")
	}
	if ParsePeriod("period2") != Period2 || ParsePeriod("") != NoPeriod {
		t.Fatalf("unexpected period parse")
	}
	if ParseVehicleType("motorcycle") != VehicleMotorcycle || ParseVehicleType("truck") != VehicleCar {
		t.Fatalf("unexpected vehicle type parse")
	}
	if ParseSeverity("high") != SeverityHigh || ParseSeverity("?") != SeverityNone {
		t.Fatalf("unexpected severity parse")
	}
	if et, ok := ParseEventType("hard_turn"); !ok || et != EventHardTurn {
		t.Fatalf("unexpected event type parse")
	}
	if _, ok := ParseEventType("wheelie"); ok {
		t.Fatalf("unknown event type should not parse")
	}
}

func TestStrings(t *testing.T) {
	if ModeAutoOff.String() != "auto_off" || Mode(9).String() != "auto_on" {
		t.Fatalf("unexpected mode string")
	}
	if Period1.String() != "period1" || TriggerPeriod.String() != "period" {
		t.Fatalf("unexpected names")
	}
	if !TriggerPeriod.Manual() || TriggerAuto.Manual() {
		t.Fatalf("unexpected manual classification")
	}
	if QualityAnalyzed.String() != "analyzed" || QualityEstimated.String() != "estimated" {
		t.Fatalf("unexpected quality names")
	}
}
