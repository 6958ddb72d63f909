package trip

// StarRating grades driving behaviour from one (worst) to five (best).
// StarNA marks a rating the analysis did not produce.
type StarRating int

const (
	StarNA    StarRating = -1
	StarOne   StarRating = 1
	StarTwo   StarRating = 2
	StarThree StarRating = 3
	StarFour  StarRating = 4
	StarFive  StarRating = 5
)

// StarRatingFromRaw falls back to StarNA.
func StarRatingFromRaw(raw int) StarRating {
	if raw < int(StarOne) || raw > int(StarFive) {
		return StarNA
	}
	return StarRating(raw)
}

// EventRatings holds one rating per scored event type.
type EventRatings struct {
	PhoneHandling          StarRating `json:"phone_handling"`
	HardBrake              StarRating `json:"hard_brake"`
	HardTurn               StarRating `json:"hard_turn"`
	Speeding               StarRating `json:"speeding"`
	AggressiveAcceleration StarRating `json:"aggressive_acceleration"`
}

// UnratedEvents is the ratings value of an estimated report.
func UnratedEvents() EventRatings {
	return EventRatings{
		PhoneHandling:          StarNA,
		HardBrake:              StarNA,
		HardTurn:               StarNA,
		Speeding:               StarNA,
		AggressiveAcceleration: StarNA,
	}
}

func (r EventRatings) normalized() EventRatings {
	return EventRatings{
		PhoneHandling:          StarRatingFromRaw(int(r.PhoneHandling)),
		HardBrake:              StarRatingFromRaw(int(r.HardBrake)),
		HardTurn:               StarRatingFromRaw(int(r.HardTurn)),
		Speeding:               StarRatingFromRaw(int(r.Speeding)),
		AggressiveAcceleration: StarRatingFromRaw(int(r.AggressiveAcceleration)),
	}
}

type TripWarningType int

const (
	WarningUnexpectedTripDuration TripWarningType = iota
)

var tripWarningNames = []string{"unexpected_trip_duration"}

func (w TripWarningType) String() string {
	if w < 0 || int(w) >= len(tripWarningNames) {
		return tripWarningNames[WarningUnexpectedTripDuration]
	}
	return tripWarningNames[w]
}

type TripWarning struct {
	Type TripWarningType `json:"type"`
}

func addWarning(ws []TripWarning, w TripWarning) []TripWarning {
	for _, have := range ws {
		if have.Type == w.Type {
			return ws
		}
	}
	return append(ws, w)
}
