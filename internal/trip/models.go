package trip

import "time"

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
}

type Event struct {
	Type          EventType `json:"type"`
	Severity      Severity  `json:"severity"`
	Start         Point     `json:"start"`
	Stop          Point     `json:"stop"`
	SpeedLimitMPS float64   `json:"speed_limit_mps,omitempty"`
	UserSpeedMPS  float64   `json:"user_speed_mps,omitempty"`
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RouteSpan is one contiguous interval during which a bluetooth device was the
// audio route. DisconnectedAt is zero while the device is still connected.
type RouteSpan struct {
	BluetoothID    string    `json:"bluetooth_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	DisconnectedAt time.Time `json:"disconnected_at,omitempty"`
}

type StartInfo struct {
	DriveID    string    `json:"drive_id"`
	StartedAt  time.Time `json:"started_at"`
	Period     Period    `json:"insurance_period"`
	Distance   float64   `json:"distance_m"`
	Waypoints  []Point   `json:"waypoints,omitempty"`
	TrackingID string    `json:"tracking_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
}

type ResumeInfo struct {
	StartInfo
	GapStart time.Time `json:"gap_start"`
	GapEnd   time.Time `json:"gap_end"`
}

// Info is the report delivered at trip end (estimated) and after analysis.
type Info struct {
	DriveID      string        `json:"drive_id"`
	Quality      Quality       `json:"quality"`
	DriveType    DriveType     `json:"drive_type"`
	UserMode     UserMode      `json:"user_mode"`
	Period       Period        `json:"insurance_period"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	AverageSpeed float64       `json:"average_speed_mps"`
	MaxSpeed     float64       `json:"max_speed_mps"`
	Distance     float64       `json:"distance_m"`
	Waypoints    []Point       `json:"waypoints"`
	TrackingID   string        `json:"tracking_id,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Events       []Event       `json:"events"`
	Score        int           `json:"score"`
	EventRatings EventRatings  `json:"event_ratings"`
	Warnings     []TripWarning `json:"trip_warnings"`
	Tags         []Tag         `json:"tags"`
	VehicleType  VehicleType   `json:"vehicle_type"`
	Feedback     *Feedback     `json:"feedback,omitempty"`
}

// TagValue returns the value of the first tag with key, or "".
func (i Info) TagValue(key string) string {
	for _, t := range i.Tags {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

// SetTag replaces an existing tag with the same key or appends a new one.
func (i *Info) SetTag(key, value string) {
	for n := range i.Tags {
		if i.Tags[n].Key == key {
			i.Tags[n].Value = value
			return
		}
	}
	i.Tags = append(i.Tags, Tag{Key: key, Value: value})
}

type ActiveInfo struct {
	DriveID      string    `json:"drive_id"`
	StartedAt    time.Time `json:"started_at"`
	Period       Period    `json:"insurance_period"`
	CurrentSpeed float64   `json:"current_speed_mps"`
	Distance     float64   `json:"distance_m"`
	TrackingID   string    `json:"tracking_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
}

// Analysis is the detection engine's result for one ended trip. Zero
// measurements and nil slices keep the estimate's values.
type Analysis struct {
	DriveID      string        `json:"drive_id"`
	DriveType    DriveType     `json:"drive_type"`
	UserMode     UserMode      `json:"user_mode"`
	Score        int           `json:"score"`
	Distance     float64       `json:"distance_m,omitempty"`
	AverageSpeed float64       `json:"average_speed_mps,omitempty"`
	MaxSpeed     float64       `json:"max_speed_mps,omitempty"`
	Waypoints    []Point       `json:"waypoints,omitempty"`
	Events       []Event       `json:"events,omitempty"`
	EventRatings *EventRatings `json:"event_ratings,omitempty"`
	Warnings     []TripWarning `json:"trip_warnings,omitempty"`
	Tags         []Tag         `json:"tags,omitempty"`
}

// Apply returns the analyzed report built from the estimate i.
func (i Info) Apply(a Analysis) Info {
	out := i
	out.Quality = QualityAnalyzed
	out.DriveType = a.DriveType
	out.UserMode = a.UserMode
	out.Score = a.Score
	if a.Distance > 0 {
		out.Distance = a.Distance
	}
	if a.AverageSpeed > 0 {
		out.AverageSpeed = a.AverageSpeed
	}
	if a.MaxSpeed > 0 {
		out.MaxSpeed = a.MaxSpeed
	}
	if a.Waypoints != nil {
		out.Waypoints = append([]Point(nil), a.Waypoints...)
	}
	if a.Events != nil {
		out.Events = append([]Event(nil), a.Events...)
	}
	if a.EventRatings != nil {
		out.EventRatings = a.EventRatings.normalized()
	}
	out.Warnings = append([]TripWarning{}, i.Warnings...)
	for _, w := range a.Warnings {
		out.Warnings = addWarning(out.Warnings, w)
	}
	out.Tags = append([]Tag{}, i.Tags...)
	for _, t := range a.Tags {
		out.SetTag(t.Key, t.Value)
	}
	return out
}
