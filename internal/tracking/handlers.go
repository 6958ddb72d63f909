package tracking

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/mock"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

type setupRequest struct {
	ApplicationKey            string            `json:"application_key"`
	DriverID                  string            `json:"driver_id"`
	Mode                      string            `json:"drive_detection_mode"`
	Region                    string            `json:"region"`
	Group                     string            `json:"group"`
	Alias                     string            `json:"alias"`
	ServiceLevel              string            `json:"service_level"`
	VehicleType               string            `json:"vehicle_type"`
	Custom                    map[string]string `json:"custom"`
	MultipleAccidentCallbacks bool              `json:"multiple_accident_callbacks"`
}

func (s setupRequest) config() Config {
	return Config{
		ApplicationKey: s.ApplicationKey,
		DriverID:       s.DriverID,
		Mode:           trip.ParseMode(s.Mode),
		Region:         Region(s.Region),
		Attributes: DriverAttributes{
			Group:        s.Group,
			Alias:        s.Alias,
			ServiceLevel: s.ServiceLevel,
			VehicleType:  trip.ParseVehicleType(s.VehicleType),
			Custom:       s.Custom,
		},
		MultipleAccidentCallbacks: s.MultipleAccidentCallbacks,
	}
}

type periodRequest struct {
	Period     string `json:"period"`
	TrackingID string `json:"tracking_id"`
}

type signalRequest struct {
	At time.Time `json:"at"`
}

type resumeRequest struct {
	GapStart time.Time `json:"gap_start"`
	GapEnd   time.Time `json:"gap_end"`
}

type audioRequest struct {
	BluetoothID string    `json:"bluetooth_id"`
	At          time.Time `json:"at"`
}

type settingsRequest struct {
	Errors []string `json:"errors"`
}

type vehicleRequest struct {
	VehicleID   string `json:"vehicle_id"`
	BluetoothID string `json:"bluetooth_id"`
}

type feedbackRequest struct {
	Category string                `json:"category"`
	Event    *eventFeedbackRequest `json:"event"`
}

type eventFeedbackRequest struct {
	Type      string    `json:"type"`
	StartedAt time.Time `json:"started_at"`
	Occurred  bool      `json:"occurred"`
}

type mockAccidentRequest struct {
	PotentialConfidence string `json:"potential_confidence"`
	FinalConfidence     string `json:"final_confidence"`
	PotentialNumber     *int   `json:"potential_number"`
	FinalNumber         *int   `json:"final_number"`
	DelayMS             *int64 `json:"delay_ms"`
	InvalidateFinal     bool   `json:"invalidate_final"`
}

func (m mockAccidentRequest) config() accident.MockConfig {
	cfg := accident.DefaultMockConfig()
	if m.PotentialConfidence != "" {
		cfg.PotentialConfidence = accident.ParseConfidence(m.PotentialConfidence)
	}
	if m.FinalConfidence != "" {
		cfg.FinalConfidence = accident.ParseConfidence(m.FinalConfidence)
	}
	if m.PotentialNumber != nil {
		cfg.PotentialNumber = *m.PotentialNumber
	}
	if m.FinalNumber != nil {
		cfg.FinalNumber = *m.FinalNumber
	}
	if m.DelayMS != nil {
		cfg.Delay = time.Duration(*m.DelayMS) * time.Millisecond
	}
	if m.InvalidateFinal {
		cfg = cfg.InvalidateFinal()
	}
	return cfg
}

type mockDriveRequest struct {
	Preset          string `json:"preset"`
	RunTimeMS       int64  `json:"run_time_ms"`
	StartDelayMS    int64  `json:"start_delay_ms"`
	EndDelayMS      int64  `json:"end_delay_ms"`
	AnalysisDelayMS int64  `json:"analysis_delay_ms"`
	VehicleIDTag    string `json:"vehicle_id_tag"`
}

func RegisterRoutes(r fiber.Router, rt *Runtime, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/setup", func(c *fiber.Ctx) error {
		var req setupRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if id := auth.DriverID(c); id != "" && req.DriverID != id {
			return fiber.NewError(fiber.StatusForbidden, "driver_id does not match token")
		}
		return reply(c, rt.Setup(c.Context(), req.config(), nil))
	})

	r.Post("/teardown", func(c *fiber.Ctx) error {
		return reply(c, rt.Teardown(c.Context()))
	})

	r.Post("/wipe", func(c *fiber.Ctx) error {
		return reply(c, rt.Wipe(c.Context()))
	})

	r.Get("/state", func(c *fiber.Ctx) error {
		state, err := rt.State(c.Context())
		return replyWith(c, "state", state, err)
	})

	r.Put("/mode", func(c *fiber.Ctx) error {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.SetMode(c.Context(), trip.ParseMode(req.Mode)))
	})

	r.Post("/manual/start", func(c *fiber.Ctx) error {
		var req struct {
			TrackingID string `json:"tracking_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return reply(c, rt.StartManual(c.Context(), req.TrackingID))
	})

	r.Post("/manual/stop", func(c *fiber.Ctx) error {
		return reply(c, rt.StopManual(c.Context()))
	})

	r.Post("/sessions/start", func(c *fiber.Ctx) error {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.StartSession(c.Context(), req.SessionID))
	})

	r.Post("/sessions/stop", func(c *fiber.Ctx) error {
		return reply(c, rt.StopSession(c.Context()))
	})

	r.Post("/periods/start", func(c *fiber.Ctx) error {
		var req periodRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.StartPeriod(c.Context(), trip.ParsePeriod(req.Period), req.TrackingID))
	})

	r.Post("/periods/stop", func(c *fiber.Ctx) error {
		return reply(c, rt.StopPeriod(c.Context()))
	})

	r.Get("/drives/active", func(c *fiber.Ctx) error {
		info, err := rt.ActiveDrive(c.Context())
		return replyWith(c, "drive", info, err)
	})

	r.Get("/drives", func(c *fiber.Ctx) error {
		infos, err := rt.Trips(c.Context())
		return replyWith(c, "drives", infos, err)
	})

	r.Get("/drives/:id", func(c *fiber.Ctx) error {
		info, err := rt.Trip(c.Context(), c.Params("id"))
		return replyWith(c, "drive", info, err)
	})

	r.Post("/drives/:id/feedback", func(c *fiber.Ctx) error {
		var req feedbackRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Category == "" && req.Event == nil {
			return fiber.NewError(fiber.StatusBadRequest, "category or event required")
		}
		id := c.Params("id")
		if req.Category != "" {
			category, ok := trip.ParseDriveCategory(req.Category)
			if !ok {
				return reply(c, sdkerr.Newf(sdkerr.InvalidParams, "unknown drive category %q", req.Category))
			}
			if err := rt.AddDriveCategory(c.Context(), id, category); err != nil {
				return reply(c, err)
			}
		}
		if req.Event != nil {
			et, ok := trip.ParseEventType(req.Event.Type)
			if !ok {
				return reply(c, sdkerr.Newf(sdkerr.InvalidParams, "unknown event type %q", req.Event.Type))
			}
			o := trip.EventOccurrence{Type: et, StartedAt: req.Event.StartedAt, Occurred: req.Event.Occurred}
			if err := rt.AddEventOccurrence(c.Context(), id, o); err != nil {
				return reply(c, err)
			}
		}
		return reply(c, nil)
	})

	registerEngineRoutes(r.Group("/engine"), rt)

	r.Get("/vehicles", func(c *fiber.Ctx) error {
		items, err := rt.AssociatedVehicles(c.Context())
		return replyWith(c, "vehicles", items, err)
	})

	r.Post("/vehicles", func(c *fiber.Ctx) error {
		var req vehicleRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := rt.AssociateVehicle(c.Context(), req.VehicleID, req.BluetoothID); err != nil {
			return reply(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	})

	r.Delete("/vehicles/:id", func(c *fiber.Ctx) error {
		return reply(c, rt.DissociateVehicle(c.Context(), c.Params("id")))
	})

	r.Get("/settings", func(c *fiber.Ctx) error {
		s, err := rt.Settings(c.Context())
		return replyWith(c, "settings", s, err)
	})

	r.Post("/mock/accident", func(c *fiber.Ctx) error {
		var req mockAccidentRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		id, err := rt.RaiseMockAccident(c.Context(), req.config())
		return replyWith(c, "accident_id", id, err)
	})

	r.Post("/mock/drive", func(c *fiber.Ctx) error {
		var req mockDriveRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		preset, ok := mock.ParsePreset(req.Preset)
		if !ok {
			return reply(c, sdkerr.Newf(sdkerr.InvalidParams, "unknown preset %q", req.Preset))
		}
		b, err := mock.PresetBuilder(preset, time.Now())
		if err != nil {
			return reply(c, err)
		}
		d, err := b.
			StartDelay(time.Duration(req.StartDelayMS) * time.Millisecond).
			EndDelay(time.Duration(req.EndDelayMS) * time.Millisecond).
			AnalysisDelay(time.Duration(req.AnalysisDelayMS) * time.Millisecond).
			VehicleIDTag(req.VehicleIDTag).
			Build()
		if err != nil {
			return reply(c, err)
		}
		err = rt.SimulateDrive(c.Context(), d, time.Duration(req.RunTimeMS)*time.Millisecond)
		if err != nil {
			return reply(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
	})
}

// registerEngineRoutes exposes the detection engine's signals.
func registerEngineRoutes(r fiber.Router, rt *Runtime) {
	r.Post("/start", func(c *fiber.Ctx) error {
		var req signalRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return reply(c, rt.DetectStart(c.Context(), req.At))
	})

	r.Post("/end", func(c *fiber.Ctx) error {
		var req signalRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return reply(c, rt.DetectEnd(c.Context(), req.At))
	})

	r.Post("/resume", func(c *fiber.Ctx) error {
		var req resumeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.Resume(c.Context(), req.GapStart, req.GapEnd))
	})

	r.Post("/locations", func(c *fiber.Ctx) error {
		var req trip.Point
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.AddLocation(c.Context(), req))
	})

	r.Post("/events", func(c *fiber.Ctx) error {
		var req trip.Event
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.AddEvent(c.Context(), req))
	})

	r.Post("/audio/connect", func(c *fiber.Ctx) error {
		var req audioRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.AudioRouteConnected(c.Context(), req.BluetoothID, req.At))
	})

	r.Post("/audio/disconnect", func(c *fiber.Ctx) error {
		var req audioRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return reply(c, rt.AudioRouteDisconnected(c.Context(), req.At))
	})

	r.Post("/analysis", func(c *fiber.Ctx) error {
		var req trip.Analysis
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return reply(c, rt.AnalysisReady(c.Context(), req))
	})

	r.Post("/settings", func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		errs := make([]stream.SettingsError, 0, len(req.Errors))
		for _, e := range req.Errors {
			if e == stream.ActivityPermissionNotAuthorized.String() {
				errs = append(errs, stream.ActivityPermissionNotAuthorized)
			} else {
				errs = append(errs, stream.LocationPermissionNotAuthorized)
			}
		}
		return reply(c, rt.ReportSettings(c.Context(), errs...))
	})

	r.Post("/accidents/potential", func(c *fiber.Ctx) error {
		var req accident.Signal
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s, err := rt.PotentialAccident(c.Context(), req)
		return replyWith(c, "accident", s, err)
	})

	r.Post("/accidents/final", func(c *fiber.Ctx) error {
		var req accident.Signal
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s, err := rt.FinalAccident(c.Context(), req)
		return replyWith(c, "accident", s, err)
	})
}

func reply(c *fiber.Ctx, err error) error {
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func replyWith(c *fiber.Ctx, key string, value any, err error) error {
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, key: value})
}

func replyError(c *fiber.Ctx, err error) error {
	var se *sdkerr.Error
	if !errors.As(err, &se) {
		se = sdkerr.Newf(sdkerr.InternalFailure, "%v", err)
	}
	return c.Status(sdkerr.StatusCode(se)).JSON(fiber.Map{"success": false, "error": se})
}
