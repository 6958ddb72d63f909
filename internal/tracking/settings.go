package tracking

import (
	"context"
	"slices"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

// ReportSettings replaces the set of settings errors the engine currently
// sees. A settings-changed callback fires only when the effective set
// changes; the activity permission only matters while mode is auto-on.
func (r *Runtime) ReportSettings(ctx context.Context, errs ...stream.SettingsError) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		r.reported = append([]stream.SettingsError(nil), errs...)
		r.publishSettings()
		return nil
	})
}

// Settings returns the effective settings errors.
func (r *Runtime) Settings(ctx context.Context) (stream.Settings, error) {
	return call(ctx, r, func() (stream.Settings, error) {
		if err := r.ready(); err != nil {
			return stream.Settings{}, err
		}
		return stream.Settings{Errors: append([]stream.SettingsError{}, r.emitted...)}, nil
	})
}

func (r *Runtime) effectiveSettings() []stream.SettingsError {
	var out []stream.SettingsError
	for _, e := range r.reported {
		if e == stream.ActivityPermissionNotAuthorized && r.mode != trip.ModeAutoOn {
			continue
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}

func (r *Runtime) publishSettings() {
	next := r.effectiveSettings()
	if slices.Equal(next, r.emitted) {
		return
	}
	r.emitted = next
	r.emit(stream.SettingsChanged(stream.Settings{Errors: next}))
	r.log.Debug().Int("errors", len(next)).Msg("settings changed")
}
