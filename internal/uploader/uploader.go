// Package uploader creates the manifest's missions on the server and
// uploads their sensor files.
//
// Missions are uploaded one after the other. Inside a mission every sensor
// is uploaded concurrently and the mission only counts as uploaded once all
// of them have finished. Files that are missing locally are handed to the
// server by path so it can resolve them from its own storage.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/panics"
	"github.com/fpang/mission-uploader/internal/server"
)

// DefaultSettleDelay is the pause after every mission.
const DefaultSettleDelay = time.Second

// API is the part of the server client the uploader needs.
// *server.Client implements it.
type API interface {
	CreateMission(ctx context.Context, m *mission.Mission) (*mission.Mission, error)
	UploadSensor(ctx context.Context, missionName, sensorName string, parts []server.FilePart) error
}

// Reporter receives per-mission status. Calls are made from the goroutine
// running UploadAll, except Notice which may come from UploadOne.
type Reporter interface {
	Begin(index, total int, m *mission.Mission)
	Notice(msg string)
	End(index, total int, m *mission.Mission, err error)
}

// Summary counts the outcome of UploadAll.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Uploader uploads missions through one server session.
type Uploader struct {
	api         API
	reporter    Reporter
	settleDelay time.Duration
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithReporter sets the status reporter.
func WithReporter(r Reporter) Option {
	return func(u *Uploader) { u.reporter = r }
}

// WithSettleDelay overrides DefaultSettleDelay. Zero disables the pause.
func WithSettleDelay(d time.Duration) Option {
	return func(u *Uploader) {
		if d < 0 {
			d = 0
		}
		u.settleDelay = d
	}
}

// New creates an Uploader.
func New(api API, opts ...Option) *Uploader {
	u := &Uploader{api: api, reporter: nopReporter{}, settleDelay: DefaultSettleDelay}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadAll uploads missions in order. A failed mission is logged and
// counted; the batch carries on with the next one. Missions are updated in
// place with their sanitized names and server-assigned ids. The returned
// error is only set when ctx is done or an upload panicked.
func (u *Uploader) UploadAll(ctx context.Context, missions []mission.Mission) (Summary, error) {
	sum := Summary{Total: len(missions)}

	for i := range missions {
		m := &missions[i]
		u.reporter.Begin(i, len(missions), m)

		err := u.UploadOne(ctx, m, u.reporter.Notice)
		if err != nil {
			sum.Failed++
			log.Error().Err(err).
				Str("mission", m.Name).
				Int("index", i+1).
				Int("total", len(missions)).
				Msg("Mission upload failed")
		} else {
			sum.Succeeded++
			log.Info().Str("mission", m.Name).Str("id", m.ID).Msg("Mission uploaded")
		}
		u.reporter.End(i, len(missions), m, err)
		var pe *panics.Error
		if errors.As(err, &pe) {
			return sum, err
		}

		if err := u.settle(ctx); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (u *Uploader) settle(ctx context.Context) error {
	if u.settleDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(u.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UploadOne creates m on the server and uploads every sensor. notify is
// called once for every file that is not found locally; it may be nil.
func (u *Uploader) UploadOne(ctx context.Context, m *mission.Mission, notify func(string)) error {
	if notify == nil {
		notify = func(string) {}
	}
	m.Sanitize()

	created, err := u.api.CreateMission(ctx, m)
	if err != nil {
		return &MissionCreateError{Mission: m.Name, Body: server.ResponseBody(err), Err: err}
	}
	if created.ID != "" {
		m.ID = created.ID
	}
	if created.Name != "" {
		m.Name = mission.SanitizeName(created.Name)
	}

	// Parts are resolved up front so notify never runs concurrently.
	uploads := make([][]server.FilePart, len(m.Sensors))
	listErrs := make([]error, len(m.Sensors))
	for i, s := range m.Sensors {
		paths, err := s.FileList()
		if err != nil {
			listErrs[i] = err
			continue
		}
		uploads[i] = resolveParts(paths, notify)
	}

	var g errgroup.Group
	errs := make([]error, len(m.Sensors))
	for i := range m.Sensors {
		sensor, parts, listErr := m.Sensors[i].Name, uploads[i], listErrs[i]
		g.Go(func() (err error) {
			defer func() { errs[i] = err }()
			defer panics.Capture(&err)
			if listErr != nil {
				return &SensorUploadError{Mission: m.Name, Sensor: sensor, Err: listErr}
			}
			if err := u.api.UploadSensor(ctx, m.Name, sensor, parts); err != nil {
				return &SensorUploadError{Mission: m.Name, Sensor: sensor, Body: server.ResponseBody(err), Err: err}
			}
			return nil
		})
	}
	err = g.Wait()

	// A panic wins over the first ordinary failure.
	for _, e := range errs {
		var pe *panics.Error
		if errors.As(e, &pe) {
			return e
		}
	}
	return err
}

// resolveParts marks every path that names a local regular file for
// streaming. Everything else is left to the server.
func resolveParts(paths []string, notify func(string)) []server.FilePart {
	parts := make([]server.FilePart, 0, len(paths))
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			parts = append(parts, server.FilePart{Path: p, Local: true})
			continue
		}
		notify(fmt.Sprintf("file %s was not found locally. Will try to locate it on the server", p))
		parts = append(parts, server.FilePart{Path: p})
	}
	return parts
}

type nopReporter struct{}

func (nopReporter) Begin(int, int, *mission.Mission) {}
func (nopReporter) Notice(string) {}
func (nopReporter) End(int, int, *mission.Mission, error) {}
