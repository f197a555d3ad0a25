package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the run identity, its endpoints and feature flags,
// then emits a single structured zerolog event summarising how the uploader
// was started. Secrets are never registered, only their sources.
type StartupLogger struct {
	runID      string
	version    string
	commitHash string
	buildTime  string
	setup      time.Duration

	endpoints map[string]string
	features  map[string]bool
	config    map[string]string
	counts    map[string]int
}

// NewStartupLogger creates a StartupLogger for one uploader run.
func NewStartupLogger(runID string) *StartupLogger {
	return &StartupLogger{
		runID:     runID,
		endpoints: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
		counts:    make(map[string]int),
	}
}

// Version sets the release version baked into the binary at build time.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked into the binary at build time.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

// Endpoint registers a remote address used by this run (server, broker,
// manifest location).
func (s *StartupLogger) Endpoint(label, addr string) *StartupLogger {
	s.endpoints[label] = addr
	return s
}

// Feature registers a boolean feature flag (e.g. "bookmarks", "progress").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// Count registers a size of the workload, e.g. the number of missions.
func (s *StartupLogger) Count(label string, n int) *StartupLogger {
	s.counts[label] = n
	return s
}

// SetupDuration records how long connecting and loading took.
func (s *StartupLogger) SetupDuration(d time.Duration) *StartupLogger {
	s.setup = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Uploader started")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	run := zerolog.Dict().
		Str("id", s.runID).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())

	if s.version != "" {
		run = run.Str("version", s.version)
	}
	if s.commitHash != "" {
		run = run.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		run = run.Str("buildTime", s.buildTime)
	}
	evt = evt.Dict("run", run)

	// Only non-empty maps are attached.
	if len(s.endpoints) > 0 {
		evt = evt.Dict("endpoints", dictFromMap(s.endpoints))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if len(s.counts) > 0 {
		d := zerolog.Dict()
		for k, v := range s.counts {
			d = d.Int(k, v)
		}
		evt = evt.Dict("counts", d)
	}
	if s.setup > 0 {
		evt = evt.Dur("setupDuration", s.setup)
	}
	return evt
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
