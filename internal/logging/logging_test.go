package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"trace":   zerolog.TraceLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitFallsBackToEnv(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	defer func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	}()
	t.Setenv(LevelEnv, "error")

	var buf bytes.Buffer
	InitWriter("", &buf)
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("expected error level from env, got %v", zerolog.GlobalLevel())
	}

	InitWriter("debug", &buf)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected explicit level to win, got %v", zerolog.GlobalLevel())
	}
}

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	sl := NewStartupLogger("upl-1234").
		Version("1.2.0").
		Endpoint("server", "https://st.example.com").
		Feature("bookmarks", true).
		Config("settleDelay", "1s").
		Count("missions", 3)
	sl.event(logger.Info()).Msg("Uploader started")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}

	run, _ := got["run"].(map[string]any)
	if run["id"] != "upl-1234" || run["version"] != "1.2.0" {
		t.Errorf("unexpected run dict %v", run)
	}
	if _, ok := run["commitHash"]; ok {
		t.Error("empty commit hash should be omitted")
	}
	endpoints, _ := got["endpoints"].(map[string]any)
	if endpoints["server"] != "https://st.example.com" {
		t.Errorf("unexpected endpoints %v", endpoints)
	}
	counts, _ := got["counts"].(map[string]any)
	if counts["missions"] != float64(3) {
		t.Errorf("unexpected counts %v", counts)
	}
	if _, ok := got["setupDuration"]; ok {
		t.Error("zero setup duration should be omitted")
	}
}
