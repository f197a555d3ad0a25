package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fpang/mission-uploader/internal/auth"
	"github.com/fpang/mission-uploader/internal/bookmarks"
	"github.com/fpang/mission-uploader/internal/bus"
	"github.com/fpang/mission-uploader/internal/cli"
	"github.com/fpang/mission-uploader/internal/config"
	"github.com/fpang/mission-uploader/internal/logging"
	"github.com/fpang/mission-uploader/internal/manifest"
	"github.com/fpang/mission-uploader/internal/metrics"
	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/monitor"
	"github.com/fpang/mission-uploader/internal/progress"
	"github.com/fpang/mission-uploader/internal/runid"
	"github.com/fpang/mission-uploader/internal/server"
	"github.com/fpang/mission-uploader/internal/uploader"
)

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) error {
	logging.Init(logLevelFlag)

	if printUsageFlag {
		printUsage(cmd)
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)
	if cfg.LogLevel != logLevelFlag {
		logging.Init(cfg.LogLevel)
	}

	if cfg.Input == "" {
		printUsage(cmd)
		return cli.ErrNoInput
	}
	input, err := cli.ResolveInputFile(cfg.Input)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := runid.Generate()
	log.Logger = log.With().Str("runId", runID).Logger()

	return upload(cmd.Context(), cfg, input, runID, os.Stdout, os.Stderr)
}

func printUsage(cmd *cobra.Command) {
	if err := cmd.Usage(); err != nil {
		log.Debug().Err(err).Msg("Failed to print usage")
	}
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	strs := map[string]*string{
		"input":              &cfg.Input,
		"server":             &cfg.Server,
		"user":               &cfg.User,
		"password":           &cfg.Password,
		"password-ssm-param": &cfg.PasswordSSMParam,
		"log-level":          &cfg.LogLevel,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("settle-delay") {
		cfg.SettleDelay, _ = flags.GetDuration("settle-delay")
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
	}
	if flags.Changed("skip-bookmarks") {
		cfg.SkipBookmarks, _ = flags.GetBool("skip-bookmarks")
	}
	if flags.Changed("no-progress") {
		cfg.NoProgress, _ = flags.GetBool("no-progress")
	}
	if flags.Changed("emit-metrics") {
		cfg.EmitMetrics, _ = flags.GetBool("emit-metrics")
	}
}

// upload runs the whole flow: load, connect, upload, process, bookmarks.
func upload(ctx context.Context, cfg config.Config, input, runID string, stdout, stderr io.Writer) error {
	start := time.Now()
	styles := progress.NewStyles(stdout)

	missions, err := manifest.Load(ctx, input)
	if err != nil {
		return err
	}

	resolver := &auth.Resolver{Prompt: cli.PromptForPassword}
	password, err := resolver.ResolvePassword(ctx, cfg.User, cfg.Password, cfg.PasswordSSMParam)
	if err != nil {
		return err
	}
	creds := auth.Credentials{User: cfg.User, Password: password}

	session, err := server.Connect(ctx, cfg.Server, creds.Token(), server.ConnectOptions{
		Banner:    stdout,
		Highlight: styles.HighlightFunc(),
	})
	if err != nil {
		return err
	}

	sub, err := bus.Connect(ctx, bus.Options{
		Broker:         session.Bus.Broker,
		Topic:          session.Topic(),
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return &server.ConnectionError{Op: "bus", URL: session.Bus.Broker, Err: err}
	}
	defer sub.Close()

	live := !cfg.NoProgress && progress.IsTerminal(stderr)
	startup := logging.NewStartupLogger(runID).
		Version(version).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Endpoint("manifest", input).
		Endpoint("server", cfg.Server).
		Endpoint("broker", session.Bus.Broker).
		Feature("bookmarks", !cfg.SkipBookmarks).
		Feature("progress", live).
		Feature("metrics", cfg.EmitMetrics).
		Config("settleDelay", cfg.SettleDelay.String()).
		Config("connectTimeout", cfg.ConnectTimeout.String()).
		Count("missions", len(missions)).
		SetupDuration(time.Since(start))
	if cfg.PasswordSSMParam != "" {
		startup.Config("passwordSsmParam", cfg.PasswordSSMParam)
	}
	startup.Log()

	uploads := progress.NewUploadReporter(stderr, live)
	uploads.Open(len(missions))
	upSum, err := uploader.New(session.Client,
		uploader.WithReporter(uploads),
		uploader.WithSettleDelay(cfg.SettleDelay),
	).UploadAll(ctx, missions)
	uploads.Close()
	if err != nil {
		return err
	}

	procRep := progress.NewProcessingReporter(stderr, live, len(missions))
	final, err := monitor.New(session.Client, sub, procRep).ProcessAll(ctx, missions)
	if err != nil {
		return err
	}

	var bmSum bookmarks.Summary
	if !cfg.SkipBookmarks && hasBookmarks(missions) {
		bmSum, err = bookmarks.ImportAll(ctx, session.Client, missions)
		if err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	fmt.Fprintf(stdout, "Processing complete (in %s)\n", styles.Highlight.Render(cli.FormatDurationShort(elapsed)))

	log.Info().
		Int("missions", upSum.Total).
		Int("uploaded", upSum.Succeeded).
		Int("uploadFailed", upSum.Failed).
		Int("tasks", final.Tasks).
		Int("processedSegments", final.ProcessedSegments).
		Int("ingestedSegments", final.IngestedSegments).
		Int("bookmarksImported", bmSum.Imported).
		Int("bookmarksFailed", len(bmSum.Failed)).
		Dur("duration", elapsed).
		Msg("Run summary")

	if cfg.EmitMetrics {
		err := metrics.New(metrics.Namespace, stdout).
			Dimension("Server", session.Server.ServerName).
			Count("MissionsUploaded", upSum.Succeeded).
			Count("MissionUploadFailures", upSum.Failed).
			Count("ProcessingTasks", final.Tasks).
			Count("ProcessedSegments", final.ProcessedSegments).
			Count("IngestedSegments", final.IngestedSegments).
			Count("BookmarksImported", bmSum.Imported).
			Count("BookmarkImportFailures", len(bmSum.Failed)).
			Duration("RunDuration", elapsed).
			Property("runId", runID).
			Property("version", version).
			Flush()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to emit run metrics")
		}
	}
	return nil
}

func hasBookmarks(missions []mission.Mission) bool {
	for _, m := range missions {
		if len(m.Bookmarks) > 0 {
			return true
		}
	}
	return false
}
