package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/mission-uploader/internal/config"
	"github.com/fpang/mission-uploader/internal/panics"
	"github.com/fpang/mission-uploader/internal/progress"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitSignal  = 2
	exitPanic   = 99
)

// Build identity, set with -ldflags "-X main.version=...".
var (
	version    = "dev"
	commitHash = ""
	buildTime  = ""
)

// CLI flags
var (
	inputFlag          string
	serverFlag         string
	userFlag           string
	passwordFlag       string
	passwordSSMFlag    string
	configFlag         string
	logLevelFlag       string
	settleDelayFlag    time.Duration
	connectTimeoutFlag time.Duration
	skipBookmarksFlag  bool
	noProgressFlag     bool
	emitMetricsFlag    bool
	printUsageFlag     bool
)

// rootCmd is the main Cobra command for the mission-uploader CLI.
var rootCmd = &cobra.Command{
	Use:   "mission-uploader",
	Short: "Upload missions to a mission server and follow their processing",
	Long: `Mission Uploader reads a manifest of missions (JSON array or CSV with
Mission.* columns), creates every mission on the server, uploads the sensor
files and then follows the server-side processing until the queue is empty.
Bookmarks found in the manifest are imported once processing is complete.

Files that do not exist locally are sent by path so the server can locate
them in its own storage.

Examples:
  mission-uploader -i missions.json -s http://localhost:3000 -u admin -p secret
  mission-uploader -i missions.csv.gz -s https://st.example.com -u operator
  mission-uploader -i s3://surveys/2024/missions.json -s https://st.example.com \
      -u operator --password-ssm-param /uploader/password`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Input manifest path or s3://bucket/key (JSON or CSV, optionally .gz/.zst)")
	rootCmd.Flags().StringVarP(&serverFlag, "server", "s", "", "Server url")
	rootCmd.Flags().StringVarP(&userFlag, "user", "u", "", "User name")
	rootCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "Password")
	rootCmd.Flags().StringVar(&passwordSSMFlag, "password-ssm-param", "", "SSM SecureString parameter holding the password")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "YAML config file (default ~/"+config.DefaultFileName+")")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.Flags().DurationVar(&settleDelayFlag, "settle-delay", config.DefaultSettleDelay, "Pause after every mission upload")
	rootCmd.Flags().DurationVar(&connectTimeoutFlag, "connect-timeout", config.DefaultConnectTimeout, "Message bus connect timeout")
	rootCmd.Flags().BoolVar(&skipBookmarksFlag, "skip-bookmarks", false, "Do not import bookmarks after processing")
	rootCmd.Flags().BoolVar(&noProgressFlag, "no-progress", false, "Print status lines instead of progress bars")
	rootCmd.Flags().BoolVar(&emitMetricsFlag, "emit-metrics", false, "Write run metrics as a CloudWatch EMF line to stdout")
	rootCmd.Flags().BoolVar(&printUsageFlag, "print-usage", false, "Print usage before running")

	rootCmd.SetVersionTemplate("mission-uploader {{.Version}}\n")
}

func main() {
	os.Exit(execute())
}

// execute runs the command and maps its outcome onto an exit code.
func execute() (code int) {
	defer func() {
		if r := recover(); r != nil {
			progress.RestoreCursor(os.Stderr)
			fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
			code = exitPanic
		}
	}()
	defer progress.RestoreCursor(os.Stderr)

	handleSignals()

	if err := rootCmd.Execute(); err != nil {
		return exitCode(os.Stderr, err)
	}
	return exitOK
}

// exitCode reports err and maps it onto an exit code. A panic recovered in a
// worker goroutine exits like one on the main goroutine.
func exitCode(w io.Writer, err error) int {
	var pe *panics.Error
	if errors.As(err, &pe) {
		fmt.Fprintf(w, "panic: %v\n\n%s", pe.Value, pe.Stack)
		return exitPanic
	}
	log.Error().Err(err).Msg("Mission upload failed")
	return exitFailure
}

// handleSignals exits immediately on interrupt, terminate and quit.
// In-flight uploads are abandoned.
func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-ch
		progress.RestoreCursor(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nReceived %s, exiting\n", sig)
		os.Exit(exitSignal)
	}()
}
