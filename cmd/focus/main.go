package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/config"
	"github.com/verte-zerg/focustimer/internal/engine"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/store"
	"github.com/verte-zerg/focustimer/internal/syncclient"
	"github.com/verte-zerg/focustimer/internal/tui"
)

// clientIDKey remembers the last TUI's sync client id so `focus status` can ask about it.
const clientIDKey = "syncClientID"

const (
	notificationQueueSize = 32
	shutdownTimeout       = 5 * time.Second
)

var (
	timerType    string
	companionURL string
	apiURL       string
	noSync       bool
	metricsAddr  string
	logLevel     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "focus",
		Short:         "Focus timer with break suggestions and reviews",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTimerCmd,
	}

	rootCmd.Flags().StringVar(&timerType, "type", "", "default session type (deep_work, quick_task, break_time, custom)")
	rootCmd.Flags().BoolVar(&noSync, "no-sync", false, "do not mirror the timer to the companion service")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&companionURL, "companion-url", "", "companion service base URL")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "collaborator API base URL (defaults to the companion URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTrayCmd())
	rootCmd.AddCommand(newTestNotificationCmd())

	return rootCmd
}

// loadSettings resolves defaults, the config file, FOCUS_* variables and then flags, in that order.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := fileCfg.Resolve()
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}

	apiFollowsCompanion := settings.APIURL == settings.Companion.URL
	applyStringFlag(cmd, "companion-url", &settings.Companion.URL, companionURL)
	if apiFollowsCompanion {
		settings.APIURL = settings.Companion.URL
	}
	applyStringFlag(cmd, "api-url", &settings.APIURL, apiURL)
	applyStringFlag(cmd, "log-level", &settings.Log.Level, logLevel)
	if flagChanged(cmd, "type") {
		t, err := model.ParseSessionType(timerType)
		if err != nil {
			return config.Settings{}, fmt.Errorf("invalid --type value: %w", err)
		}
		settings.Timer.DefaultType = t
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func runTimerCmd(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, cleanupLog, err := logging.New(logging.Config{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.Log.File,
		Fields: map[string]string{"component": "timer"},
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer cleanupLog()

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	opts := engine.Options{
		Store:              st,
		History:            st,
		Clock:              clock.Real{},
		Logger:             logger.Named("engine"),
		Metrics:            engine.NewMetrics(),
		DefaultType:        settings.Timer.DefaultType,
		SleepThreshold:     settings.Timer.SleepThreshold,
		RecoveryWindow:     settings.Timer.RecoveryWindow,
		ReviewPollInterval: settings.Review.PollInterval,
		OnSyncError: func(verb string, err error) {
			logger.Warn("background sync failed", zap.String("verb", verb), zap.Error(err))
		},
	}

	var remote notify.Remote
	if !noSync {
		mirror := syncclient.New(newTransport(settings, settings.Companion.URL, logger.Named("companion")), logger.Named("sync"))
		defer mirror.Cleanup()
		if err := st.Set(clientIDKey, mirror.ClientID()); err != nil {
			logger.Warn("failed to remember sync client id", zap.Error(err))
		}
		collab := api.NewClient(newTransport(settings, settings.APIURL, logger.Named("api")))
		opts.Mirror = mirror
		opts.Sessions = collab
		remote = collab
	}

	queue := notify.NewQueue(notificationQueueSize)
	opts.Sink = queue
	opts.Preferences = notify.NewPreferences(st, remote, logger.Named("preferences"))

	eng := engine.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.LoadPreferences(ctx)
	if res := eng.Recover(); res.Restored() {
		logger.Info("restored running timer", zap.String("outcome", string(res.Outcome)))
	}
	if err := eng.StartReviews(ctx); err != nil {
		logger.Warn("failed to start review scheduler", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if err := eng.Close(closeCtx); err != nil {
			logErrf("failed to flush pending sync: %v\n", err)
		}
	}()

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, logger.Named("metrics"))
		defer stop()
	}

	m := tui.NewModel(eng, queue, tui.Options{TickInterval: settings.Timer.TickInterval})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newTransport(settings config.Settings, baseURL string, logger *zap.Logger) *api.Transport {
	return api.NewTransport(api.TransportConfig{
		BaseURL:    baseURL,
		MaxRetries: settings.Companion.MaxRetries,
		Backoff:    settings.Companion.RetryBackoff,
		RateLimit:  settings.Companion.RateLimit,
		Burst:      settings.Companion.Burst,
		Logger:     logger,
	})
}

// serveMetrics exposes the default Prometheus registry and returns a stop function.
func serveMetrics(addr string, logger *zap.Logger) func() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Changed
	}
	return false
}

// applyStringFlag overrides a resolved setting only when the flag was set explicitly.
func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !flagChanged(cmd, name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# focus configuration
# Uncomment a value to enable it. CLI flags and %sSECTION_KEY variables override config values.

[timer]
# default-type = "deep_work"   # deep_work, quick_task, break_time or custom
# sleep-threshold = %q         # Tick gap treated as system sleep
# recovery-window = %q         # Max age of a saved timer that is restored on start
# tick-interval = %q           # UI refresh interval

[companion]
# url = %q
# max-retries = %d
# retry-backoff = %q
# rate-limit = %.1f            # Requests per second, 0 disables limiting
# burst = %d

[api]
# url = ""                     # Collaborator API, defaults to the companion url

[review]
# poll-interval = %q

[log]
# level = "info"
# format = "json"              # json or console
# file = %q

[serve]
# addr = %q
# db = %q
`,
		config.EnvPrefix,
		config.DefaultSleepThreshold.String(),
		config.DefaultRecoveryWindow.String(),
		config.DefaultTickInterval.String(),
		config.DefaultCompanionURL,
		config.DefaultMaxRetries,
		config.DefaultRetryBackoff.String(),
		config.DefaultRateLimit,
		config.DefaultBurst,
		config.DefaultPollInterval.String(),
		config.DefaultLogPath(),
		config.DefaultServeAddr,
		config.DefaultServerDBPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
