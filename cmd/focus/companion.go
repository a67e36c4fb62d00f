package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/companion"
	"github.com/verte-zerg/focustimer/internal/config"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/stats"
	"github.com/verte-zerg/focustimer/internal/statsui"
	"github.com/verte-zerg/focustimer/internal/store"
	"github.com/verte-zerg/focustimer/internal/syncclient"
)

const (
	defaultStatsDays = 7
	queryTimeout     = 10 * time.Second
)

var (
	statsDays int
	statsTUI  bool
	serveAddr string
	serveDB   string
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "number of days to include")
	cmd.Flags().BoolVar(&statsTUI, "tui", false, "browse history interactively")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsTUI {
		program := tea.NewProgram(statsui.NewModel(st, statsDays, time.Now), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(context.Background(), st, statsDays, time.Now())
	if err != nil {
		return err
	}
	return report.Render(os.Stdout, 0, false)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion background service",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address")
	cmd.Flags().StringVar(&serveDB, "db", "", "companion database path")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyStringFlag(cmd, "addr", &settings.Serve.Addr, serveAddr)
	applyStringFlag(cmd, "db", &settings.Serve.DB, serveDB)

	logger, cleanupLog, err := newStderrLogger(settings, "companion")
	if err != nil {
		return err
	}
	defer cleanupLog()

	st, err := store.Open(settings.Serve.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close db", zap.Error(cerr))
		}
	}()

	srv, err := companion.NewServer(st, logger, companion.Config{Addr: settings.Serve.Addr})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("companion server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the companion's view of the last timer",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	id, ok, err := st.Get(clientIDKey)
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
	if err != nil {
		return fmt.Errorf("failed to read client id: %w", err)
	}
	if !ok {
		return fmt.Errorf("no timer has been mirrored yet")
	}

	return withSyncClient(settings, id, func(ctx context.Context, c *syncclient.Client) error {
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatStatus(status))
		return nil
	})
}

func newTrayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Print the tray summary across all timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			return withSyncClient(settings, "", func(ctx context.Context, c *syncclient.Client) error {
				tray, err := c.TrayStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Println(tray.Label)
				return nil
			})
		},
	}
}

func newTestNotificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notification",
		Short: "Ask the companion to show a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			return withSyncClient(settings, "", func(ctx context.Context, c *syncclient.Client) error {
				if err := c.TestNotification(ctx); err != nil {
					return err
				}
				fmt.Println("Test notification sent")
				return nil
			})
		},
	}
}

// withSyncClient runs fn against the companion with a bounded timeout.
func withSyncClient(settings config.Settings, id string, fn func(context.Context, *syncclient.Client) error) error {
	logger, cleanupLog, err := newStderrLogger(settings, "cli")
	if err != nil {
		return err
	}
	defer cleanupLog()

	c := syncclient.NewWithID(newTransport(settings, settings.Companion.URL, logger), id, logger)
	defer c.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return fn(ctx, c)
}

func newStderrLogger(settings config.Settings, component string) (*zap.Logger, func(), error) {
	logger, cleanup, err := logging.New(logging.Config{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		Fields: map[string]string{"component": component},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, cleanup, nil
}

func formatStatus(s syncclient.Status) string {
	if !s.IsRunning {
		return "Idle"
	}
	state := "running"
	if s.IsPaused {
		state = "paused"
	}
	return fmt.Sprintf("%s %s, %02d:%02d left of %d min",
		s.SessionType, state, s.RemainingTime/60, s.RemainingTime%60, s.PlannedDuration)
}
