package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/mutewatch/internal/catalog"
	"github.com/jmylchreest/mutewatch/internal/notify"
	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/suppress"
	"github.com/jmylchreest/mutewatch/internal/tui"
	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

var runOpts struct {
	headless bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the watchdog (default command)",
	Long: `Start the watchdog.

By default the watchdog runs with an interactive terminal UI that shows its
state and prompts when output is muted:

  enter/a   acknowledge the notice
  c         cancel the mute (restores volume and pauses muting)
  q         stop mutewatch

With --headless there is no terminal UI. Notices are shown as desktop
notifications only; where the notification server supports actions, the
"Cancel mute" button does the same as pressing c. Windows toasts have no
buttons, so on Windows a headless mute cannot be cancelled; run with the
terminal UI to get the prompt.

The global stop key (default Q) stops the watchdog whichever window has
focus.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.headless, "headless", false,
		"Run without the terminal UI, using desktop notifications only")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logFile := ""
	if runOpts.headless {
		setupLogger(os.Stderr, slog.LevelInfo)
	} else {
		// The terminal belongs to the UI
		f, path, err := openLogFile()
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		setupLogger(f, slog.LevelInfo)
		logFile = path
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopKey, err := cfg.StopKey()
	if err != nil {
		return err
	}

	bindings := platform.Native(cfg.Commands.Timeout.Duration())
	comp, err := build(cfg, bindings, true, logger)
	if err != nil {
		return err
	}
	defer comp.close()

	if comp.watcher != nil {
		comp.watcher.SetReloadCallback(func(c *catalog.Catalog) {
			logger.Info("media catalog updated", "entries", c.Len())
		})
	}

	window := &suppress.Window{}
	loop := comp.newLoop(cfg, window, logger)

	desktop := openDesktop()
	defer func() { _ = desktop.Close() }()

	if runOpts.headless && !canCancel(desktop) {
		logger.Warn("desktop notifications have no actions, mutes cannot be cancelled in headless mode")
	}

	dispatcher := notify.NewDispatcher(desktop, logger)
	dispatcher.SetEnabled(cfg.Notify.Desktop)
	dispatcher.SetMinInterval(cfg.Notify.RateLimit.Duration())

	logger.Info("starting mutewatch",
		"version", version,
		"headless", runOpts.headless,
		"catalog", comp.catalog.Current().Len(),
		"volume_strategies", comp.volume.Strategies(),
		"media_strategies", comp.media.Strategies(),
		"log_file", logFile,
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	// Lifecycle: any stop source ends everything
	keyCh := bindings.StopKey.Watch(gctx, stopKey)
	g.Go(func() error {
		select {
		case <-keyCh:
			logger.Info("stop key pressed", "key", string(stopKey))
		case <-loop.Done():
		case <-gctx.Done():
		}
		loop.Stop()
		cancelRun()
		return nil
	})

	if runOpts.headless {
		g.Go(func() error {
			dispatcher.Pump(gctx, loop.Notices())
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case ev := <-desktop.Actions():
					if ev.Action != watchdog.ActionCancelMute {
						continue
					}
					if err := loop.Override(gctx, ev.Notice); err != nil {
						logger.Warn("cancel mute failed", "notice", ev.Notice.ID, "error", err)
					}
				}
			}
		})
	} else {
		// Fan notices out to the desktop and the UI
		uiNotices := make(chan watchdog.Notice, 8)
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case n := <-loop.Notices():
					dispatcher.Dispatch(n)
					select {
					case uiNotices <- n:
					default:
						logger.Warn("ui notice dropped", "notice", n.ID)
					}
				}
			}
		})
		g.Go(func() error {
			defer loop.Stop()
			return tui.Run(gctx, tui.RunOptions{
				Controller: loop,
				Info: tui.Info{
					Thresholds:  thresholds(cfg),
					Volume:      comp.volume.Strategies(),
					Media:       comp.media.Strategies(),
					CatalogSize: comp.catalog.Current().Len(),
					StopKey:     stopKey,
				},
				Notices: uiNotices,
				Actions: desktop.Actions(),
			})
		})
	}

	err = g.Wait()
	logger.Info("mutewatch stopped", "mutes", loop.Status().MuteCount)
	return err
}

// openDesktop returns the desktop notification backend, or one that drops
// everything when notifications are off or unavailable.
func openDesktop() notify.Desktop {
	if !cfg.Notify.Desktop {
		return notify.Discard()
	}
	d, err := notify.NewDesktop(logger)
	if err != nil {
		logger.Warn("desktop notifications unavailable", "error", err)
		return notify.Discard()
	}
	return d
}

// canCancel reports whether the desktop backend can deliver a cancel-mute
// action.
func canCancel(d notify.Desktop) bool {
	return d.Actions() != nil
}
