package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/sopify/sopify/dbopen"
	"github.com/sopify/sopify/observability"
	"github.com/sopify/sopify/recorder"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the browser and record a session",
	Long: `Launch Chrome and record your interactions as SOP steps.

While running:
  SIGUSR1  toggle recording on/off
  SIGUSR2  upload the captured steps as a new SOP and clear the list
  Ctrl-C   quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")

		cfg, err := recorder.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		logger := observability.NewLogger(os.Stderr, cfg.LogLevel)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db, err := dbopen.Open(cfg.StatePath, dbopen.WithMkdirAll())
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := recorder.NewStateStore(db)
		if err != nil {
			return err
		}

		mgr := recorder.NewManager(recorder.BrowserConfig{
			RemoteURL:    cfg.RemoteBrowser,
			Headless:     cfg.Headless,
			CompanionURL: cfg.CompanionURL,
			Logger:       logger,
		})
		if _, err := mgr.Start(ctx); err != nil {
			return err
		}
		defer mgr.Close()

		coord, err := recorder.NewCoordinator(ctx, recorder.CoordinatorConfig{
			Store:    store,
			Shots:    mgr,
			Tokens:   mgr,
			Uploader: recorder.NewBackendClient(cfg.BackendURL, nil),
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			coord.Run(gctx)
			return nil
		})

		agent := recorder.NewAgent(mgr, coord, logger)
		g.Go(func() error {
			err := agent.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})

		// Log coordinator events for the operator.
		g.Go(func() error {
			events, err := coord.Subscribe(gctx, 32)
			if err != nil {
				return nil
			}
			for {
				select {
				case <-gctx.Done():
					return nil
				case ev := <-events:
					switch ev.Type {
					case recorder.EventRecordingStateChanged:
						logger.Info("recording state changed", "recording", ev.Recording)
					case recorder.EventScreenshotCaptured:
						logger.Info("screenshot captured", "count", ev.Count)
					case recorder.EventAuthStateChanged:
						logger.Info("auth state changed", "authenticated", ev.Auth.Authenticated)
					}
				}
			}
		})

		// Operator controls via signals.
		g.Go(func() error {
			toggle := make(chan os.Signal, 1)
			save := make(chan os.Signal, 1)
			signal.Notify(toggle, syscall.SIGUSR1)
			signal.Notify(save, syscall.SIGUSR2)
			defer signal.Stop(toggle)
			defer signal.Stop(save)

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-toggle:
					if _, err := coord.ToggleRecording(gctx); err != nil {
						logger.Warn("toggle recording", "error", err)
					}
				case <-save:
					saveCtx, saveCancel := context.WithTimeout(gctx, time.Minute)
					if err := coord.Save(saveCtx, title, description); err != nil {
						logger.Warn("save session", "error", err)
					}
					saveCancel()
				}
			}
		})

		err = g.Wait()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		coord.Shutdown(shutdownCtx)
		return err
	},
}

func init() {
	runCmd.Flags().String("title", "Recorded session", "title for the saved SOP")
	runCmd.Flags().String("description", "Recorded with soprec", "description for the saved SOP")
}
