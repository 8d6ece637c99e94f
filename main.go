package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/wasd845/AVGraphics/cmd"
	"github.com/wasd845/AVGraphics/internal/api"
	"github.com/wasd845/AVGraphics/internal/config"
	"github.com/wasd845/AVGraphics/internal/devices"
	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/jobs"
	"github.com/wasd845/AVGraphics/internal/led"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/metrics/exporters"
	"github.com/wasd845/AVGraphics/internal/recorder"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Runs before every command: load configuration and set up logging.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		logging.Initialize(opts.LoggingConfig())

		logger := logging.GetLogger("main")

		// mu guards the components built by OnStart against OnStop.
		var (
			mu          sync.Mutex
			server      *api.Server
			manager     *recorder.Manager
			runner      *jobs.Runner
			sseExporter *exporters.SSEExporter
		indicator   *led.Indicator
			watcher     *config.Watcher[logging.Config]
		)

		// The default command runs the server.
		hooks.OnStart(func() {
			mu.Lock()
			eventBus := events.New()
			logging.SetLogCallback(api.LogPublisher(eventBus))

			selector := opts.Selector(logger)
			sessOpts, err := opts.SessionOptions(selector)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			sessOpts.OnStateChange = api.StatePublisher(eventBus)

			recOpts, err := opts.RecorderOptions(sessOpts)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			manager = recorder.New(recOpts)

			runner = jobs.NewRunner(jobs.Options{
				MaxConcurrent: opts.JobsMaxConcurrent,
				History:       opts.JobsHistory,
				OnComplete:    api.JobPublisher(eventBus),
			})

			sseExporter = exporters.NewSSEExporter(eventBus, manager.CurrentStats)
			sseExporter.Start(context.Background())

			if opts.LEDEnabled {
				indicator = led.NewIndicator(led.New(opts.LEDName, logging.GetLogger("led")), eventBus, logging.GetLogger("led"))
				indicator.Start()
			}

			// Hot-reload log levels from the config file.
			if w, watchErr := config.WatchLogging(opts.Config, logging.GetLogger("config")); watchErr != nil {
				logger.Warn("Config file watching disabled", "file", opts.Config, "error", watchErr)
			} else {
				watcher = w
			}

			server = api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				Recorder:          manager,
				Jobs:              runner,
				EventBus:          eventBus,
				Session:           sessOpts,
				Selector:          selector,
				Devices:           devices.NewDetector(),
				PixelFormat:       opts.RecordingPixelFormat,
				FFmpegPath:        opts.CodecFFmpegPath,
				PrometheusHandler: exporters.HTTPHandler(),
			})
			mu.Unlock()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			mu.Lock()
			defer mu.Unlock()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if server != nil {
				if stopErr := server.Stop(ctx); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			// A recording in progress is finalized, not dropped.
			if manager != nil {
				if stopErr := manager.Close(ctx); stopErr != nil {
					logger.Error("Recording did not finish before shutdown", "error", stopErr)
				}
			}
			if runner != nil {
				if stopErr := runner.Close(ctx); stopErr != nil {
					logger.Error("Jobs did not finish before shutdown", "error", stopErr)
				}
			}
			if sseExporter != nil {
				sseExporter.Stop()
			}
			if indicator != nil {
				indicator.Stop()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
		})
	})

	cli.Root().Use = "avgraphics"
	cli.Root().Short = "Audio/video recording, decoding and transcoding service"

	cli.Root().AddCommand(cmd.CreateRecordCmd())
	cli.Root().AddCommand(cmd.CreateDecodeCmd())
	cli.Root().AddCommand(cmd.CreateTranscodeCmd())
	cli.Root().AddCommand(cmd.CreateProbeEncodersCmd())
	cli.Root().AddCommand(cmd.CreateDevicesCmd())

	cli.Run()
}
