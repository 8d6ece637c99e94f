package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/recorder"
)

// finalizeTimeout bounds the wait for a container to be finalized on exit.
const finalizeTimeout = 30 * time.Second

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	var source string
	var output string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio and video into a container file",
		Long: `Records the synthetic test pattern and tone, or a V4L2 camera and an ALSA device, ` +
			`into a container file. Recording stops after --duration or on Ctrl+C; the file is finalized either way.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, opts *Options) {
			logger := logging.GetLogger("recorder")

			sessOpts, err := opts.SessionOptions(opts.Selector(logger))
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			recOpts, err := opts.RecorderOptions(sessOpts)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			manager := recorder.New(recOpts)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := manager.Start(ctx, recorder.Request{
				Source:     recorder.Source(source),
				OutputPath: output,
				Duration:   duration,
			})
			if err != nil {
				logger.Error("Failed to start recording", "error", err)
				os.Exit(1)
			}

			select {
			case <-sess.Done():
			case <-ctx.Done():
				logger.Info("Interrupted, finalizing recording", "path", sess.Path())
				if _, err := manager.Stop(); err != nil {
					logger.Warn("Stop failed", "error", err)
				}
			}

			waitCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
			defer cancel()
			if err := manager.Close(waitCtx); err != nil {
				logger.Error("Recording did not finish", "error", err)
				os.Exit(1)
			}
			if err := sess.Err(); err != nil {
				logger.Error("Recording failed", "path", sess.Path(), "error", err)
				os.Exit(1)
			}

			st := sess.Stats()
			fmt.Printf("%s: %.2fs, %d video and %d audio samples, %d bytes\n",
				st.Path, st.Duration.Seconds(), st.Video.Written, st.Audio.Written, st.Video.Bytes+st.Audio.Bytes)
			if dropped := st.Video.DroppedFull + st.Audio.DroppedFull; dropped > 0 {
				fmt.Printf("dropped on full queues: %d video, %d audio\n", st.Video.DroppedFull, st.Audio.DroppedFull)
			}
		}),
	}

	cmd.Flags().StringVar(&source, "source", string(recorder.SourceTest), "Frame source: test or device")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to a timestamped file in the output directory)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "Recording length (0 records until interrupted)")

	return cmd
}
