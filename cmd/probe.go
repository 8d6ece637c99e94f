package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/logging"
)

// CreateProbeEncodersCmd creates the probe-encoders command.
func CreateProbeEncodersCmd() *cobra.Command {
	var output string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "probe-encoders",
		Short: "Test which H.264 encoders work on this machine",
		Long: `Runs a short test encode with every H.264 encoder ffmpeg was built with and records ` +
			`which ones work. Recording and transcoding pick the best working encoder from the results file.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, opts *Options) {
			if quiet {
				logging.SetModuleLevel("encoders", "warn")
				logging.SetModuleLevel("ffmpeg", "error")
			}
			logger := logging.GetLogger("encoders")
			if output == "" {
				output = opts.CodecProbeFile
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := encoders.NewProber(opts.CodecFFmpegPath, logger).Run(ctx)
			if err != nil {
				logger.Error("Encoder probe failed", "error", err)
				os.Exit(1)
			}
			if err := encoders.SaveResults(output, results); err != nil {
				logger.Error("Failed to save probe results", "file", output, "error", err)
				os.Exit(1)
			}

			fmt.Printf("ffmpeg %s\n", results.FFmpegVersion)
			fmt.Printf("working: %s\n", listOrNone(results.H264.Working))
			fmt.Printf("failed:  %s\n", listOrNone(results.H264.Failed))
			fmt.Printf("results saved to %s\n", output)
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Results file (defaults to codec.probe_file)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-encoder progress output")

	return cmd
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
