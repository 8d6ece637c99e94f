package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/session"
)

// CreateDecodeCmd creates the decode command.
func CreateDecodeCmd() *cobra.Command {
	var videoOut string
	var audioOut string
	var skipVideo bool
	var skipAudio bool

	cmd := &cobra.Command{
		Use:   "decode <input>",
		Short: "Dump the tracks of a container file as raw streams",
		Long: `Decodes every track of a container file in parallel. Video is written as raw frames ` +
			`and audio as S16LE PCM. Outputs only appear if every track decoded to the end.`,
		Args: cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *Options) {
			logger := logging.GetLogger("session")
			input := args[0]

			base := strings.TrimSuffix(input, filepath.Ext(input))
			switch {
			case skipVideo:
				videoOut = ""
			case videoOut == "":
				videoOut = base + ".yuv"
			}
			switch {
			case skipAudio:
				audioOut = ""
			case audioOut == "":
				audioOut = base + ".pcm"
			}

			sessOpts, err := opts.SessionOptions(opts.Selector(logger))
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ds := session.NewDecodeSession(session.DecodeRequest{
				Input:       input,
				VideoOutput: videoOut,
				AudioOutput: audioOut,
			}, sessOpts)
			if err := ds.Run(ctx); err != nil {
				logger.Error("Decode failed", "input", input, "error", err)
				os.Exit(1)
			}

			for _, t := range ds.Tracks() {
				fmt.Printf("%s: %s -> %s (%d samples, %d bytes)\n", t.Kind, t.Input.MIME, t.Path, t.Samples, t.Bytes)
			}
		}),
	}

	cmd.Flags().StringVar(&videoOut, "video-output", "", "Raw video destination (defaults to <input>.yuv)")
	cmd.Flags().StringVar(&audioOut, "audio-output", "", "Raw audio destination (defaults to <input>.pcm)")
	cmd.Flags().BoolVar(&skipVideo, "no-video", false, "Do not decode the video track")
	cmd.Flags().BoolVar(&skipAudio, "no-audio", false, "Do not decode the audio track")

	return cmd
}
