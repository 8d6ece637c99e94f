package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/session"
)

// CreateTranscodeCmd creates the transcode command.
func CreateTranscodeCmd() *cobra.Command {
	var videoCodec string
	var audioCodec string
	var videoBitrate int

	cmd := &cobra.Command{
		Use:   "transcode <input> <output>",
		Short: "Re-encode a container file",
		Long: `Demuxes the input, decodes each track and re-encodes it into a new container. ` +
			`Codecs default to the transcode settings of the configuration file.`,
		Args: cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *Options) {
			logger := logging.GetLogger("session")

			sessOpts, err := opts.SessionOptions(opts.Selector(logger))
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			req := session.TranscodeRequest{Input: args[0], Output: args[1], VideoBitrate: videoBitrate}
			if req.VideoMIME, err = media.CodecMIME(media.KindVideo, videoCodec); err != nil {
				logger.Error("Invalid --video-codec", "error", err)
				os.Exit(1)
			}
			if req.AudioMIME, err = media.CodecMIME(media.KindAudio, audioCodec); err != nil {
				logger.Error("Invalid --audio-codec", "error", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ts := session.NewTranscodeSession(req, sessOpts)
			if err := ts.Run(ctx); err != nil {
				logger.Error("Transcode failed", "input", req.Input, "output", req.Output, "error", err)
				os.Exit(1)
			}

			for _, t := range ts.Tracks() {
				fmt.Printf("%s: %s -> %s (%d samples written)\n", t.Kind, t.Input.MIME, t.Output.MIME, t.Written)
			}
		}),
	}

	cmd.Flags().StringVar(&videoCodec, "video-codec", "", "Target video codec (h264, raw)")
	cmd.Flags().StringVar(&audioCodec, "audio-codec", "", "Target audio codec (raw, pcmu, pcma)")
	cmd.Flags().IntVar(&videoBitrate, "video-bitrate", 0, "Target video bitrate in bits per second")

	return cmd
}
