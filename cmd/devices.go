package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"github.com/wasd845/AVGraphics/internal/devices"
	"github.com/wasd845/AVGraphics/internal/logging"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices for the device recording source",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, _ *Options) {
			logger := logging.GetLogger("devices")
			detector := devices.NewDetector()

			video, err := detector.Video()
			if err != nil {
				logger.Error("Failed to list video devices", "error", err)
				os.Exit(1)
			}
			audio, err := detector.Audio()
			if err != nil {
				logger.Error("Failed to list audio devices", "error", err)
				os.Exit(1)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"video": video, "audio": audio}); err != nil {
					logger.Error("Failed to encode devices", "error", err)
					os.Exit(1)
				}
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VIDEO\tNAME\tID")
			for _, v := range video {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Path, v.Name, v.ID)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "AUDIO\tCARD\tNAME")
			for _, a := range audio {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ALSA, a.CardName, a.Name)
			}
			w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
