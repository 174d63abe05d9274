package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/audiocore/drivers/malgo"
	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/logger"
)

// Command creates a command that lists audio devices
func Command(settings *conf.Settings) *cobra.Command {
	var input bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Long:  "List playback devices, or capture devices with --input. Pass an ID to --outputdevice or --inputdevice to select it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := audiocore.DirectionOutput
			if input {
				direction = audiocore.DirectionInput
			}
			return listDevices(cmd, settings, direction)
		},
	}

	cmd.Flags().BoolVar(&input, "input", false, "List capture devices instead of playback devices")
	cmd.Flags().DurationVar(&settings.Devices.CacheTTL, "cachettl", viper.GetDuration("devices.cachettl"), "How long device listings are cached")
	if err := viper.BindPFlag("devices.cachettl", cmd.Flags().Lookup("cachettl")); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}

	return cmd
}

func listDevices(cmd *cobra.Command, settings *conf.Settings, direction audiocore.Direction) error {
	log := logger.Global().Module("devices")
	catalog := audiocore.NewDeviceCatalog(malgo.Enumerator{Backend: settings.Engine.Backend}, settings.Devices.CacheTTL, log)

	devices, err := catalog.Devices(direction)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s devices found\n", direction)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEFAULT\tNAME\tID")
	for _, d := range devices {
		mark := ""
		if d.IsDefault {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark, d.Name, d.ID)
	}
	return w.Flush()
}
