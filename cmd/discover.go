package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"camfleet/internal/devices"
)

// CreateDiscoverCmd creates the discover command, which runs one device
// enumeration pass and prints the usable devices and their capture formats.
func CreateDiscoverCmd() *cobra.Command {
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Enumerate camera devices and their capture formats",
		Long:  `Runs the device enumeration tool once and prints every device that offers at least one usable capture format.`,
		Run: func(cmd *cobra.Command, _ []string) {
			asJSON, _ := cmd.Flags().GetBool("json")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			discoverer := devices.NewDiscoverer(nil, devices.WithTimeout(timeout))
			found := discoverer.Discover(context.Background())

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(found); err != nil {
					fmt.Fprintln(os.Stderr, "encode:", err)
					os.Exit(1)
				}
				return
			}

			if len(found) == 0 {
				fmt.Println("No usable camera devices found")
				return
			}
			for _, dev := range found {
				fmt.Printf("%s (%s, %s)\n", dev.Name, dev.Class, dev.Path)
				for _, format := range dev.Formats {
					fmt.Printf("  %s %dx%d @ %.2f fps\n",
						format.PixelFormat, format.Width, format.Height, format.FPS)
				}
			}
		},
	}

	discoverCmd.Flags().Bool("json", false, "Print devices as JSON")
	discoverCmd.Flags().Duration("timeout", 10*time.Second, "Enumeration timeout")
	return discoverCmd
}
