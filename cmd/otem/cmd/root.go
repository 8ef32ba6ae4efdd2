package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the otem client version.
const Version = "0.3.0"

var (
	// Global flags
	hostFlag  string
	configDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "otem",
	Short: "OpenTraceEM - electromagnetic desktop automation client",
	Long: `OpenTraceEM (otem) drives the EM desktop host over its automation
socket: 3D model construction, RF interference classification and
report extraction. Every command also runs against the built-in
simulator, so workflows can be exercised without a desktop session.

Examples:
  otem connect --host sim                 # Probe the simulator
  otem connect --host 192.168.1.40:52525  # Probe a desktop host
  otem model build scene.yaml             # Build a 3D scene
  otem emc classify --kind interference   # Classify RF interference
  otem console                            # Interactive call console`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "sim",
		"desktop host: 'sim' for the built-in simulator, else address[:port]")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "C", ".",
		"directory holding otem.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output (debug logging)")
}
