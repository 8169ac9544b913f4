package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time. When they are left unset, buildInfo falls
// back to what the Go toolchain stamped into the binary.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v, c, d := buildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "memseries %s (commit: %s, built: %s, %s)\n", v, c, d, runtime.Version())
	},
}

func buildInfo() (version, commit, date string) {
	version, commit, date = Version, Commit, BuildDate
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && len(s.Value) >= 12 {
				commit = s.Value[:12]
			}
		case "vcs.time":
			if date == "unknown" {
				date = s.Value
			}
		}
	}
	return
}

// VersionString returns the short version reported by the health endpoint.
func VersionString() string {
	v, c, _ := buildInfo()
	return fmt.Sprintf("%s (%s)", v, c)
}
