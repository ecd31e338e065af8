package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gridview/pkg/adapter"
)

// VersionInfo is stamped into the binary at build time.
type VersionInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the gridview version, build details and the database adapters compiled in.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "gridview v%s\n", info.Version)
			if info.GitCommit != "" && info.GitCommit != "unknown" {
				_, _ = fmt.Fprintf(out, "commit %s, built %s\n", info.GitCommit, info.BuildDate)
			}
			adapters := adapter.ListAdapters()
			if len(adapters) == 0 {
				adapters = []string{"none"}
			}
			_, _ = fmt.Fprintf(out, "adapters: %s\n", strings.Join(adapters, ", "))
		},
	}
}
