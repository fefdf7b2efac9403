package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the etlite version, the Go runtime it was built with and the compiled-in adapters.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			adapters := strings.Join(adapter.ListAdapters(), ", ")
			if adapters == "" {
				adapters = "none"
			}
			_, err := fmt.Fprintf(w, "etlite v%s (%s %s/%s)\nadapters: %s\n",
				version, runtime.Version(), runtime.GOOS, runtime.GOARCH, adapters)
			return err
		},
	}
}
