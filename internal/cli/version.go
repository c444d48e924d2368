package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			s := newStyles()
			line := s.Title.Render("soft-downloader") + " " + info.Version
			if info.Commit != "" {
				line += s.Muted.Render(" (" + info.Commit + ")")
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}
}
