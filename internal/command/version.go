// SPDX-License-Identifier: MIT

package command

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/ratewait/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}
