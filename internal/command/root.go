// SPDX-License-Identifier: MIT

// Package command implements the ratewait operator CLI.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/ratewait/internal/version"
)

// newRootCmd builds the command tree writing to out and errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ratewait",
		Short:         "ratewait talks to a ratewaitd server and manages its configuration.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		&newAcquireCmd().Command,
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitCodeSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		_, _ = fmt.Fprintln(errOut, err)
		return ee.code
	}
	_, _ = fmt.Fprintf(errOut, "ERROR: %s\n", err)
	return exitCodeError
}
