// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/ratewait/internal/client"
)

var acquireLongHelp = fmt.Sprintf(`
Acquire cells for KEY from a ratewaitd server.

Without --wait the server answers at once. With --wait it holds the request
until the cells conform or --timeout passes.

Exit Codes:
  %d - Success, cells acquired
  %d - Error
  %d - Rate limited
`,
	exitCodeSuccess,
	exitCodeError,
	exitCodeRateLimited,
)

type acquireCmd struct {
	cobra.Command

	server  string
	class   string
	cells   uint32
	wait    bool
	timeout time.Duration
}

func newAcquireCmd() *acquireCmd {
	cmd := acquireCmd{
		Command: cobra.Command{
			Use:               "acquire KEY",
			Short:             "acquire cells for a key",
			Long:              strings.TrimSpace(acquireLongHelp),
			Args:              cobra.ExactArgs(1),
			ValidArgsFunction: cobra.NoFileCompletions,
		},
	}
	cmd.RunE = cmd.run

	cmd.Flags().StringVar(&cmd.server, "server", "http://localhost:8080", "ratewaitd base URL")
	cmd.Flags().StringVar(&cmd.class, "class", "", "limit class of the request")
	cmd.Flags().Uint32VarP(&cmd.cells, "cells", "n", 1, "number of cells to acquire")
	cmd.Flags().BoolVar(&cmd.wait, "wait", false, "wait until the cells conform")
	cmd.Flags().DurationVar(&cmd.timeout, "timeout", 10*time.Second, "maximum wait with --wait")
	return &cmd
}

func (c *acquireCmd) run(cmd *cobra.Command, args []string) error {
	cli := client.New(client.Config{BaseURL: c.server, UserAgent: "ratewait-cli"})

	res, err := cli.Acquire(cmd.Context(), client.AcquireRequest{
		Key:     args[0],
		Class:   c.class,
		Cells:   c.cells,
		Wait:    c.wait,
		Timeout: c.timeout,
	})
	if err != nil {
		var rl *client.RateLimitedError
		if errors.As(err, &rl) {
			return &exitError{code: exitCodeRateLimited, err: err}
		}
		return err
	}

	cmd.Printf("acquired %d cell(s) for %s", c.cells, res.Key)
	if w := res.Waited(); w > 0 {
		cmd.Printf(" after %s", w)
	}
	cmd.Println()
	return nil
}
