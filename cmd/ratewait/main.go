// SPDX-License-Identifier: MIT

// Command ratewait is the operator CLI for ratewaitd.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/ratewait/internal/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := command.Execute(ctx)
	stop()
	os.Exit(code)
}
