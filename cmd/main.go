package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/aishell/internal/cli"
)

// main runs the aishell command line. SIGTERM cancels everything; Ctrl+C is
// handled per operation by the dialog loop.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
