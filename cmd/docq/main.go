package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	queuecmd "github.com/rzbill/docq/internal/cmd/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := queuecmd.NewRoot()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
