// Command iranstats merges the Iran statistics tables into the website's
// statistics document, runs the time-series analyses behind the topic pages
// and checks the document against its sources.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	pushMetrics()
	stop()

	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
