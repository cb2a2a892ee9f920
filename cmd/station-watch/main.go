package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/observability"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd(os.Stdin, os.Stdout, logger)
	err = root.ExecuteContext(ctx)
	stop()

	if flushErr := observability.FlushTelemetry(context.Background(), logger); flushErr != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", flushErr)
	}
	if err != nil {
		logger.Error("station-watch exited with error", zap.Error(err))
		os.Exit(1)
	}
}
