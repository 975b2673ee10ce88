// Command reminderctl runs maintenance tasks against the same database and
// remote scheduler as the API: sweeps, orphan job pruning, schedule previews
// and dev tokens.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("reminderctl failed", "err", err)
		os.Exit(1)
	}
}
