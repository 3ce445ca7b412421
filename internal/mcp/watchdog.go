package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// DefaultWatchInterval is how often WatchParent polls the parent pid.
const DefaultWatchInterval = 2 * time.Second

// WatchParent calls cancel when the process that launched the stdio server
// exits, so an orphaned server does not linger. It polls the parent pid and
// never touches stdin, which belongs to the stdio transport.
//
// The goroutine exits when ctx is canceled or the parent is gone.
func WatchParent(ctx context.Context, interval time.Duration, logger *slog.Logger, cancel context.CancelFunc) {
	watchParent(ctx, interval, logger, cancel, os.Getppid)
}

func watchParent(ctx context.Context, interval time.Duration, logger *slog.Logger, cancel context.CancelFunc, getppid func() int) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ppid := getppid()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if getppid() != ppid {
					logger.Warn("parent process exited, shutting down", "parent_pid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
