package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/parkwise/internal/simulator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := simulator.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("garage-sim: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
