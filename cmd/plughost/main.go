package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xenakios/AudioPluginHost-II-sub001/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCommand().ExecuteContext(ctx)
	stop()
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}
