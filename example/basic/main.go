package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

func main() {
	flow, err := capsteps.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("step bridge exited: %v", err)
	}
}
