package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

func main() {
	flow, err := capsteps.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := capsteps.NewChannelSink("archive", 32)
	defer closeBatches()

	go archiveWorker(batches)

	if err := flow.Run(ctx, capsteps.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func archiveWorker(batches <-chan []capsteps.StepSample) {
	for batch := range batches {
		last := batch[len(batch)-1]
		fmt.Printf("[archive] %d readings at %s, counter now %.0f\n",
			len(batch), time.Now().Format(time.RFC3339), last.Count)
	}
}
