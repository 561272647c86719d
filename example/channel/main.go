package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/hrvrbhanu01/connected-vehicle-security"
)

func main() {
	flow, err := iovsim.Conf("data/iov.yaml", iovsim.InMemory())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, batches, closeBatches := iovsim.NewChannelSink("speeds", 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		speedWorker(batches)
	}()

	_, err = flow.Run(context.Background(), iovsim.StreamOutSink(sink))
	closeBatches()
	wg.Wait()
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func speedWorker(batches <-chan iovsim.SnapshotBatch) {
	for b := range batches {
		if len(b.Rows) == 0 {
			continue
		}
		var sum float64
		for _, r := range b.Rows {
			sum += r.Speed
		}
		fmt.Printf("t=%.1f mean speed %.2f m/s over %d actors\n", b.SimTime, sum/float64(len(b.Rows)), len(b.Rows))
	}
}
