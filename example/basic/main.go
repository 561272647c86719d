package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/hrvrbhanu01/connected-vehicle-security"
)

// Run from the repository root: go run ./example/basic
func main() {
	flow, err := iovsim.Conf("data/iov.yaml", iovsim.InMemory())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := flow.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run failed: %v", err)
	}
	if res != nil {
		fmt.Printf("%s: %s, %d actors (%d malicious)\n", res.RunDir, res.Summary.Status,
			res.Summary.TotalActorsInjected, res.Summary.MaliciousActorsInjected)
	}
}
