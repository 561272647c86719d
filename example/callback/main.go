package main

import (
	"context"
	"fmt"
	"log"

	"github.com/hrvrbhanu01/connected-vehicle-security/pkg/iovsim"
)

func main() {
	flow, err := iovsim.Conf("data/iov.yaml", iovsim.InMemory())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	handlers := iovsim.SinkHandlers{
		Snapshot: func(simTime float64, rows []iovsim.TrafficSnapshot) error {
			var malicious int
			for _, r := range rows {
				if r.IsMalicious {
					malicious++
				}
			}
			fmt.Printf("t=%.1f live=%d malicious=%d\n", simTime, len(rows), malicious)
			return nil
		},
		Anomalies: func(rows []iovsim.AnomalyRecord) error {
			for _, a := range rows {
				fmt.Printf("anomaly %s can=%s type=%s at t=%.1f\n", a.ActorID, a.CANID, a.AttackType, a.SimTime)
			}
			return nil
		},
	}

	if _, err := flow.Run(context.Background(), iovsim.StreamOutCallback("stdout", handlers)); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}
