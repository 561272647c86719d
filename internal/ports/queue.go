package ports

import "github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"

// QueuedSnapshot is one sampling instant waiting for a slow mirror.
type QueuedSnapshot struct {
	Seq     uint64
	SimTime float64
	Rows    []domain.TrafficSnapshot
}

type SnapshotQueue interface {
	Enqueue(s QueuedSnapshot) bool
	DequeueBatch(max int) []QueuedSnapshot
	Len() int
}
