package dataprep

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

// Sample keeps round(len*rate) records (at least one) chosen uniformly
// without replacement from a PRNG seeded with seed. The result is sorted by
// SimTime. A rate of 1 returns the input untouched.
func Sample(records []domain.NormalizedRecord, rate float64, seed int64) ([]domain.NormalizedRecord, error) {
	if !(rate > 0 && rate <= 1) {
		return nil, fmt.Errorf("sample rate must be in (0, 1], got %v", rate)
	}
	if rate == 1 || len(records) == 0 {
		return records, nil
	}

	k := int(math.Round(float64(len(records)) * rate))
	if k < 1 {
		k = 1
	}
	if k >= len(records) {
		return records, nil
	}

	// partial Fisher-Yates over the positions
	rng := rand.New(rand.NewSource(seed))
	perm := make([]int, len(records))
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(perm)-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	out := make([]domain.NormalizedRecord, k)
	for i, p := range perm[:k] {
		out[i] = records[p]
	}
	SortBySimTime(out)
	return out, nil
}

// Prepared is the immutable schedule handed to the injection loop.
type Prepared struct {
	Records       []domain.NormalizedRecord
	Scale         Scale
	SourceRecords int
}

// Prepare runs Normalize then Sample and returns records sorted for injection.
func Prepare(records []domain.DatasetRecord, duration, rate float64, seed int64) (*Prepared, error) {
	norm, scale, err := Normalize(records, duration)
	if err != nil {
		return nil, err
	}
	sampled, err := Sample(norm, rate, seed)
	if err != nil {
		return nil, err
	}
	SortBySimTime(sampled)
	return &Prepared{Records: sampled, Scale: scale, SourceRecords: len(records)}, nil
}
