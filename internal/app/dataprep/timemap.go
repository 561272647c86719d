// Package dataprep turns loaded dataset records into the sorted, clock-aligned
// sequence the injection loop walks.
package dataprep

import (
	"fmt"
	"math"
	"sort"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

// Scale reports what Normalize did to the raw timestamp span.
type Scale struct {
	RawSpan float64
	Applied bool
	Factor  float64
}

// Normalize shifts timestamps so the earliest record sits at sim time 0 and,
// when the span is longer than duration, compresses it linearly to fit.
// Spans shorter than duration are left as they are. Output order equals
// input order.
func Normalize(records []domain.DatasetRecord, duration float64) ([]domain.NormalizedRecord, Scale, error) {
	if len(records) == 0 {
		return nil, Scale{}, domain.ErrEmptyDataset
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, Scale{}, fmt.Errorf("duration must be positive and finite, got %v", duration)
	}

	minTS := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp < minTS {
			minTS = r.Timestamp
		}
	}

	out := make([]domain.NormalizedRecord, len(records))
	var span float64
	for i, r := range records {
		sim := r.Timestamp - minTS
		if sim > span {
			span = sim
		}
		out[i] = domain.NormalizedRecord{DatasetRecord: r, SimTime: sim, Index: i}
	}

	scale := Scale{RawSpan: span, Factor: 1}
	if span <= duration {
		return out, scale, nil
	}

	scale.Applied = true
	scale.Factor = duration / span
	for i := range out {
		if out[i].SimTime == span {
			out[i].SimTime = duration
			continue
		}
		out[i].SimTime = math.Min(out[i].SimTime*scale.Factor, duration)
	}
	return out, scale, nil
}

// SortBySimTime orders records by SimTime, ties by original input order.
func SortBySimTime(records []domain.NormalizedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SimTime != records[j].SimTime {
			return records[i].SimTime < records[j].SimTime
		}
		return records[i].Index < records[j].Index
	})
}
