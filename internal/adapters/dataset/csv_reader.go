package dataset

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

const (
	colTimestamp      = "timestamp"
	colCANID          = "can_id"
	colPayload        = "payload"
	colAttackCategory = "attack_category"
	colAttackType     = "attack_type"
	colIsMalicious    = "is_malicious"
)

var requiredColumns = []string{colTimestamp, colCANID, colPayload, colAttackType, colIsMalicious}

// RowError describes an input row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// LoadResult carries the usable records plus what was skipped on the way.
type LoadResult struct {
	Records []domain.DatasetRecord
	Rows    int
	Skipped []RowError
}

// Load reads a dataset file. Files ending in .gz are decompressed.
func Load(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	res, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return res, nil
}

// Read parses CSV with a header row. Columns are matched by name, so extra
// columns and any column order are accepted. attack_category is optional.
func Read(r io.Reader) (*LoadResult, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrEmptyDataset
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	catIdx, hasCat := idx[colAttackCategory]

	res := &LoadResult{}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Skipped = append(res.Skipped, RowError{Line: line, Err: err})
				continue
			}
			return nil, err
		}
		res.Rows++

		rec, err := parseRow(row, idx)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: line, Err: err})
			continue
		}
		if hasCat && catIdx < len(row) {
			rec.AttackCategory = strings.TrimSpace(row[catIdx])
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return res, domain.ErrEmptyDataset
	}
	return res, nil
}

func parseRow(row []string, idx map[string]int) (domain.DatasetRecord, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ts, err := strconv.ParseFloat(field(colTimestamp), 64)
	if err != nil {
		return domain.DatasetRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return domain.DatasetRecord{}, fmt.Errorf("timestamp: not finite")
	}

	mal, err := parseLabel(field(colIsMalicious))
	if err != nil {
		return domain.DatasetRecord{}, err
	}

	return domain.DatasetRecord{
		Timestamp:   ts,
		CANID:       field(colCANID),
		Payload:     field(colPayload),
		AttackType:  field(colAttackType),
		IsMalicious: mal,
	}, nil
}

func parseLabel(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "yes":
		return true, nil
	case "0", "0.0", "false", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("is_malicious: unrecognized value %q", v)
	}
}
