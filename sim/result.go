package sim

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// Result holds the outcome of a simulation run.
type Result struct {
	// Geometry is the shape of the simulated cache
	Geometry cache.Geometry `json:"-"`

	// Stats are the cumulative model statistics
	Stats cache.Statistics `json:"stats"`

	// Records is the number of data-access records applied
	Records uint64 `json:"records"`

	// Skipped is the number of lines without the access marker
	Skipped uint64 `json:"skipped"`

	// Malformed is the number of records that failed to parse
	Malformed uint64 `json:"malformed"`

	// Per-kind record counts
	Loads        uint64 `json:"loads"`
	Stores       uint64 `json:"stores"`
	Modifies     uint64 `json:"modifies"`
	Instructions uint64 `json:"instructions"`
}

func (r *Result) countKind(k trace.Kind) {
	switch k {
	case trace.Load:
		r.Loads++
	case trace.Store:
		r.Stores++
	case trace.Modify:
		r.Modifies++
	case trace.Instruction:
		r.Instructions++
	}
}

// Summary returns the conventional one-line result.
func (r Result) Summary() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d",
		r.Stats.Hits, r.Stats.Misses, r.Stats.Evictions)
}

// MissRate returns misses per access, 0 for an empty run.
func (r Result) MissRate() float64 {
	if r.Stats.Accesses == 0 {
		return 0
	}
	return float64(r.Stats.Misses) / float64(r.Stats.Accesses)
}

// WriteText prints the summary line followed by a breakdown.
func (r Result) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n"+
		"\n"+
		"Cache:     %s (%d sets, %d lines, %s blocks)\n"+
		"Records:   %d (L %d, S %d, M %d, I %d)\n"+
		"Accesses:  %d\n"+
		"Miss rate: %.2f%%\n"+
		"Skipped:   %d\n"+
		"Malformed: %d\n",
		r.Summary(),
		r.Geometry, r.Geometry.NumSets(), r.Geometry.TotalLines(), r.Geometry.BlockSizeString(),
		r.Records, r.Loads, r.Stores, r.Modifies, r.Instructions,
		r.Stats.Accesses,
		100*r.MissRate(),
		r.Skipped,
		r.Malformed)
	return err
}

type jsonResult struct {
	SetIndexBits    uint `json:"set_index_bits"`
	LinesPerSet     int  `json:"lines_per_set"`
	BlockOffsetBits uint `json:"block_offset_bits"`
	Result
	MissRate float64 `json:"miss_rate"`
}

// WriteJSON prints the result as an indented JSON object.
func (r Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonResult{
		SetIndexBits:    r.Geometry.SetIndexBits,
		LinesPerSet:     r.Geometry.LinesPerSet,
		BlockOffsetBits: r.Geometry.BlockOffsetBits,
		Result:          r,
		MissRate:        r.MissRate(),
	})
}
