// Package metrics persists the per-round CSV row every node writes,
// grounded on node_pod/src/main.rs's `Record`/`csv::Writer` use:
// encoding/csv is the stdlib equivalent of the original's `csv` crate, and
// no corpus repo imports a third-party CSV library, so this is the one
// ambient-stack concern kept on the standard library (see DESIGN.md).
package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Record is one round's worth of timing and throughput metrics, field order
// matching the fixed CSV schema every process writes against.
type Record struct {
	PoolTPS           float64
	PoolProcessTimeMs float64
	FailedTx          float64
	TTFMs             float64
	StakingTimeMs     float64
	PreprepareTimeMs  float64
	PreprepareWaitMs  float64
	PrepareTimeMs     float64
	PrepareWaitMs     float64
	CommitTimeMs      float64
	CommitWaitMs      float64
	BlockTPS          float64
	ConsensusTimeMs   float64
	TotalTimeMs       float64
}

var header = []string{
	"pool_tps", "pool_process_time", "failed_transactions", "ttf",
	"staking_time", "preprepare_time", "preprepare_wait", "prepare_time",
	"prepare_wait", "commit_time", "commit_wait", "block_tps",
	"concensus_time", "total_time",
}

// Writer appends Records to a CSV file, one per round, flushing after every
// write so a killed process never loses the last completed round.
type Writer struct {
	f *os.File
	w *csv.Writer
}

// NewWriter opens (or creates) path and writes the header row if the file
// is new.
func NewWriter(path string) (*Writer, error) {
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("metrics: opening %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if statErr != nil || info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("metrics: writing header: %w", err)
		}
		w.Flush()
	}
	return &Writer{f: f, w: w}, nil
}

// Write appends r as one CSV row and flushes immediately.
func (w *Writer) Write(r Record) error {
	row := []string{
		formatFloat(r.PoolTPS), formatFloat(r.PoolProcessTimeMs), formatFloat(r.FailedTx),
		formatFloat(r.TTFMs), formatFloat(r.StakingTimeMs), formatFloat(r.PreprepareTimeMs),
		formatFloat(r.PreprepareWaitMs), formatFloat(r.PrepareTimeMs), formatFloat(r.PrepareWaitMs),
		formatFloat(r.CommitTimeMs), formatFloat(r.CommitWaitMs), formatFloat(r.BlockTPS),
		formatFloat(r.ConsensusTimeMs), formatFloat(r.TotalTimeMs),
	}
	if err := w.w.Write(row); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.w.Flush()
	return w.f.Close()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%f", f)
}
