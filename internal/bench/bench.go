// Package bench times the token-stream-to-WAV pipeline for the outetts
// bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-outetts/internal/audio"
)

// Pipeline is the work measured by one run: decode the audio codes of a
// token stream, then encode the waveform.
type Pipeline struct {
	Decode func(ctx context.Context) (audio.Waveform, error)
	Encode func(w audio.Waveform) ([]byte, error)
}

// RunResult holds the timings of a single run.
type RunResult struct {
	Index  int
	Cold   bool // first run
	Decode time.Duration
	Encode time.Duration
	Total  time.Duration
	Audio  time.Duration
	Bytes  int
	RTF    float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// Run executes p n times and records each run. It stops at the first error.
func Run(ctx context.Context, n int, p Pipeline) ([]RunResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", n)
	}
	if p.Decode == nil || p.Encode == nil {
		return nil, errors.New("pipeline needs both a decode and an encode stage")
	}

	results := make([]RunResult, 0, n)
	for i := range n {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		w, err := p.Decode(ctx)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		decoded := time.Now()

		wav, err := p.Encode(w)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		done := time.Now()

		total := done.Sub(start)
		results = append(results, RunResult{
			Index:  i,
			Cold:   i == 0,
			Decode: decoded.Sub(start),
			Encode: done.Sub(decoded),
			Total:  total,
			Audio:  w.Duration(),
			Bytes:  len(wav),
			RTF:    CalcRTF(total, w.Duration()),
		})
	}

	return results, nil
}

// ComputeStats calculates min, max and mean of the run totals.
func ComputeStats(runs []RunResult) Stats {
	if len(runs) == 0 {
		return Stats{}
	}
	mn, mx := runs[0].Total, runs[0].Total
	var sum time.Duration
	for _, r := range runs {
		mn = min(mn, r.Total)
		mx = max(mx, r.Total)
		sum += r.Total
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(runs)),
	}
}

// MeanRTF averages the realtime factor over runs.
func MeanRTF(runs []RunResult) float64 {
	if len(runs) == 0 {
		return 0
	}
	var total float64
	for _, r := range runs {
		total += r.RTF
	}
	return total / float64(len(runs))
}

// CalcRTF returns processing_duration / audio_duration, or 0 for silence.
func CalcRTF(elapsed, audioDur time.Duration) float64 {
	if audioDur <= 0 {
		return 0
	}
	return float64(elapsed) / float64(audioDur)
}

// CheckRTFThreshold returns an error if meanRTF > threshold.
// A threshold of 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}
	return nil
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %10s  %10s  %8s\n", "Run", "Cold", "Decode", "Encode", "Total(ms)", "Audio(ms)", "RTF")
	fmt.Fprintln(sb, strings.Repeat("-", 72))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %10.1f  %10.1f  %10.1f  %8.3f\n",
			r.Index+1, cold, ms(r.Decode), ms(r.Encode), ms(r.Total), ms(r.Audio), r.RTF)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 72))
	for _, row := range []struct {
		label string
		d     time.Duration
	}{{"min", stats.Min}, {"mean", stats.Mean}, {"max", stats.Max}} {
		fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %10.1f  (%s)\n", "", "", "", "", ms(row.d), row.label)
	}

	fmt.Fprint(w, sb.String())
}

type jsonReport struct {
	Runs    []jsonRun `json:"runs"`
	Stats   jsonStats `json:"stats"`
	MeanRTF float64   `json:"mean_rtf"`
}

type jsonRun struct {
	Index    int     `json:"index"`
	Cold     bool    `json:"cold"`
	DecodeMS float64 `json:"decode_ms"`
	EncodeMS float64 `json:"encode_ms"`
	TotalMS  float64 `json:"total_ms"`
	AudioMS  float64 `json:"audio_ms"`
	Bytes    int     `json:"bytes"`
	RTF      float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs:    make([]jsonRun, len(runs)),
		Stats:   jsonStats{MinMS: ms(stats.Min), MeanMS: ms(stats.Mean), MaxMS: ms(stats.Max)},
		MeanRTF: MeanRTF(runs),
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:    r.Index,
			Cold:     r.Cold,
			DecodeMS: ms(r.Decode),
			EncodeMS: ms(r.Encode),
			TotalMS:  ms(r.Total),
			AudioMS:  ms(r.Audio),
			Bytes:    r.Bytes,
			RTF:      r.RTF,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}
