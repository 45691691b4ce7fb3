package forge

import (
	"context"
	"fmt"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/montanaflynn/stats"
)

// Summary describes one sampled metric across a simulation.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Simulation aggregates repeated builds with consecutive seeds.
type Simulation struct {
	Runs       int                `json:"runs"`
	FirstSeed  uint64             `json:"first_seed"`
	FixedPoint int                `json:"fixed_point"`
	Valid      int                `json:"valid"`
	Metrics    map[string]Summary `json:"metrics"`
}

// Simulate runs n repaired builds starting at req.Seed and summarizes level,
// repair passes, fixes and diagnostics before and after repair.
func (f *Forge) Simulate(ctx context.Context, req Request, n int) (Simulation, error) {
	if n <= 0 {
		return Simulation{}, fmt.Errorf("simulation needs at least one run, got %d", n)
	}
	req.Repair = true
	req.Trace = false

	samples := map[string][]float64{}
	sim := Simulation{Runs: n}
	for i := 0; i < n; i++ {
		run := req
		if req.Seed != 0 {
			run.Seed = req.Seed + uint64(i)
		}
		result, err := f.Build(ctx, run)
		if err != nil {
			return Simulation{}, fmt.Errorf("run %d: %w", i, err)
		}
		if i == 0 {
			sim.FirstSeed = result.Seed
		}
		report := result.Report
		if report.FixedPoint {
			sim.FixedPoint++
		}
		if report.Final == 0 {
			sim.Valid++
		}
		samples["level"] = append(samples["level"], result.State.Get(attr.Scalar(attr.Level)))
		samples["passes"] = append(samples["passes"], float64(report.Passes))
		samples["fixes"] = append(samples["fixes"], float64(report.Fixes))
		samples["initial"] = append(samples["initial"], float64(report.Initial))
		samples["final"] = append(samples["final"], float64(report.Final))
	}

	sim.Metrics = make(map[string]Summary, len(samples))
	for name, data := range samples {
		summary, err := summarize(data)
		if err != nil {
			return Simulation{}, fmt.Errorf("summarize %s: %w", name, err)
		}
		sim.Metrics[name] = summary
	}
	return sim, nil
}

func summarize(data []float64) (Summary, error) {
	var (
		out Summary
		err error
	)
	if out.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, err
	}
	if out.StdDev, err = stats.StandardDeviation(data); err != nil {
		return Summary{}, err
	}
	if out.Min, err = stats.Min(data); err != nil {
		return Summary{}, err
	}
	if out.Median, err = stats.Median(data); err != nil {
		return Summary{}, err
	}
	if out.P90, err = stats.Percentile(data, 90); err != nil {
		return Summary{}, err
	}
	if out.Max, err = stats.Max(data); err != nil {
		return Summary{}, err
	}
	return out, nil
}
