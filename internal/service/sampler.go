package service

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

const (
	// DefaultTrials is the trial count used when none is requested.
	DefaultTrials = 1000

	trialChunkSize = 250

	volumeSpread        = 0.10
	costSpread          = 0.05
	reimbursementSpread = 0.10

	denialAlpha    = 2.0
	denialBeta     = 8.0
	denialMaxScale = 0.3
)

// SimulationOptions controls one sampler run. A nil Seed draws a fresh one; the
// seed actually used is returned in the result. Workers <= 0 uses GOMAXPROCS.
type SimulationOptions struct {
	Trials  int
	Seed    *uint64
	Workers int
}

// ScenarioSampler perturbs a profile's volume, cost, reimbursement and denial
// rate and collects the resulting annual net profit distribution.
//
// Trials are split into fixed-size chunks and chunk i always draws from stream i
// of the seed, so a seeded run returns the same samples for any worker count.
type ScenarioSampler struct {
	model     *RiskModel
	newSource SourceFactory
}

// NewScenarioSampler creates a sampler. A nil factory selects NewPCGSource.
func NewScenarioSampler(model *RiskModel, newSource SourceFactory) *ScenarioSampler {
	if newSource == nil {
		newSource = NewPCGSource
	}
	return &ScenarioSampler{model: model, newSource: newSource}
}

// Run executes the simulation. Cancellation is checked between chunks.
func (s *ScenarioSampler) Run(ctx context.Context, profile domain.LabProfile, opts SimulationOptions) (*domain.SimulationResult, error) {
	trials := opts.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	seed := RandomSeed()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	samples := make([]float64, trials)
	chunks := (trials + trialChunkSize - 1) / trialChunkSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for chunk := 0; chunk < chunks; chunk++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := chunk * trialChunkSize
			end := min(start+trialChunkSize, trials)
			src := s.newSource(seed, uint64(chunk))
			for i := start; i < end; i++ {
				samples[i] = runTrial(src, profile)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation cancelled: %w", err)
	}

	point := s.model.AnalyzeProfile(profile).Financials.AnnualNetProfit
	return &domain.SimulationResult{
		Seed:          &seed,
		PointEstimate: point,
		Summary:       Summarize(samples),
		Samples:       samples,
	}, nil
}

func runTrial(src RandomSource, profile domain.LabProfile) float64 {
	base := float64(profile.AnnualVolume)
	volume := int(math.Max(0, src.Normal(base, volumeSpread*base)))
	cost := src.Normal(profile.CostPerSample, costSpread*profile.CostPerSample)
	reimbursement := src.Normal(profile.Reimbursement, reimbursementSpread*profile.Reimbursement)
	denial := src.Beta(denialAlpha, denialBeta) * denialMaxScale

	return computeFinancialsFloat(domain.FinancialInputs{
		CostPerSample: cost,
		Reimbursement: reimbursement,
		Volume:        volume,
		TotalLossRate: denial,
	}).AnnualNetProfit
}

// Summarize computes the percentile summary of a sample set. The input is not
// modified.
func Summarize(samples []float64) domain.SimulationSummary {
	if len(samples) == 0 {
		return domain.SimulationSummary{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	if len(sorted) == 1 {
		v := sorted[0]
		loss := 0.0
		if v < 0 {
			loss = 1
		}
		return domain.SimulationSummary{Trials: 1, Mean: v, P5: v, Median: v, P95: v, ProbabilityOfLoss: loss}
	}

	mean, std := stat.MeanStdDev(sorted, nil)

	losses := 0
	for _, v := range sorted {
		if v < 0 {
			losses++
		}
	}

	return domain.SimulationSummary{
		Trials:            len(sorted),
		Mean:              mean,
		StdDev:            std,
		P5:                stat.Quantile(0.05, stat.LinInterp, sorted, nil),
		Median:            stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		P95:               stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		ProbabilityOfLoss: float64(losses) / float64(len(sorted)),
	}
}
