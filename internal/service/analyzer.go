package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/cache"
	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
)

const defaultMaxTrials = 100000

// HistoryRecorder persists completed analyses.
type HistoryRecorder interface {
	Save(ctx context.Context, record *history.Record) error
}

// AnalysisOptions configures an AnalysisService. Zero values select defaults;
// a nil Cache or History disables that feature.
type AnalysisOptions struct {
	Cache         domain.ResultCache
	History       HistoryRecorder
	DefaultTrials int
	MaxTrials     int
	Workers       int
	Source        SourceFactory
}

// AnalysisService runs the full pipeline: classification, risk, financials,
// break-even, carve-out, strategy and optional simulation.
type AnalysisService struct {
	classifier    *PanelClassifier
	model         *RiskModel
	sampler       *ScenarioSampler
	cache         domain.ResultCache
	history       HistoryRecorder
	logger        *logrus.Logger
	defaultTrials int
	maxTrials     int
	workers       int
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(set *catalog.Set, logger *logrus.Logger, opts AnalysisOptions) *AnalysisService {
	model := DefaultRiskModel()
	s := &AnalysisService{
		classifier:    NewPanelClassifier(set),
		model:         model,
		sampler:       NewScenarioSampler(model, opts.Source),
		cache:         opts.Cache,
		history:       opts.History,
		logger:        logger,
		defaultTrials: opts.DefaultTrials,
		maxTrials:     opts.MaxTrials,
		workers:       opts.Workers,
	}
	if s.defaultTrials <= 0 {
		s.defaultTrials = DefaultTrials
	}
	if s.maxTrials <= 0 {
		s.maxTrials = defaultMaxTrials
	}
	return s
}

// Classifier returns the panel classifier.
func (s *AnalysisService) Classifier() *PanelClassifier {
	return s.classifier
}

// RiskModel returns the risk model.
func (s *AnalysisService) RiskModel() *RiskModel {
	return s.model
}

// Classify resolves a panel, optionally overriding its gene count.
func (s *AnalysisService) Classify(catalogName, panel string, geneCount *int) (*domain.PanelClassification, error) {
	if geneCount != nil {
		return s.classifier.ClassifyPanelWithGeneCount(catalogName, panel, *geneCount)
	}
	return s.classifier.ClassifyPanel(catalogName, panel)
}

// Analyze runs the pipeline for one request. An unknown panel aborts before any
// financial computation.
func (s *AnalysisService) Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	startTime := time.Now()

	classification, err := s.Classify(req.Catalog, req.Panel, req.GeneCount)
	if err != nil {
		return nil, fmt.Errorf("failed to classify panel: %w", err)
	}

	cacheKey := ""
	if s.cache != nil && (!req.Simulate || req.Seed != nil) {
		if cacheKey, err = cache.Key("analysis", req); err != nil {
			return nil, err
		}
		if cached, ok := s.cachedResult(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	profile := req.Profile
	if req.UseCPTRate {
		profile.Reimbursement = classification.BaseRate
	}

	analysis := s.model.AnalyzeProfile(profile)
	result := &domain.AnalysisResult{
		ID:             uuid.NewString(),
		Classification: *classification,
		Profile:        profile,
		Analysis:       analysis,
		Strategy: RecommendStrategy(profile.Backbone, analysis.Financials.EffectiveReimbursement,
			profile.CostPerSample, analysis.Financials.NetProfit),
		CreatedAt: time.Now().UTC(),
	}
	if carveOut, ok := CarveOutBreakEven(profile.Backbone, analysis.Financials.NetProfit); ok {
		result.CarveOut = carveOut
	}

	if req.Simulate {
		sim, err := s.Simulate(ctx, profile, req.Trials, req.Seed)
		if err != nil {
			return nil, err
		}
		result.Simulation = sim
	}

	if cacheKey != "" {
		s.storeResult(ctx, cacheKey, result)
	}
	s.record(ctx, req, result)

	s.logger.WithFields(logrus.Fields{
		"analysis_id":   result.ID,
		"catalog":       classification.Catalog,
		"panel":         classification.Panel,
		"cpt_code":      classification.CPTCode,
		"risk_level":    classification.RiskLevel,
		"overall_score": analysis.Risk.OverallScore,
		"profitable":    analysis.BreakEven.Profitable,
		"duration_ms":   time.Since(startTime).Milliseconds(),
	}).Info("Completed panel analysis")

	return result, nil
}

// Simulate runs the scenario sampler on a profile.
func (s *AnalysisService) Simulate(ctx context.Context, profile domain.LabProfile, trials int, seed *uint64) (*domain.SimulationResult, error) {
	if trials <= 0 {
		trials = s.defaultTrials
	}
	if trials > s.maxTrials {
		return nil, domain.NewValidationError("trials", fmt.Sprintf("must not exceed %d", s.maxTrials), trials)
	}

	result, err := s.sampler.Run(ctx, profile, SimulationOptions{Trials: trials, Seed: seed, Workers: s.workers})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trials":              trials,
		"seed":                *result.Seed,
		"p5":                  result.Summary.P5,
		"p95":                 result.Summary.P95,
		"probability_of_loss": result.Summary.ProbabilityOfLoss,
	}).Debug("Completed scenario simulation")

	return result, nil
}

func (s *AnalysisService) cachedResult(ctx context.Context, key string) (*domain.AnalysisResult, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Analysis cache lookup failed, computing result")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.WithError(err).Warn("Discarding corrupted cache entry")
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	s.logger.WithField("analysis_id", result.ID).Debug("Analysis served from cache")
	return &result, true
}

func (s *AnalysisService) storeResult(ctx context.Context, key string, result *domain.AnalysisResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode analysis for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.WithError(err).Warn("Failed to cache analysis result")
	}
}

func (s *AnalysisService) record(ctx context.Context, req *domain.AnalysisRequest, result *domain.AnalysisResult) {
	if s.history == nil {
		return
	}
	rec, err := history.NewRecord(req, result)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to build history record")
		return
	}
	if err := s.history.Save(ctx, rec); err != nil {
		s.logger.WithError(err).WithField("analysis_id", result.ID).Warn("Failed to record analysis history")
	}
}
