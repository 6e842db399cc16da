package domain

import (
	"context"
)

// PanelClassifier resolves panels to billing codes and risk tiers
type PanelClassifier interface {
	ClassifyPanel(catalogName, panel string) (*PanelClassification, error)
	ClassifyPanelWithGeneCount(catalogName, panel string, geneCount int) (*PanelClassification, error)
}

// Analyzer runs the full classification and projection pipeline for one request
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (*AnalysisResult, error)
	Simulate(ctx context.Context, profile LabProfile, trials int, seed *uint64) (*SimulationResult, error)
}

// ResultCache stores encoded analysis results by request key
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
