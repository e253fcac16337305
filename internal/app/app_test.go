package app

import (
	"testing"

	"github.com/chrissnell/iopestimator/pkg/config"
)

func TestNewEngineUsesConfiguredRange(t *testing.T) {
	lo, hi := 5.0, 40.0
	cfg := config.Default()
	cfg.Estimation = config.EstimationData{PlausibleMin: &lo, PlausibleMax: &hi}

	report, err := NewEngine(cfg).Estimate([]float64{4, 20, 41})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(report.Warnings) != 2 {
		t.Errorf("expected 2 warnings with range [5, 40], got %+v", report.Warnings)
	}
}

func TestNewEngineDefaultRange(t *testing.T) {
	report, err := NewEngine(config.Default()).Estimate([]float64{4, 20, 41})
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("expected no warnings with the default range, got %+v", report.Warnings)
	}
}
