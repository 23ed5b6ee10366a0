// Package scorer implements the six lending criteria: threshold evaluation,
// circuit input masking and scorecard assembly.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
)

// Upper bounds of the scaled thresholds.
const (
	MaxPercent = percentScale
	MaxBP      = bpScale
)

// DefaultLenderConfig returns the lender policy used when nothing is configured.
func DefaultLenderConfig() config.LenderConfig {
	return config.LenderConfig{
		ThresholdPercent:         90,
		DTIThresholdBP:           4000, // 40%
		DSOThreshold:             45,   // days
		ARPctThresholdBP:         1000, // 10%
		RevenueThreshold:         120_000,
		ConcentrationThresholdBP: 5000, // 50%
	}
}

// ValidateConfig checks that a lender policy is within the circuit's ranges.
func ValidateConfig(c config.LenderConfig) error {
	var errs []string

	if c.ThresholdPercent > MaxPercent {
		errs = append(errs, fmt.Sprintf("threshold_percent must be <= %d", MaxPercent))
	}
	bps := map[string]uint64{
		"dti_threshold_bp":           c.DTIThresholdBP,
		"ar_pct_threshold_bp":        c.ARPctThresholdBP,
		"concentration_threshold_bp": c.ConcentrationThresholdBP,
	}
	for name, v := range bps {
		if v > MaxBP {
			errs = append(errs, fmt.Sprintf("%s must be <= %d", name, MaxBP))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: lender config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PolicyThreshold returns the lender default for the criterion's threshold field.
func PolicyThreshold(c config.LenderConfig, crit model.Criterion) uint64 {
	switch crit {
	case model.CriterionReliability:
		return c.ThresholdPercent
	case model.CriterionDTI:
		return c.DTIThresholdBP
	case model.CriterionDSO:
		return c.DSOThreshold
	case model.CriterionARAging:
		return c.ARPctThresholdBP
	case model.CriterionRevenue:
		return c.RevenueThreshold
	case model.CriterionConcentration:
		return c.ConcentrationThresholdBP
	default:
		return 0
	}
}
