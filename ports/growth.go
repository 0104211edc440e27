package ports

import (
	"context"

	"gophospho/domain/core"
	"gophospho/domain/omics"
)

// GrowthFactors are latent sample factors and their association with growth
type GrowthFactors struct {
	Samples []core.SampleID
	// Scores[k][j] is the score of sample j on component k
	Scores [][]float64
	// Correlation[k] is the Pearson correlation of component k with growth
	Correlation []float64
	// Best is the component most correlated with growth in absolute value
	Best int
}

// GrowthRegressorPort removes a growth-associated factor from omics data
type GrowthRegressorPort interface {
	// Fit extracts factors from data (features x samples) and ranks them
	// against the per-sample growth rates
	Fit(ctx context.Context, data *omics.Matrix, growth map[core.SampleID]float64) (*GrowthFactors, error)

	// Residualize regresses every feature on the chosen component and
	// returns the residuals
	Residualize(ctx context.Context, data *omics.Matrix, factors *GrowthFactors, component int) (*omics.Matrix, error)
}
