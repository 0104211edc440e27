package ports

import (
	"context"

	"gophospho/domain/network"
	"gophospho/domain/omics"
)

// MatrixReaderPort loads a labelled matrix; missing cells become NaN
type MatrixReaderPort interface {
	ReadMatrix(ctx context.Context, path string) (*omics.Matrix, error)
}

// MatrixWriterPort persists a labelled matrix
type MatrixWriterPort interface {
	WriteMatrix(ctx context.Context, path string, m *omics.Matrix) error
}

// ModelPaths locates the flat tables of a stoichiometric model
type ModelPaths struct {
	Stoichiometry string
	Metabolites   string
	Reactions     string
	Genes         string
}

// ModelReaderPort loads a stoichiometric model from flat tables
type ModelReaderPort interface {
	ReadModel(ctx context.Context, paths ModelPaths) (*network.StoichiometricModel, error)
	ReadMassMap(ctx context.Context, path string) ([]network.MassAnnotation, error)
}
