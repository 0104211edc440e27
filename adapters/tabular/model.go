package tabular

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gophospho/domain/core"
	"gophospho/domain/network"
	apperrors "gophospho/internal/errors"
	"gophospho/ports"
)

// ReadModel loads the four flat tables of a stoichiometric model. The
// gene table is optional.
func (s *Store) ReadModel(ctx context.Context, paths ports.ModelPaths) (*network.StoichiometricModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := &network.StoichiometricModel{}

	rows, err := readTable(paths.Metabolites, "id", "name")
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		model.Metabolites = append(model.Metabolites, network.Metabolite{ID: core.MetaboliteID(r[0]), Name: r[1]})
	}

	rows, err = readTable(paths.Reactions, "id", "exchange")
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		exchange, err := parseBool(r[1])
		if err != nil {
			return nil, apperrors.InvalidInput("%s row %d: %v", paths.Reactions, i+2, err)
		}
		model.Reactions = append(model.Reactions, network.Reaction{ID: core.ReactionID(r[0]), Exchange: exchange})
	}

	rows, err = readTable(paths.Stoichiometry, "metabolite", "reaction", "coefficient")
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		v, err := strconv.ParseFloat(r[2], 64)
		if err != nil {
			return nil, apperrors.InvalidInput("%s row %d: %v", paths.Stoichiometry, i+2, err)
		}
		model.Coefficients = append(model.Coefficients, network.Coefficient{
			Metabolite: core.MetaboliteID(r[0]),
			Reaction:   core.ReactionID(r[1]),
			Value:      v,
		})
	}

	if paths.Genes != "" {
		rows, err = readTable(paths.Genes, "gene", "reaction")
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			model.Genes = append(model.Genes, network.GeneReaction{Gene: core.GeneID(r[0]), Reaction: core.ReactionID(r[1])})
		}
	}

	s.logger.Info("model: %d metabolites, %d reactions, %d coefficients, %d gene links",
		len(model.Metabolites), len(model.Reactions), len(model.Coefficients), len(model.Genes))
	return model, nil
}

// ReadMassMap loads metabolite masses in file order
func (s *Store) ReadMassMap(ctx context.Context, path string) ([]network.MassAnnotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := readTable(path, "id", "mz")
	if err != nil {
		return nil, err
	}
	out := make([]network.MassAnnotation, 0, len(rows))
	for i, r := range rows {
		mz, err := strconv.ParseFloat(r[1], 64)
		if err != nil {
			return nil, apperrors.InvalidInput("%s row %d: %v", path, i+2, err)
		}
		out = append(out, network.MassAnnotation{Metabolite: core.MetaboliteID(r[0]), Mass: mz})
	}
	return out, nil
}

// readTable reads a headed TSV and returns the named columns of every
// data row, in the order asked for. Header matching ignores case.
func readTable(path string, columns ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.InvalidInput("open table %s: %v", path, err)
	}
	defer f.Close()
	rows, err := readDelimited(f, '\t')
	if err != nil {
		return nil, apperrors.Wrapf(err, "read %s", path)
	}
	if len(rows) == 0 {
		return nil, apperrors.InvalidInput("table %s is empty", path)
	}
	idx, err := columnIndex(rows[0], columns)
	if err != nil {
		return nil, apperrors.InvalidInput("table %s: %v", path, err)
	}
	out := make([][]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := make([]string, len(idx))
		for k, j := range idx {
			if j >= len(row) {
				return nil, apperrors.InvalidInput("table %s row %d has %d fields", path, i+2, len(row))
			}
			rec[k] = strings.TrimSpace(row[j])
		}
		out = append(out, rec)
	}
	return out, nil
}

func columnIndex(header, columns []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make([]int, len(columns))
	for k, c := range columns {
		i, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		idx[k] = i
	}
	return idx, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
