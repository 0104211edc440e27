package tabular

import (
	"context"
	"encoding/csv"
	"strconv"

	"gophospho/internal/crossval"
	"gophospho/internal/enrichment"
)

// WriteAssociations writes one row per regulator-target association
func (s *Store) WriteAssociations(ctx context.Context, path string, t *enrichment.AssociationTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"regulator", "target", "coef", "score", "strength", "TP", "regulator_count", "euclidean", "manhattan"}); err != nil {
			return err
		}
		for _, a := range t.Rows {
			if err := w.Write([]string{
				string(a.Regulator),
				string(a.Target),
				FormatFloat(a.Coef),
				FormatFloat(a.Score),
				FormatFloat(a.Strength),
				strconv.FormatBool(a.TP),
				strconv.Itoa(a.RegulatorCount),
				FormatFloat(a.Euclidean),
				FormatFloat(a.Manhattan),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteEnrichment writes a threshold sweep. AUC and the empty flag are
// repeated on every row so the table stands alone.
func (s *Store) WriteEnrichment(ctx context.Context, path string, sum *enrichment.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"column", "thres", "fraction", "pvalue", "M", "n", "N", "x", "auc", "empty"}); err != nil {
			return err
		}
		for _, r := range sum.Rows {
			if err := w.Write([]string{
				string(sum.Column),
				FormatFloat(r.Threshold),
				FormatFloat(r.Fraction),
				FormatFloat(r.PValue),
				strconv.Itoa(r.M),
				strconv.Itoa(r.Truth),
				strconv.Itoa(r.N),
				strconv.Itoa(r.Hits),
				FormatFloat(sum.AUC),
				strconv.FormatBool(sum.Empty),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WritePredictions writes prediction correlation rows; NaN correlations
// are written as empty cells
func (s *Store) WritePredictions(ctx context.Context, path string, rows []crossval.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"comparison", "dataset", "feature_type", "growth", "name", "type", "cor", "trial"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := w.Write([]string{
				r.Comparison.Name,
				r.Dataset,
				r.FeatureType,
				r.Growth,
				r.Name,
				string(r.Type),
				FormatFloat(r.Cor),
				strconv.Itoa(r.Trial),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteKnockout writes the rows behind a knockout validation
func (s *Store) WriteKnockout(ctx context.Context, path string, res *enrichment.KnockoutResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"regulator", "target", "coef", "fold_change"}); err != nil {
			return err
		}
		for _, r := range res.Rows {
			if err := w.Write([]string{string(r.Regulator), string(r.Target), FormatFloat(r.Coef), FormatFloat(r.Value)}); err != nil {
				return err
			}
		}
		return nil
	})
}
