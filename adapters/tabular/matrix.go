// Package tabular reads and writes the flat files exchanged with the
// analysis: TSV/CSV/XLSX matrices, model tables and result tables.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/ports"

	"github.com/xuri/excelize/v2"
)

// Store implements the matrix and model ports over local files
type Store struct {
	logger *internal.Logger
}

var (
	_ ports.MatrixReaderPort = (*Store)(nil)
	_ ports.MatrixWriterPort = (*Store)(nil)
	_ ports.ModelReaderPort  = (*Store)(nil)
)

// NewStore creates a file-backed store
func NewStore(logger *internal.Logger) *Store {
	return &Store{logger: internal.OrNop(logger).Named("tabular")}
}

// fileType picks the format from the extension; anything unknown is TSV
func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "xlsx"
	case ".csv":
		return "csv"
	default:
		return "tsv"
	}
}

// ReadMatrix loads a matrix whose first column holds row ids and whose
// header holds sample ids
func (s *Store) ReadMatrix(ctx context.Context, path string) (*omics.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.InvalidInput("matrix file not found: %s", path)
	}
	start := time.Now()
	var rows [][]string
	var err error
	switch ft := fileType(path); ft {
	case "xlsx":
		rows, err = readSheet(path)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		sep := '\t'
		if ft == "csv" {
			sep = ','
		}
		rows, err = readDelimited(f, sep)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "read %s", path)
	}
	m, err := ParseMatrix(rows)
	if err != nil {
		return nil, apperrors.Wrapf(err, "parse %s", path)
	}
	r, c := m.Dims()
	s.logger.Debug("read %s (%d x %d) in %.2fms", path, r, c, float64(time.Since(start).Nanoseconds())/1e6)
	return m, nil
}

// readSheet returns the rows of the first sheet of a workbook
func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readDelimited(r io.Reader, sep rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// ParseMatrix converts raw rows (header first) into a matrix. Empty, NA
// and NaN cells are missing. Short rows are padded with missing cells.
func ParseMatrix(rows [][]string) (*omics.Matrix, error) {
	if len(rows) < 2 {
		return nil, apperrors.InvalidInput("matrix needs a header row and at least one data row")
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, apperrors.InvalidInput("matrix header has no sample columns")
	}
	cols := make([]core.SampleID, 0, len(header)-1)
	for _, h := range header[1:] {
		id, err := core.ParseSampleID(strings.TrimSpace(h))
		if err != nil {
			return nil, apperrors.WithCode(apperrors.CodeInvalidInput, err)
		}
		cols = append(cols, id)
	}

	ids := make([]core.FeatureID, 0, len(rows)-1)
	values := make([]float64, 0, (len(rows)-1)*len(cols))
	for i, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		id, err := core.ParseFeatureID(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, apperrors.InvalidInput("row %d: %v", i+2, err)
		}
		ids = append(ids, id)
		for j := range cols {
			cell := ""
			if j+1 < len(row) {
				cell = row[j+1]
			}
			v, err := ParseCell(cell)
			if err != nil {
				return nil, apperrors.InvalidInput("row %d (%s), column %s: %v", i+2, id, cols[j], err)
			}
			values = append(values, v)
		}
	}
	m, err := omics.New(ids, cols, values)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, err)
	}
	return m, nil
}

// ParseCell reads one numeric cell; missing markers become NaN
func ParseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// FormatFloat renders NaN as an empty cell
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteMatrix writes m as TSV, creating parent directories
func (s *Store) WriteMatrix(ctx context.Context, path string, m *omics.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(path, func(w *csv.Writer) error {
		return EncodeMatrix(w, m)
	})
}

// EncodeMatrix streams m through w
func EncodeMatrix(w *csv.Writer, m *omics.Matrix) error {
	cols := m.Cols()
	header := make([]string, 0, len(cols)+1)
	header = append(header, "id")
	for _, c := range cols {
		header = append(header, string(c))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, r := range m.Rows() {
		record := make([]string, 0, len(cols)+1)
		record = append(record, string(r))
		for j := range cols {
			record = append(record, FormatFloat(m.At(i, j)))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// writeFile opens path for writing and hands a tab-separated writer to fn
func (s *Store) writeFile(path string, fn func(w *csv.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := fn(w); err != nil {
		f.Close()
		return apperrors.Wrapf(err, "write %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return apperrors.Wrapf(err, "flush %s", path)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.logger.Debug("wrote %s", path)
	return nil
}
